package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/meur/cinerank/internal/auth"
	"golang.org/x/time/rate"
)

const (
	// Buckets untouched for this long are dropped once the table grows past
	// sweepAbove entries.
	limiterIdle = 10 * time.Minute
	sweepAbove  = 1024
)

// writeLimiter keeps one token bucket per client key.
type writeLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newWriteLimiter(perSecond float64, burst int) *writeLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &writeLimiter{
		limit:   limit,
		burst:   max(burst, 1),
		clients: make(map[string]*clientBucket),
	}
}

// allow spends one token from key's bucket.
func (l *writeLimiter) allow(key string, now time.Time) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= sweepAbove {
			l.sweep(now)
		}
		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = bucket
	}
	bucket.seen = now
	return bucket.limiter.AllowN(now, 1)
}

func (l *writeLimiter) sweep(now time.Time) {
	for key, bucket := range l.clients {
		if now.Sub(bucket.seen) > limiterIdle {
			delete(l.clients, key)
		}
	}
}

// clientKey identifies the caller: the authenticated user when there is one,
// the remote address otherwise.
func clientKey(r *http.Request) string {
	if id := auth.FromContext(r.Context()); !id.Anonymous() {
		return "user:" + id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
