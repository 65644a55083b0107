// Package auth resolves the caller's identity from a bearer token.
//
// Credential issuance proper (accounts, passwords) lives outside this
// service; the gate only verifies HS256 tokens whose subject is a user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/meur/cinerank/internal/shared"
)

// Identity is the authenticated caller. The zero value is anonymous.
type Identity struct {
	UserID string
}

// Anonymous reports whether no user is attached.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

// Gate turns an incoming request into an Identity.
type Gate interface {
	Authenticate(r *http.Request) (Identity, error)
}

// JWTGate verifies HS256 bearer tokens signed with a shared secret.
type JWTGate struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTGate creates a gate for the given secret.
func NewJWTGate(secret string) *JWTGate {
	return &JWTGate{secret: []byte(secret), issuer: "cinerank", now: time.Now}
}

// Authenticate reads the Authorization header. A request without one is
// anonymous; a malformed or expired token is an error.
func (g *JWTGate) Authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, nil
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Identity{}, shared.ErrInvalidToken
	}
	return g.Verify(strings.TrimSpace(raw))
}

// Verify parses and checks a raw token string.
func (g *JWTGate) Verify(raw string) (Identity, error) {
	parser := gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(g.issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(g.now),
	)

	claims := &gojwt.RegisteredClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*gojwt.Token) (any, error) {
		return g.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", shared.ErrInvalidToken)
	}

	return Identity{UserID: claims.Subject}, nil
}

// Issue signs a token for userID valid for ttl.
func (g *JWTGate) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}

	now := g.now()
	claims := gojwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(g.secret)
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by [Middleware], or anonymous.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(contextKey{}).(Identity)
	return id
}

// Middleware authenticates every request and stores the identity in its
// context. Requests with a bad token are rejected with 401.
func Middleware(gate Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := gate.Authenticate(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid bearer token"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
