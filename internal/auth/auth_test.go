package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/meur/cinerank/internal/shared"
)

func TestJWTGate(t *testing.T) {
	gate := NewJWTGate("test-secret")

	t.Run("Issue and Verify", func(t *testing.T) {
		token, err := gate.Issue("alice", time.Hour)
		assert.Equal(t, err, nil)

		id, err := gate.Verify(token)
		assert.Equal(t, err, nil)
		assert.Equal(t, id.UserID, "alice")
	})

	t.Run("Issue requires user", func(t *testing.T) {
		_, err := gate.Issue("", time.Hour)
		assert.NotEqual(t, err, nil)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, _ := NewJWTGate("other").Issue("alice", time.Hour)
		_, err := gate.Verify(token)
		assert.Equal(t, errors.Is(err, shared.ErrInvalidToken), true)
	})

	t.Run("Expired", func(t *testing.T) {
		past := NewJWTGate("test-secret")
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _ := past.Issue("alice", time.Hour)

		_, err := gate.Verify(token)
		assert.Equal(t, errors.Is(err, shared.ErrInvalidToken), true)
	})

	t.Run("Authenticate without header is anonymous", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		id, err := gate.Authenticate(r)
		assert.Equal(t, err, nil)
		assert.Equal(t, id.Anonymous(), true)
	})

	t.Run("Authenticate rejects non-bearer scheme", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		_, err := gate.Authenticate(r)
		assert.Equal(t, errors.Is(err, shared.ErrInvalidToken), true)
	})
}

func TestMiddleware(t *testing.T) {
	gate := NewJWTGate("test-secret")
	var seen Identity
	handler := Middleware(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("Stores identity", func(t *testing.T) {
		token, _ := gate.Issue("bob", time.Hour)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		assert.Equal(t, w.Code, http.StatusNoContent)
		assert.Equal(t, seen.UserID, "bob")
	})

	t.Run("Rejects garbage", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		assert.Equal(t, w.Code, http.StatusUnauthorized)
	})
}
