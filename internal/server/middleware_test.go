package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRateLimiter_Allow tests that a connection gets its burst and no more
func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(0.001, 10)
	connID := "test-conn-1"

	for i := range 10 {
		assert.True(t, limiter.Allow(connID), "Request %d should be allowed", i+1)
	}

	assert.False(t, limiter.Allow(connID), "11th request should be denied")
}

// TestRateLimiter_Refill tests that tokens come back over time
func TestRateLimiter_Refill(t *testing.T) {
	limiter := NewRateLimiter(20, 2)
	connID := "test-conn-2"

	assert.True(t, limiter.Allow(connID))
	assert.True(t, limiter.Allow(connID))
	assert.False(t, limiter.Allow(connID))

	assert.Eventually(t, func() bool { return limiter.Allow(connID) }, time.Second, 10*time.Millisecond)
}

// TestRateLimiter_MultipleConnections tests that limits are per-connection
func TestRateLimiter_MultipleConnections(t *testing.T) {
	limiter := NewRateLimiter(0.001, 5)

	for range 5 {
		limiter.Allow("conn-1")
	}

	assert.False(t, limiter.Allow("conn-1"))
	assert.True(t, limiter.Allow("conn-2"), "conn-2 should not be affected by conn-1")
}

func TestRateLimiter_RemoveConnection(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)

	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))

	limiter.RemoveConnection("conn-1")

	assert.True(t, limiter.Allow("conn-1"), "a reconnect starts with a fresh bucket")
}

func TestConnectionHealth_Inactivity(t *testing.T) {
	assert := assert.New(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	health := NewConnectionHealth()
	health.now = func() time.Time { return now }

	health.UpdateActivity("fresh")
	health.UpdateActivity("stale")
	now = now.Add(30 * time.Second)
	health.UpdateActivity("fresh")
	now = now.Add(45 * time.Second)

	assert.Equal([]string{"stale"}, health.GetInactiveConnections(time.Minute))

	health.RemoveConnection("stale")
	assert.Empty(health.GetInactiveConnections(time.Minute))
}

func TestSecurityHeaders(t *testing.T) {
	handler := securityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))
}

func TestCorsMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("wildcard", func(t *testing.T) {
		rec := httptest.NewRecorder()
		corsMiddleware([]string{"*"})(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("listed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://decode.example")
		rec := httptest.NewRecorder()
		corsMiddleware([]string{"https://decode.example"})(next).ServeHTTP(rec, req)

		assert.Equal(t, "https://decode.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		corsMiddleware([]string{"https://decode.example"})(next).ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		corsMiddleware(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
