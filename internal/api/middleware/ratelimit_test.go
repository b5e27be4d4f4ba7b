package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("denies once the window limit is reached", func(t *testing.T) {
		rl := NewRateLimiter(2, time.Minute)

		assert.True(t, rl.allow("10.0.0.1", start))
		assert.True(t, rl.allow("10.0.0.1", start.Add(time.Second)))
		assert.False(t, rl.allow("10.0.0.1", start.Add(2*time.Second)))
	})

	t.Run("counts each address separately", func(t *testing.T) {
		rl := NewRateLimiter(1, time.Minute)

		assert.True(t, rl.allow("10.0.0.1", start))
		assert.False(t, rl.allow("10.0.0.1", start))
		assert.True(t, rl.allow("10.0.0.2", start))
	})

	t.Run("window expiry resets the count", func(t *testing.T) {
		rl := NewRateLimiter(1, time.Minute)

		assert.True(t, rl.allow("10.0.0.1", start))
		assert.False(t, rl.allow("10.0.0.1", start.Add(30*time.Second)))
		assert.True(t, rl.allow("10.0.0.1", start.Add(61*time.Second)))
	})

	t.Run("sweep drops idle buckets", func(t *testing.T) {
		rl := NewRateLimiter(1, time.Minute)

		rl.allow("10.0.0.1", start)
		rl.allow("10.0.0.2", start)
		rl.allow("10.0.0.3", start.Add(2*time.Minute))

		rl.mu.Lock()
		defer rl.mu.Unlock()
		assert.Len(t, rl.buckets, 1)
	})
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:1234"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", clientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", clientIP(req))

	// First hop of a forwarded chain is the original client.
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 203.0.113.7")
	assert.Equal(t, "198.51.100.4", clientIP(req))
}
