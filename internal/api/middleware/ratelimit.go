package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"Tutorhub/internal/api/handlers"
)

// RateLimiter caps requests per client address over a sliding window.
// State lives in process memory, so the cap is per replica.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     int
	window    time.Duration
	lastSweep time.Time
}

// bucket counts one client's requests within its current window.
type bucket struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter allows up to limit requests per window for each
// client address.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r), time.Now().UTC()) {
			handlers.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(addr string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepLocked(now)

	b := rl.buckets[addr]
	if b == nil || now.After(b.resetAt) {
		rl.buckets[addr] = &bucket{count: 1, resetAt: now.Add(rl.window)}
		return true
	}

	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}

// sweepLocked drops expired buckets at most once per window, so idle
// clients don't accumulate. Caller holds rl.mu.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now

	for addr, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, addr)
		}
	}
}

// clientIP resolves the client address, preferring proxy headers.
// X-Forwarded-For may carry a chain; the first hop is the client.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			forwarded = forwarded[:i]
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
