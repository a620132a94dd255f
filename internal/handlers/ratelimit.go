package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/apnisec/apiserver/internal/apperr"
)

const sweepInterval = time.Minute

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimiter is a fixed-window request limiter keyed per client.
// Authenticated requests share a window across a user's devices;
// anonymous requests are keyed by client IP.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry

	max    int
	window time.Duration

	// now is swapped out in tests to drive window expiry.
	now  func() time.Time
	done chan struct{}
}

// NewRateLimiter builds a limiter allowing max requests per window and
// starts the background sweep that evicts expired windows. Call Stop
// when the limiter is no longer needed.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		entries: make(map[string]*rateLimitEntry),
		max:     max,
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop halts the background sweep goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.removeExpired()
		}
	}
}

func (rl *RateLimiter) removeExpired() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.entries {
		if !entry.resetTime.After(now) {
			delete(rl.entries, key)
		}
	}
}

// take records one request against key and reports whether it is
// allowed, along with the remaining allowance and window reset time.
func (rl *RateLimiter) take(key string) (allowed bool, remaining int, reset time.Time) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[key]
	if !ok || !entry.resetTime.After(now) {
		entry = &rateLimitEntry{count: 1, resetTime: now.Add(rl.window)}
		rl.entries[key] = entry
		return true, rl.max - 1, entry.resetTime
	}

	entry.count++
	remaining = rl.max - entry.count
	if remaining < 0 {
		remaining = 0
	}
	return entry.count <= rl.max, remaining, entry.resetTime
}

// Middleware enforces the limit and stamps X-RateLimit headers on
// every response, including rejected ones.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := rl.take(rl.keyFor(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", reset.UTC().Format(time.RFC3339))

			if !allowed {
				writeServiceError(w, apperr.RateLimit("Too many requests. Please try again later."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) keyFor(r *http.Request) string {
	if user, err := userFromContext(r.Context()); err == nil {
		return fmt.Sprintf("user:%d", user.ID)
	}
	return "ip:" + clientIP(r)
}
