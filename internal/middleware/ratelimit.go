package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ashureev/persona-lab/internal/identity"
	"github.com/ashureev/persona-lab/internal/metrics"
	"golang.org/x/time/rate"
)

const maxTrackedLimiters = 10000

// RateLimiter limits requests per authenticated user, falling back to the client IP.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing perMinute requests per key per minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler returns the rate limiting middleware handler.
// It must run after identity.Middleware so requests are keyed by uid.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := identity.UserIDFromContext(r.Context())
		if key == "" {
			key = identity.IPFromRequest(r)
		}

		limiter := rl.getLimiter(key)
		if !limiter.Allow() {
			metrics.RecordRateLimited()
			slog.Warn("Rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path)

			retryAfter := int(time.Duration(float64(time.Second) / float64(rl.rate)).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeFailure(w, http.StatusTooManyRequests, failureBody{
				Error: "Too many requests. Please slow down.",
				Code:  "server/rate-limited",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup drops all limiters once the tracked set grows past its bound.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > maxTrackedLimiters {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup runs Cleanup every interval until done is closed.
func (rl *RateLimiter) StartCleanup(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}
