package middleware

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/hrygo/agenda/server/internal/errors"
)

// idleTimeout is how long a client may stay silent before its limiter is dropped.
// A returning client starts again with a full burst.
const idleTimeout = 3 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter provides per-client rate limiting.
type RateLimiter struct {
	mu        sync.RWMutex
	limits    map[string]*clientLimiter
	lastSweep time.Time
	every     time.Duration
	burst     int
	idle      time.Duration
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests per key with the given burst.
func NewRateLimiter(perSecond, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		limits:    make(map[string]*clientLimiter),
		lastSweep: time.Now(),
		every:     time.Second / time.Duration(perSecond),
		burst:     burst,
		idle:      idleTimeout,
		now:       time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := rl.now()
	rl.mu.RLock()
	entry, ok := rl.limits[key]
	rl.mu.RUnlock()
	if ok {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if now.Sub(rl.lastSweep) >= rl.idle {
		rl.sweep(now)
	}
	if entry, ok := rl.limits[key]; ok {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}
	entry = &clientLimiter{limiter: rate.NewLimiter(rate.Every(rl.every), rl.burst)}
	entry.lastSeen.Store(now.UnixNano())
	rl.limits[key] = entry
	return entry.limiter
}

// sweep drops limiters idle for longer than rl.idle. rl.mu must be held.
func (rl *RateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-rl.idle).UnixNano()
	for key, entry := range rl.limits {
		if entry.lastSeen.Load() < cutoff {
			delete(rl.limits, key)
		}
	}
	rl.lastSweep = now
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limits)
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}

// Middleware rejects requests over the limit of their client IP with 429.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				code := apperrors.ErrCodeRateLimitExceeded
				return c.JSON(code.HTTPStatus(), map[string]any{
					"success": false,
					"error":   "rate limit exceeded",
					"code":    code,
				})
			}
			return next(c)
		}
	}
}

