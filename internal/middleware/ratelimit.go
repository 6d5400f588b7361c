package middleware

import (
	"net/http"
	"sync"
	"time"

	"aigateway/internal/response"

	"github.com/gin-gonic/gin"
)

// bucket implements a token bucket for one caller.
type bucket struct {
	tokens     int
	capacity   int
	refillTime time.Duration
	lastRefill time.Time
	lastSeen   time.Time
}

func (b *bucket) allow(now time.Time) bool {
	b.refill(now)
	b.lastSeen = now
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.refillTime {
		return
	}
	added := int(elapsed / b.refillTime)
	if b.tokens+added > b.capacity {
		b.tokens = b.capacity
	} else {
		b.tokens += added
	}
	b.lastRefill = now.Add(-(elapsed % b.refillTime))
}

// RateLimiter bounds per-caller request rates with a mutex-guarded map of
// token buckets. State is shared across all requests; construct one limiter
// and inject it.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter allows capacity requests per window for each caller key.
func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether the caller identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     rl.capacity,
			capacity:   rl.capacity,
			refillTime: rl.window / time.Duration(rl.capacity),
			lastRefill: now,
		}
		rl.buckets[key] = b
	}
	return b.allow(now)
}

// PruneIdle drops buckets not seen within maxIdle and returns how many were
// removed. Called periodically by the scheduler to bound memory.
func (rl *RateLimiter) PruneIdle(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	pruned := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			pruned++
		}
	}
	return pruned
}

// RateLimit rejects over-limit callers with 429 before any handler runs.
// Callers are keyed by client IP; the limiter sits ahead of auth in the
// chain, so no verified identity exists yet when it runs.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.CodeRateLimited, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
