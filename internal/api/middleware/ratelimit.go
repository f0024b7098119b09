package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Token bucket
// ──────────────────────────────────────────────────────────────────────────────

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// limiter holds one bucket per key.
type limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64
	now     func() time.Time
}

// newLimiter allows rps requests per second per key with a burst of
// max(10, rps).
func newLimiter(rps int) *limiter {
	burst := float64(rps)
	if burst < 10 {
		burst = 10
	}
	return &limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// allow deducts one token from key's bucket, reporting false when it is empty.
func (l *limiter) allow(key string) bool {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		if b, ok = l.buckets[key]; !ok {
			b = &bucket{tokens: l.burst, lastRefill: l.now()}
			l.buckets[key] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictIdle drops buckets untouched since cutoff.
func (l *limiter) evictIdle(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.mu.Lock()
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, key)
		}
		b.mu.Unlock()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Keys
// ──────────────────────────────────────────────────────────────────────────────

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByIP charges the client IP.
func ByIP(c *gin.Context) string { return c.ClientIP() }

// ByCaller charges the authenticated caller, falling back to the client IP
// on routes without JWTMiddleware.
func ByCaller(c *gin.Context) string {
	if caller := GetCaller(c); caller != (common.Address{}) {
		return caller.Hex()
	}
	return c.ClientIP()
}

// ──────────────────────────────────────────────────────────────────────────────
// Middleware
// ──────────────────────────────────────────────────────────────────────────────

// RateLimitMiddleware enforces a token bucket of rps requests per second per
// key. Requests over the limit receive 429 Too Many Requests.
func RateLimitMiddleware(rps int, key KeyFunc) gin.HandlerFunc {
	l := newLimiter(rps)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			l.evictIdle(l.now().Add(-10 * time.Minute))
		}
	}()

	return rateLimitHandler(l, key)
}

func rateLimitHandler(l *limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(key(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests, please slow down",
				"code":    "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
