package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimit configures a token bucket.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller key.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
	pruned   time.Time
}

// NewRateLimiter constructs limiter with the given bucket settings.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

// Middleware limits requests per store operator. Requests without a principal are keyed by client IP.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(callerKey(c)) {
			c.Header("Retry-After", "60")
			abort(c, http.StatusTooManyRequests, "rate_limited")
			return
		}
		c.Next()
	}
}

// Allow consumes one token of the key's bucket.
func (r *RateLimiter) Allow(key string) bool {
	now := r.clockNow()
	return r.obtainLimiter(key, now).AllowN(now, 1)
}

func (r *RateLimiter) obtainLimiter(key string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.pruned) > limiterIdleTTL {
		for id, entry := range r.visitors {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(r.visitors, id)
			}
		}
		r.pruned = now
	}

	entry, ok := r.visitors[key]
	if ok {
		entry.lastSeen = now
		return entry.limiter
	}
	perSecond := r.limit.RequestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := r.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[key] = &rateEntry{limiter: limiter, lastSeen: now}
	return limiter
}

func callerKey(c *gin.Context) string {
	if p, ok := Principal(c); ok {
		return p.StoreID + "/" + p.Subject
	}
	return c.ClientIP()
}
