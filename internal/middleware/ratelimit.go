package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/simp-lee/backoffice/internal/pkg"
)

// limiterIdleExpiry is how long an unused per-client limiter is kept.
const limiterIdleExpiry = time.Hour

// IPRateLimiter hands out one token bucket per client IP. Idle buckets are
// evicted by the cache janitor.
type IPRateLimiter struct {
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter creates a limiter allowing rps requests per second with the
// given burst for each client IP.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: cache.New(limiterIdleExpiry, time.Minute),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request from ip may proceed now.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.get(ip).Allow()
}

func (l *IPRateLimiter) get(ip string) *rate.Limiter {
	if v, ok := l.limiters.Get(ip); ok {
		lim := v.(*rate.Limiter)
		// Refresh the idle expiry.
		l.limiters.SetDefault(ip, lim)
		return lim
	}
	lim := rate.NewLimiter(l.rate, l.burst)
	if err := l.limiters.Add(ip, lim, cache.DefaultExpiration); err != nil {
		// Another request created it first.
		if v, ok := l.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// RateLimit returns a gin middleware that rejects requests over the per-IP
// limit with 429. htmx requests get an error toast instead of a JSON body.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(rps, burst)

	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		if pkg.IsHTMX(c) {
			pkg.ErrorToast(c, "Too many requests, please slow down")
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":    http.StatusTooManyRequests,
			"message": "too many requests",
			"data":    nil,
		})
	}
}
