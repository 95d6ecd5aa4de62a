package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/centrodecompra/catalog/pkg/metrics"
)

// limitKey prefers the authenticated user and falls back to the client IP.
func limitKey(c *gin.Context) string {
	if sub := Subject(c); sub != "" {
		return "user:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func rejectRateLimited(c *gin.Context, retryAfter string) {
	c.Header("Retry-After", retryAfter)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
}

// RateLimitMiddleware enforces a token bucket per key within this process.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var limiters sync.Map // key -> *rate.Limiter
	return func(c *gin.Context) {
		key := limitKey(c)
		v, _ := limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
		if !v.(*rate.Limiter).Allow() {
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			rejectRateLimited(c, "1")
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
