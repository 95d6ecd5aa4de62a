package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/centrodecompra/catalog/pkg/logger"
	"github.com/centrodecompra/catalog/pkg/metrics"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared by every instance
// using the same Redis. A window opens on the first request for a key and
// allows floor(rps*window)+burst requests. When Redis is unreachable requests
// are let through.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	if window < time.Second {
		window = time.Second
	}
	allowed := int64(rps*window.Seconds()) + int64(burst)
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "rl:" + limitKey(c)

		cnt, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warnf("rate limit: redis unavailable, allowing request: %v", err)
			c.Next()
			return
		}
		if cnt == 1 {
			_ = client.PExpire(ctx, key, window).Err()
		}
		if cnt > allowed {
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			rejectRateLimited(c, retryAfter)
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
