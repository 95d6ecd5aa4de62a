package middleware

import (
	"net/http"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimitMiddleware_Basic(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()

	r := gin.New()
	r.Use(RedisRateLimitMiddleware(client, 1, 0, time.Second))
	r.GET("/r", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/r"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/r"))

	// window key expires
	m.FastForward(2 * time.Second)
	require.Equal(t, http.StatusOK, hit(r, "/r"))
}

func TestRedisRateLimitMiddleware_FailsOpen(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	defer client.Close()

	r := gin.New()
	r.Use(RedisRateLimitMiddleware(client, 1, 0, time.Second))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	m.Close()
	require.Equal(t, http.StatusOK, hit(r, "/r"))
	require.Equal(t, http.StatusOK, hit(r, "/r"))
}

func TestRedisRateLimitMiddleware_NilClientFallsBack(t *testing.T) {
	r := gin.New()
	r.Use(RedisRateLimitMiddleware(nil, 0.1, 1, time.Second))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, hit(r, "/r"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/r"))
}
