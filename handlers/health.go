package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/centrodecompra/catalog/pkg/logger"
)

// ReadyCheck reports whether a dependency the service needs is reachable.
type ReadyCheck func(ctx context.Context) error

// RegisterHealth mounts /health (liveness) and /ready (all checks pass).
func RegisterHealth(g *gin.Engine, checks map[string]ReadyCheck) {
	g.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	g.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warnf("ready: %s: %v", name, err)
				failed[name] = "unavailable"
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}
