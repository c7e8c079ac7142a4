package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/azhur-katering/katering-api/internal/service"
)

// Metrics captures per-request duration and counts.
func Metrics(metrics *service.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.ObserveRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
