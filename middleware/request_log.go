package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"insightflow/api/logger"
	"insightflow/api/observability"
)

// CacheStatusKey is set by handlers that serve a cached snapshot.
const CacheStatusKey = "cache_status"

// RequestLogger logs every request and feeds the prometheus collectors and
// the timing buffer.
func RequestLogger(log *logger.Logger, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		cacheStatus := c.GetString(CacheStatusKey)
		m.ObserveRequest(c.Request.Method, route, status, latency, cacheStatus)

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", route,
			"status", status,
			"duration_ms", latency.Milliseconds(),
		}
		if cacheStatus != "" {
			fields = append(fields, "cache", cacheStatus)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}
