package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taxrates/taxrates-api/internal/metrics"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request with its correlation ID and, when
// m is non-nil, counts the request by route and status.
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if m != nil {
			m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		if shouldSkipLogging(c.Request.URL.Path) {
			return
		}

		LogWithCorrelationID(c.Request.Context()).Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func shouldSkipLogging(path string) bool {
	return path == "/health" || path == "/metrics"
}
