package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studylake/studylake/pkg/metrics"
)

// MetricsMiddleware records request count and latency per endpoint. The
// endpoint label is the route pattern, not the raw path, so path parameters
// do not explode the cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(endpoint, c.Request.Method, strconv.Itoa(c.Writer.Status()))
		metrics.RecordHTTPRequestDuration(endpoint, time.Since(start).Seconds())
	}
}
