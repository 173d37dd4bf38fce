package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Fyongrou/ScoreV1/pkg/metrics"
)

// Metrics 请求计数与耗时（Prometheus），按路由模板聚合
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.Requests().WithLabelValues(c.Request.Method, route, status).Inc()
		metrics.RequestDuration().WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
