// README: Prometheus request counter keyed by route template.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"staybook/internal/metrics"
)

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.IncHTTP(route, strconv.Itoa(c.Writer.Status()))
	}
}
