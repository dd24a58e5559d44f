package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware records serve-mode HTTP metrics for each request.
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		m.RecordHTTPRequest(endpoint, c.Request.Method, strconv.Itoa(c.Writer.Status()))
	}
}
