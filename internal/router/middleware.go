package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies at limit bytes. Requests that declare a larger
// Content-Length are rejected up front; others fail while being read.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "Request body too large."})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
