package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
)

// requireWriteRole rejects callers whose X-Role is configured read-only.
// A missing header is allowed.
func (s *HTTPServer) requireWriteRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetHeader(common.RoleHeaderName)
		if _, ro := s.readOnly[role]; ro && role != "" {
			s.logger.Warn(c.Request.Context(), "write rejected for read-only role", "role", role)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": common.ErrorForbidden.Error()})
			return
		}
		c.Next()
	}
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"role", c.GetHeader(common.RoleHeaderName),
			"duration", time.Since(start),
		)
	}
}
