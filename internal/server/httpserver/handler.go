package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
)

type pullQuery struct {
	Since int64 `form:"since" binding:"gte=0"`
}

func (s *HTTPServer) health(c *gin.Context) {
	if err := s.sync.Ping(c.Request.Context()); err != nil {
		s.logger.Warn(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) push(c *gin.Context) {
	var req common.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.sync.Push(c.Request.Context(), req.Changes)
	if err != nil {
		s.logger.Error(c.Request.Context(), "push failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": common.ErrorInternal.Error()})
		return
	}
	c.JSON(http.StatusOK, common.PushResponse{Results: results})
}

func (s *HTTPServer) pull(c *gin.Context) {
	var q pullQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := s.sync.Pull(c.Request.Context(), q.Since)
	if err != nil {
		s.logger.Error(c.Request.Context(), "pull failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": common.ErrorInternal.Error()})
		return
	}
	if items == nil {
		items = []common.RemoteItem{}
	}
	c.JSON(http.StatusOK, common.PullResponse{Items: items})
}
