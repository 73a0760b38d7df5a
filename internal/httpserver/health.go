package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"registry":    s.reg.Stats(),
		"queue_depth": s.q.Len(),
	})
}
