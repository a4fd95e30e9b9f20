package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handlePing is an unauthenticated liveness check.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "jagprox",
	})
}
