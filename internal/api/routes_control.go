package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultKickReason = "Disconnected by the proxy operator."

// handleKick disconnects the active session.
func (s *Server) handleKick(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if body.Reason == "" {
		body.Reason = defaultKickReason
	}

	if !s.sessions.Kick(body.Reason) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}

	s.logger.Info().Str("reason", body.Reason).Str("client_ip", c.ClientIP()).Msg("session kicked from admin API")
	c.JSON(http.StatusOK, gin.H{"status": "kicked"})
}
