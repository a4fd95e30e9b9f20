package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/jagprox/internal/db"
	"github.com/energizer-project/jagprox/internal/util"
)

const (
	defaultGamesLimit = 20
	maxGamesLimit     = 200
)

// handleStatus reports the active session, process usage and host info.
func (s *Server) handleStatus(c *gin.Context) {
	proxy := s.cfg.GetProxy()
	body := gin.H{
		"listen":   proxy.Listen,
		"upstream": proxy.Upstream,
		"process":  util.GetProcessUsage(),
		"system":   util.GetSystemInfo(),
	}
	if snap, ok := s.sessions.Active(); ok {
		body["session"] = snap
	} else {
		body["session"] = nil
	}
	c.JSON(http.StatusOK, body)
}

// handleGames returns recent results and a per-game tally. Query
// parameters: limit (default 20) and since_hours (default 24).
func (s *Server) handleGames(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "game history is unavailable"})
		return
	}

	limit := defaultGamesLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxGamesLimit)
	}
	hours := 24
	if v := c.Query("since_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since_hours"})
			return
		}
		hours = n
	}

	ctx := c.Request.Context()
	recent, err := s.results.Recent(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read recent games")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read games"})
		return
	}
	tally, err := s.results.Summary(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to summarise games")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read games"})
		return
	}
	if recent == nil {
		recent = []db.GameResult{}
	}
	if tally == nil {
		tally = []db.GameTally{}
	}

	c.JSON(http.StatusOK, gin.H{
		"recent":      recent,
		"summary":     tally,
		"since_hours": hours,
	})
}
