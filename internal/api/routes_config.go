package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/events"
)

// editableConfig is the part of the settings the admin API exposes.
type editableConfig struct {
	Aliases    map[string]string   `json:"aliases"`
	Commands   map[string]string   `json:"commands"`
	QueueStats map[string]bool     `json:"queue_stats"`
	AutoGG     config.AutoGGConfig `json:"auto_gg"`
}

// configPatch replaces every section that is present.
type configPatch struct {
	Aliases    map[string]string    `json:"aliases"`
	Commands   map[string]string    `json:"commands"`
	QueueStats map[string]bool      `json:"queue_stats"`
	AutoGG     *config.AutoGGConfig `json:"auto_gg"`
}

func (p configPatch) sections() []string {
	var out []string
	if p.Aliases != nil {
		out = append(out, "aliases")
	}
	if p.Commands != nil {
		out = append(out, "commands")
	}
	if p.QueueStats != nil {
		out = append(out, "queue_stats")
	}
	if p.AutoGG != nil {
		out = append(out, "auto_gg")
	}
	return out
}

func (p configPatch) apply(s *config.Settings) {
	if p.Aliases != nil {
		s.Aliases = p.Aliases
	}
	if p.Commands != nil {
		s.Commands = p.Commands
	}
	if p.QueueStats != nil {
		s.QueueStats = p.QueueStats
	}
	if p.AutoGG != nil {
		s.AutoGG = *p.AutoGG
	}
}

func (s *Server) editable() editableConfig {
	snap := s.cfg.Snapshot()
	return editableConfig{
		Aliases:    snap.Aliases,
		Commands:   snap.Commands,
		QueueStats: snap.QueueStats,
		AutoGG:     snap.AutoGG,
	}
}

// handleGetConfig returns the editable sections.
func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.editable())
}

// handleSetConfig validates and saves the sections present in the body.
func (s *Server) handleSetConfig(c *gin.Context) {
	var patch configPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sections := patch.sections()
	if len(sections) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no editable section in request"})
		return
	}

	candidate := s.cfg.Snapshot()
	patch.apply(&candidate)
	if problems := sectionErrors(config.ValidateSettings(candidate), sections); len(problems) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid configuration", "fields": problems})
		return
	}

	if err := s.cfg.Update(patch.apply); err != nil {
		s.logger.Error().Err(err).Msg("failed to save config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	for _, section := range sections {
		s.bus.Emit(context.Background(), events.New(events.EventConfigChanged, "api",
			events.ConfigChangedPayload{Section: section, Origin: "api"}))
	}
	s.logger.Info().Strs("sections", sections).Str("client_ip", c.ClientIP()).Msg("configuration updated")

	c.JSON(http.StatusOK, s.editable())
}

// sectionErrors keeps the validation errors that belong to the edited
// sections, keyed by field.
func sectionErrors(result *config.ValidationResult, sections []string) map[string]string {
	out := make(map[string]string)
	for _, e := range result.Errors {
		for _, section := range sections {
			if e.Field == section || strings.HasPrefix(e.Field, section+".") {
				out[e.Field] = e.Message
			}
		}
	}
	return out
}
