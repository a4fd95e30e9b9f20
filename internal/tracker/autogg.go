package tracker

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/protocol"
)

const (
	defaultGGMessage = "gg"
	defaultGGDelay   = 1500 * time.Millisecond
)

var ggKeywords = []string{
	"VICTORY!",
	"YOU WIN!",
	"GAME OVER",
	"DRAW!",
	"1ST PLACE",
	"#1 VICTORY",
	"WINNER",
	"GAMEOVER!",
	"DEFEAT",
}

// AutoGG sends the configured farewell once per game when an end-of-game
// title appears.
type AutoGG struct {
	host   Host
	logger zerolog.Logger

	sent    bool
	pending Timer
}

// NewAutoGG creates the detector.
func NewAutoGG(host Host, logger zerolog.Logger) *AutoGG {
	return &AutoGG{host: host, logger: logger}
}

// OnTitle handles a title frame.
func (g *AutoGG) OnTitle(t protocol.Title) {
	if t.Action != protocol.TitleSet || g.sent {
		return
	}
	cfg := g.host.Config().GetAutoGG()
	if !cfg.Enabled {
		return
	}

	title := strings.ToUpper(strings.TrimSpace(protocol.CleanText(t.JSON)))
	if !containsAny(title, ggKeywords) {
		return
	}
	g.sent = true

	message := cfg.Message
	if message == "" {
		message = defaultGGMessage
	}
	delay := time.Duration(cfg.Delay) * time.Millisecond
	if cfg.Delay < 0 {
		delay = defaultGGDelay
	}

	g.pending = g.host.AfterFunc(delay, func() {
		g.pending = nil
		g.host.SendUpstream(protocol.ServerboundChat("/ac " + message))
		g.logger.Info().Str("message", message).Msg("auto gg sent")
	})
}

// Sent reports whether the farewell fired for the current game.
func (g *AutoGG) Sent() bool {
	return g.sent
}

// Rearm allows the next game's farewell. A scheduled message still goes out.
func (g *AutoGG) Rearm() {
	g.sent = false
}

// Reset re-arms and cancels any scheduled message.
func (g *AutoGG) Reset() {
	g.sent = false
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}
