package tracker

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/stats"
)

var gameOverPhrases = []string{
	"VICTORY!",
	"GAME END",
	"You died!",
	"You have been eliminated!",
	"You won!",
	"Draw!",
}

// GameTracker derives the current game from scoreboard objective titles and
// re-arms per-game triggers when a game-over phrase shows in chat.
type GameTracker struct {
	state    *GameState
	listener Listener
	logger   zerolog.Logger

	endedFired bool
}

// NewGameTracker creates a game tracker over state. listener may be nil.
func NewGameTracker(state *GameState, listener Listener, logger zerolog.Logger) *GameTracker {
	if listener == nil {
		listener = nopListener{}
	}
	return &GameTracker{state: state, listener: listener, logger: logger}
}

// OnObjective handles a scoreboard objective frame.
func (g *GameTracker) OnObjective(obj protocol.ScoreboardObjective) {
	if obj.Mode != protocol.ObjectiveCreate && obj.Mode != protocol.ObjectiveUpdate {
		return
	}
	key, ok := stats.KeyForTitle(protocol.StripCodes(obj.Value))
	if !ok || key == g.state.CurrentGameKey {
		return
	}

	previous := g.state.CurrentGameKey
	g.state.CurrentGameKey = key
	g.state.rearm()
	g.endedFired = false

	g.logger.Info().Str("game", key).Str("previous", previous).Msg("game changed")
	g.listener.GameChanged(key, previous)
}

// OnChat scans a cleaned chat line for game-over phrases.
func (g *GameTracker) OnChat(clean string) {
	if !containsAny(clean, gameOverPhrases) {
		return
	}
	if g.state.HasTriggered {
		g.logger.Debug().Msg("game over, re-arming triggers")
	}
	g.state.rearm()

	if key := g.state.CurrentGameKey; key != "" && !g.endedFired {
		g.endedFired = true
		g.listener.GameEnded(key)
	}
}

// Reset forgets the current game.
func (g *GameTracker) Reset() {
	g.state.Reset()
	g.endedFired = false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
