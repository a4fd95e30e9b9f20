// Package tracker holds the packet-driven observers that derive session
// state from upstream frames and react to it. Every tracker runs on its
// session's loop goroutine, so none of them lock.
package tracker

import (
	"context"
	"time"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/directory"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/protocol"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Host is the session surface trackers act through. Methods other than
// Post are only called from the session loop.
type Host interface {
	// SendUpstream queues a frame for the server.
	SendUpstream(p pk.Packet)
	// SendClient queues a frame for the game client.
	SendClient(p pk.Packet)
	// Chat shows a tagged system line to the player.
	Chat(text string)
	// Post runs fn on the loop. It reports false once the session is closed.
	Post(fn func()) bool
	// AfterFunc runs fn on the loop after d, unless the session closed first.
	AfterFunc(d time.Duration, fn func()) Timer
	// Go runs work off the loop with the process context.
	Go(work func(ctx context.Context))

	Config() *config.Config
	Directory() directory.PlayerDirectory
	Profile() protocol.Profile
}

// Listener receives game lifecycle events. Calls happen on the loop and
// must not block.
type Listener interface {
	GameChanged(key, previous string)
	GameEnded(key string)
	GameResult(key string, outcome events.Outcome)
}

// Activity is the session state shown by a presence publisher.
type Activity struct {
	Player  string
	GameKey string
	Since   time.Time
}

// Presence publishes the local player's activity. SetActivity must not
// block.
type Presence interface {
	SetActivity(a Activity)
}

type nopListener struct{}

func (nopListener) GameChanged(string, string)        {}
func (nopListener) GameEnded(string)                  {}
func (nopListener) GameResult(string, events.Outcome) {}

// GameState is shared by the game tracker and the queue stats orchestrator.
type GameState struct {
	CurrentGameKey   string
	HasTriggered     bool
	AwaitingTeleport bool
}

// Reset returns the state to its initial value.
func (g *GameState) Reset() {
	*g = GameState{}
}

// rearm clears the per-game trigger flags.
func (g *GameState) rearm() {
	g.HasTriggered = false
	g.AwaitingTeleport = false
}
