// Package relay pumps frames between the game client and the upstream
// server. Each Session runs its trackers and command handlers on a single
// loop goroutine; the Registry keeps at most one Session alive.
package relay

import (
	"context"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/energizer-project/jagprox/internal/protocol"
)

// Conn is one framed, logged-in leg of a session. *net.Conn from go-mc
// satisfies it.
type Conn interface {
	ReadPacket(p *pk.Packet) error
	WritePacket(p pk.Packet) error
	Close() error
}

// thresholdSetter is implemented by legs that support compression.
type thresholdSetter interface {
	SetThreshold(threshold int)
}

// Dialer opens and logs in the upstream leg for a client profile. It
// returns the profile the server confirmed.
type Dialer interface {
	Dial(ctx context.Context, profile protocol.Profile) (Conn, protocol.Profile, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, profile protocol.Profile) (Conn, protocol.Profile, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, profile protocol.Profile) (Conn, protocol.Profile, error) {
	return f(ctx, profile)
}
