// Package directory resolves player identities, Hypixel statistics and
// online status for the relay's lookup commands.
package directory

import (
	"context"
	"errors"
	"image"

	"github.com/google/uuid"

	"github.com/energizer-project/jagprox/internal/stats"
)

var (
	// ErrNotFound means the name or uuid has no record.
	ErrNotFound = errors.New("player not found")
	// ErrRateLimited means an upstream API answered 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable covers transport failures and unexpected responses.
	ErrUnavailable = errors.New("directory unavailable")
)

// Identity is a resolved Minecraft account.
type Identity struct {
	UUID uuid.UUID
	Name string
}

// Status is a player's current network presence.
type Status struct {
	Online   bool
	Hidden   bool // online but the API hides the session
	GameType string
	Mode     string
	Map      string
	Rank     string
}

// PlayerDirectory is the lookup surface used by commands and trackers.
type PlayerDirectory interface {
	ResolveIdentity(ctx context.Context, name string) (Identity, error)
	FetchStats(ctx context.Context, id uuid.UUID) (*stats.Player, error)
	FetchStatus(ctx context.Context, id uuid.UUID) (*Status, error)
	FetchGuild(ctx context.Context, id uuid.UUID) (string, error)
	FetchAvatar(ctx context.Context, id uuid.UUID) (image.Image, error)
	FetchTabSuffix(ctx context.Context, name, gameKey string) (string, error)
}

// Describe renders a lookup error as the chat line shown to the player.
func Describe(err error, name string) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "§cPlayer '" + name + "' not found."
	case errors.Is(err, ErrRateLimited):
		return "§cMojang API rate limit reached."
	default:
		return "§cDirectory unavailable."
	}
}
