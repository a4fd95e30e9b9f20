package tracker

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/directory"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/stats"
)

const (
	resultDebounce   = 5 * time.Second
	opponentCooldown = 5 * time.Second
	winnerKeyword    = "WINNER!"
)

var nonGameContexts = []string{"Lobby", "Replay", "Spectator"}

// GameResultTracker classifies "WINNER!" announcements as a win or loss
// for the local player. Ambiguous lines are skipped.
type GameResultTracker struct {
	host     Host
	listener Listener
	logger   zerolog.Logger
	now      func() time.Time

	last time.Time
}

// NewGameResultTracker creates the tracker. listener may be nil.
func NewGameResultTracker(host Host, listener Listener, logger zerolog.Logger) *GameResultTracker {
	if listener == nil {
		listener = nopListener{}
	}
	return &GameResultTracker{host: host, listener: listener, logger: logger, now: time.Now}
}

// OnChat inspects a cleaned chat line in the context of the current game.
func (r *GameResultTracker) OnChat(clean, gameKey string) {
	idx := strings.Index(clean, winnerKeyword)
	if idx < 0 {
		return
	}
	if gameKey == "" || gameKey == "limbo" || containsAny(clean, nonGameContexts) {
		return
	}
	now := r.now()
	if !r.last.IsZero() && now.Sub(r.last) < resultDebounce {
		return
	}

	before := strings.TrimSpace(clean[:idx])
	self := r.host.Profile().Name

	var outcome events.Outcome
	switch {
	case self != "" && strings.Contains(before, self):
		outcome = events.OutcomeWin
	case before != "":
		outcome = events.OutcomeLoss
	default:
		return
	}

	r.last = now
	r.logger.Info().Str("game", gameKey).Str("outcome", string(outcome)).Msg("game result detected")
	r.host.Chat("§a[GameTrack] §7Recorded game result: §e" + strings.ToUpper(string(outcome)) + "§7.")
	r.listener.GameResult(gameKey, outcome)
}

// Reset clears the debounce window.
func (r *GameResultTracker) Reset() {
	r.last = time.Time{}
}

var opponentLine = regexp.MustCompile(`Opponent: (.+)`)

// OpponentWatcher prints a one-line stat summary for a duels opponent when
// the match announces them.
type OpponentWatcher struct {
	host   Host
	logger zerolog.Logger
	now    func() time.Time

	last time.Time
}

// NewOpponentWatcher creates the watcher.
func NewOpponentWatcher(host Host, logger zerolog.Logger) *OpponentWatcher {
	return &OpponentWatcher{host: host, logger: logger, now: time.Now}
}

// OnChat checks a cleaned chat line for an opponent announcement.
func (o *OpponentWatcher) OnChat(clean, gameKey string) {
	m := opponentLine.FindStringSubmatch(clean)
	if m == nil {
		return
	}
	name := strings.TrimSpace(m[1])
	if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[len(fields)-1]
	}
	if name == "" || strings.EqualFold(name, o.host.Profile().Name) {
		return
	}
	now := o.now()
	if !o.last.IsZero() && now.Sub(o.last) < opponentCooldown {
		return
	}
	dir := o.host.Directory()
	if dir == nil {
		return
	}
	o.last = now

	key := "duels"
	if mode, ok := stats.Lookup(gameKey); ok && mode.APIName == "Duels" {
		key = mode.Key
	}

	o.host.Go(func(ctx context.Context) {
		line, err := opponentSummary(ctx, dir, name, key)
		if err != nil {
			o.logger.Debug().Err(err).Str("opponent", name).Msg("opponent lookup failed")
			if errors.Is(err, directory.ErrRateLimited) {
				o.host.Post(func() { o.host.Chat(directory.Describe(err, name)) })
			}
			return
		}
		o.host.Post(func() { o.host.Chat("§eOpponent: " + line) })
	})
}

func opponentSummary(ctx context.Context, dir directory.PlayerDirectory, name, key string) (string, error) {
	id, err := dir.ResolveIdentity(ctx, name)
	if err != nil {
		return "", err
	}
	p, err := dir.FetchStats(ctx, id.UUID)
	if err != nil {
		return "", err
	}
	return stats.SummaryLine(p, key, id.Name), nil
}

// Reset clears the cooldown.
func (o *OpponentWatcher) Reset() {
	o.last = time.Time{}
}
