package relay

import (
	"context"
	"time"

	"github.com/energizer-project/jagprox/internal/db"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/tracker"
)

// gameListener fans game lifecycle events out to the bus, the result
// store and the presence publisher. It runs on the loop; storage calls go
// through Session.Go.
type gameListener struct {
	s *Session
}

func (l *gameListener) GameChanged(key, previous string) {
	s := l.s
	s.gameKey.Store(key)
	s.emit(events.EventGameChanged, events.GamePayload{SessionID: s.id, GameKey: key, Previous: previous})

	now := time.Now()
	if s.opts.Presence != nil {
		s.opts.Presence.SetActivity(tracker.Activity{Player: s.profile.Name, GameKey: key, Since: now})
	}
	if key == "" || s.opts.Results == nil {
		return
	}
	results := s.opts.Results
	s.Go(func(ctx context.Context) {
		if err := results.StartGame(ctx, s.id, s.profile.UUID.String(), key, now); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record game start")
		}
	})
}

func (l *gameListener) GameEnded(key string) {
	s := l.s
	s.emit(events.EventGameEnded, events.GamePayload{SessionID: s.id, GameKey: key})
}

func (l *gameListener) GameResult(key string, outcome events.Outcome) {
	s := l.s
	now := time.Now()
	s.logger.Info().Str("game", key).Str("outcome", string(outcome)).Msg("game result")
	s.emit(events.EventGameResult, events.GameResultPayload{
		SessionID:  s.id,
		PlayerName: s.profile.Name,
		GameKey:    key,
		Outcome:    outcome,
		At:         now,
	})

	if s.opts.Results == nil {
		return
	}
	res := db.GameResult{
		SessionID:  s.id,
		PlayerUUID: s.profile.UUID.String(),
		PlayerName: s.profile.Name,
		GameKey:    key,
		Outcome:    string(outcome),
		RecordedAt: now,
	}
	results := s.opts.Results
	s.Go(func(ctx context.Context) {
		if _, err := results.Record(ctx, res); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record game result")
		}
	})
}
