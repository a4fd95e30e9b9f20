// Package scheduler runs the relay's periodic maintenance: stats-cache and
// result pruning plus the presence heartbeat.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/util"
)

const (
	// PurgeInterval is how often expired cache rows and old results go.
	PurgeInterval    = time.Hour
	defaultHeartbeat = 60 * time.Second
)

// Purger deletes rows older than a cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes game results older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Heartbeater publishes a liveness message.
type Heartbeater interface {
	Heartbeat()
}

// Scheduler manages periodic background tasks. Any dependency may be nil,
// which disables the task that needs it.
type Scheduler struct {
	cfg       *config.Config
	cache     Purger
	results   Pruner
	heartbeat Heartbeater
	now       func() time.Time
	logger    zerolog.Logger
}

// NewScheduler creates a task scheduler.
func NewScheduler(cfg *config.Config, cache Purger, results Pruner, heartbeat Heartbeater) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		cache:     cache,
		results:   results,
		heartbeat: heartbeat,
		now:       time.Now,
		logger:    util.ComponentLogger("scheduler"),
	}
}

// Start runs the scheduled tasks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Msg("scheduler started")

	if s.cache != nil || s.results != nil {
		go s.runLoop(ctx, "purge", func() time.Duration { return PurgeInterval }, s.purge)
	}
	if s.heartbeat != nil {
		go s.runLoop(ctx, "heartbeat", s.heartbeatInterval, s.heartbeat.Heartbeat)
	}

	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// runLoop calls task every interval(). The interval is re-read each round
// so config reloads take effect.
func (s *Scheduler) runLoop(ctx context.Context, name string, interval func() time.Duration, task func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval()):
			s.logger.Debug().Str("task", name).Msg("running scheduled task")
			task()
		}
	}
}

func (s *Scheduler) heartbeatInterval() time.Duration {
	if sec := s.cfg.GetPresence().HeartbeatSec; sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return defaultHeartbeat
}

// purge removes expired stats-cache rows and results past retention.
func (s *Scheduler) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	now := s.now()

	if s.cache != nil {
		ttl := time.Duration(s.cfg.GetDirectory().CacheTTLMinutes) * time.Minute
		if n, err := s.cache.Purge(ctx, now.Add(-ttl)); err != nil {
			s.logger.Warn().Err(err).Msg("stats cache purge failed")
		} else if n > 0 {
			s.logger.Info().Int64("rows", n).Msg("stats cache purged")
		}
	}

	days := s.cfg.GetStorage().ResultRetentionDays
	if s.results != nil && days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		if n, err := s.results.Prune(ctx, cutoff); err != nil {
			s.logger.Warn().Err(err).Msg("result pruning failed")
		} else if n > 0 {
			s.logger.Info().Int64("results", n).Time("before", cutoff).Msg("old game results pruned")
		}
	}
}
