package tracker

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/protocol"
)

const (
	whoCommand      = "/who"
	teleportSettle  = 500 * time.Millisecond
	captureDeadline = 5 * time.Second
)

var startPhrases = []string{
	"Protect your bed and destroy the enemy beds.",
	"Eliminate your opponents!",
	"Gather resources and equipment on your",
}

// Phase is the queue stats state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingTeleport
	PhaseQueryPending
	PhaseCapturing
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingTeleport:
		return "awaiting_teleport"
	case PhaseQueryPending:
		return "query_pending"
	case PhaseCapturing:
		return "capturing"
	default:
		return "idle"
	}
}

// RosterSink receives a captured roster with the game key current at the
// moment the capture ended.
type RosterSink func(names []string, gameKey string)

// QueueStats issues /who once per game, after the first teleport that
// follows a start phrase, and captures the reply into a roster.
type QueueStats struct {
	state  *GameState
	host   Host
	sink   RosterSink
	logger zerolog.Logger

	phase   Phase
	roster  []string
	settle  Timer
	timeout Timer
}

// NewQueueStats creates the orchestrator. sink may be nil.
func NewQueueStats(state *GameState, host Host, sink RosterSink, logger zerolog.Logger) *QueueStats {
	return &QueueStats{state: state, host: host, sink: sink, logger: logger}
}

// Phase reports the current state.
func (q *QueueStats) Phase() Phase {
	if q.phase == PhaseIdle && q.state.AwaitingTeleport {
		return PhaseAwaitingTeleport
	}
	return q.phase
}

// OnChat handles a cleaned chat line. It reports true when the line belongs
// to a /who reply and must not reach the client.
func (q *QueueStats) OnChat(clean string) bool {
	if q.phase == PhaseCapturing {
		if consumed := q.capture(clean); consumed {
			return true
		}
	}

	if q.state.HasTriggered || q.state.CurrentGameKey == "" || !containsAny(clean, startPhrases) {
		return false
	}
	if !q.host.Config().QueueStatsEnabled(q.state.CurrentGameKey) {
		return false
	}

	q.state.HasTriggered = true
	q.state.AwaitingTeleport = true
	q.logger.Debug().Str("game", q.state.CurrentGameKey).Msg("start phrase seen, awaiting teleport")
	return false
}

// OnPosition handles an absolute position frame.
func (q *QueueStats) OnPosition() {
	if !q.state.AwaitingTeleport || q.phase != PhaseIdle {
		return
	}
	q.state.AwaitingTeleport = false
	q.phase = PhaseQueryPending

	q.settle = q.host.AfterFunc(teleportSettle, func() {
		q.settle = nil
		if q.phase != PhaseQueryPending {
			return
		}
		q.phase = PhaseCapturing
		q.roster = q.roster[:0]
		q.host.SendUpstream(protocol.ServerboundChat(whoCommand))
		q.timeout = q.host.AfterFunc(captureDeadline, q.expire)
	})
}

func (q *QueueStats) capture(clean string) bool {
	switch {
	case strings.HasPrefix(clean, "ONLINE: "):
		for _, name := range strings.Split(strings.TrimPrefix(clean, "ONLINE: "), ", ") {
			if name = strings.TrimRight(strings.TrimSpace(name), "."); name != "" {
				q.roster = append(q.roster, name)
			}
		}
		if strings.HasSuffix(clean, ".") {
			q.finish()
		}
		return true

	case strings.HasPrefix(clean, "Team #"):
		if _, list, ok := strings.Cut(clean, ":"); ok {
			for _, name := range strings.Split(strings.TrimSpace(list), ", ") {
				if name = strings.TrimSpace(name); name != "" {
					q.roster = append(q.roster, name)
				}
			}
		}
		return true

	case strings.TrimSpace(clean) == "" && len(q.roster) > 0:
		q.finish()
		return true
	}
	return false
}

func (q *QueueStats) expire() {
	q.timeout = nil
	if q.phase != PhaseCapturing {
		return
	}
	q.logger.Warn().Int("captured", len(q.roster)).Msg("roster capture timed out")
	q.finish()
}

func (q *QueueStats) finish() {
	if q.timeout != nil {
		q.timeout.Stop()
		q.timeout = nil
	}
	names := q.roster
	q.roster = nil
	q.phase = PhaseIdle

	q.logger.Info().Int("players", len(names)).Msg("roster captured")
	if len(names) > 0 && q.sink != nil {
		q.sink(names, q.state.CurrentGameKey)
	}
}

// Reset abandons any pending query or capture.
func (q *QueueStats) Reset() {
	for _, t := range []Timer{q.settle, q.timeout} {
		if t != nil {
			t.Stop()
		}
	}
	q.settle, q.timeout = nil, nil
	q.phase = PhaseIdle
	q.roster = nil
}
