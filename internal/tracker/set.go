package tracker

import (
	"context"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/stats"
)

// Hooks are optional session-level callbacks. Any field may be nil.
type Hooks struct {
	Listener Listener
	Alert    AlertSink
	Roster   RosterSink
}

// Set is one session's tracker chain. HandleUpstream runs every tracker
// in a fixed order over each clientbound frame.
type Set struct {
	host   Host
	logger zerolog.Logger
	hooks  Hooks

	Game     *GameState
	Games    *GameTracker
	Queue    *QueueStats
	Party    *PartyCapture
	Results  *GameResultTracker
	Opponent *OpponentWatcher
	Tab      *TabList
	Entities *EntityTracker
	Alert    *TabAlert
	Suffix   *SuffixSynthesizer
	AutoGG   *AutoGG
}

// NewSet wires a full tracker chain for host.
func NewSet(host Host, hooks Hooks, logger zerolog.Logger) *Set {
	s := &Set{host: host, logger: logger, hooks: hooks, Game: &GameState{}}
	if s.hooks.Listener == nil {
		s.hooks.Listener = nopListener{}
	}

	s.Tab = NewTabList()
	s.Entities = NewEntityTracker(s.Tab)
	s.Suffix = NewSuffixSynthesizer(host, logger)
	s.AutoGG = NewAutoGG(host, logger)
	s.Games = NewGameTracker(s.Game, s, logger)
	s.Queue = NewQueueStats(s.Game, host, s.onRoster, logger)
	s.Party = NewPartyCapture(host, logger)
	s.Results = NewGameResultTracker(host, s.hooks.Listener, logger)
	s.Opponent = NewOpponentWatcher(host, logger)
	s.Alert = NewTabAlert(host, s.Entities, hooks.Alert, logger)
	return s
}

// GameChanged re-arms the farewell before passing the change on.
func (s *Set) GameChanged(key, previous string) {
	s.AutoGG.Rearm()
	s.hooks.Listener.GameChanged(key, previous)
}

// GameEnded passes the event on.
func (s *Set) GameEnded(key string) {
	s.hooks.Listener.GameEnded(key)
}

// GameResult passes the event on.
func (s *Set) GameResult(key string, outcome events.Outcome) {
	s.hooks.Listener.GameResult(key, outcome)
}

func (s *Set) onRoster(names []string, gameKey string) {
	s.Suffix.Apply(names, gameKey)
	s.PrintRoster(names, gameKey)
	if s.hooks.Roster != nil {
		s.hooks.Roster(names, gameKey)
	}
}

// PrintRoster shows a one-line stat digest per player, framed by rules.
func (s *Set) PrintRoster(names []string, gameKey string) {
	dir := s.host.Directory()
	if dir == nil {
		return
	}
	names = append([]string(nil), names...)

	s.host.Go(func(ctx context.Context) {
		lines := make([]string, 0, len(names))
		for _, name := range names {
			id, err := dir.ResolveIdentity(ctx, name)
			if err != nil {
				lines = append(lines, "§7"+name+" §c(nicked?)")
				continue
			}
			p, err := dir.FetchStats(ctx, id.UUID)
			if err != nil {
				lines = append(lines, "§7"+id.Name+" §c(no stats)")
				continue
			}
			lines = append(lines, stats.SummaryLine(p, gameKey, id.Name))
		}
		s.host.Post(func() {
			s.host.Chat(stats.Separator)
			for _, line := range lines {
				s.host.Chat(line)
			}
			s.host.Chat(stats.Separator)
		})
	})
}

// HandleUpstream runs the chain over a clientbound frame. It returns the
// frame to forward, which may be rewritten, and false when a capture
// consumed it.
func (s *Set) HandleUpstream(p pk.Packet) (pk.Packet, bool) {
	switch p.ID {
	case protocol.ClientDisconnect:
		s.Games.Reset()
		s.Queue.Reset()
		s.Party.Reset()

	case protocol.ClientJoinGame, protocol.ClientRespawn:
		s.AutoGG.Rearm()

	case protocol.ClientScoreboardObj:
		obj, err := protocol.DecodeScoreboardObjective(p)
		if err != nil {
			s.malformed(p, err)
			break
		}
		s.Games.OnObjective(obj)

	case protocol.ClientChat:
		return s.handleChat(p)

	case protocol.ClientPlayerListItem:
		return s.handlePlayerList(p), true

	case protocol.ClientSpawnPlayer:
		if spawn, err := protocol.DecodeSpawnPlayer(p); err == nil {
			s.Entities.OnSpawn(spawn)
		} else {
			s.malformed(p, err)
		}

	case protocol.ClientEntityTeleport:
		if tp, err := protocol.DecodeEntityTeleport(p); err == nil {
			s.Entities.OnTeleport(tp)
		} else {
			s.malformed(p, err)
		}

	case protocol.ClientEntityRelativeMove, protocol.ClientEntityMoveLook:
		if mv, err := protocol.DecodeEntityMove(p); err == nil {
			s.Entities.OnMove(mv)
		} else {
			s.malformed(p, err)
		}

	case protocol.ClientDestroyEntities:
		if ids, err := protocol.DecodeDestroyEntities(p); err == nil {
			s.Entities.OnDestroy(ids)
		} else {
			s.malformed(p, err)
		}

	case protocol.ClientPlayerPosition:
		pos, err := protocol.DecodePlayerPosition(p)
		if err != nil {
			s.malformed(p, err)
			break
		}
		s.Queue.OnPosition()
		s.Entities.OnPosition(pos)

	case protocol.ClientTitle:
		if t, err := protocol.DecodeTitle(p); err == nil {
			s.AutoGG.OnTitle(t)
		} else {
			s.malformed(p, err)
		}

	case protocol.ClientPluginMessage:
		if out, ok := protocol.RewriteBrand(p); ok {
			return out, true
		}
	}
	return p, true
}

func (s *Set) handleChat(p pk.Packet) (pk.Packet, bool) {
	chat, err := protocol.DecodeChat(p)
	if err != nil {
		s.malformed(p, err)
		return p, true
	}
	clean := protocol.CleanText(chat.JSON)
	s.logger.Debug().Int8("position", chat.Position).Str("text", clean).Msg("chat")

	s.Games.OnChat(clean)
	if s.Queue.OnChat(clean) || s.Party.OnChat(clean) {
		return p, false
	}
	s.Results.OnChat(clean, s.Game.CurrentGameKey)
	s.Opponent.OnChat(clean, s.Game.CurrentGameKey)

	if out, ok := RewriteComponent(chat.JSON, s.host.Config().GetNicknames()); ok {
		chat.JSON = out
		return chat.Encode(), true
	}
	return p, true
}

func (s *Set) handlePlayerList(p pk.Packet) pk.Packet {
	item, err := protocol.DecodePlayerListItem(p)
	if err != nil {
		s.malformed(p, err)
		return p
	}

	changed, removed := s.Tab.Apply(item)
	for _, e := range changed {
		s.Entities.Resolve(e.UUID, e.RawName)
	}
	for _, e := range changed {
		s.Alert.Check(e)
	}
	for _, id := range removed {
		s.Alert.Forget(id)
	}

	if out, ok := RewritePlayerList(item, s.host.Config().GetNicknames()); ok {
		return out.Encode()
	}
	return p
}

func (s *Set) malformed(p pk.Packet, err error) {
	s.logger.Debug().Err(err).Int32("id", p.ID).Msg("malformed frame, forwarding untouched")
}

// CurrentGame returns the active game key, or "".
func (s *Set) CurrentGame() string {
	return s.Game.CurrentGameKey
}

// NearbyPlayers lists named players within radius of the local player.
func (s *Set) NearbyPlayers(radius float64) []string {
	return s.Entities.NearbyPlayers(radius)
}

// Reset returns every tracker to its initial state.
func (s *Set) Reset() {
	s.Games.Reset()
	s.Queue.Reset()
	s.Party.Reset()
	s.Results.Reset()
	s.Opponent.Reset()
	s.Tab.Reset()
	s.Entities.Reset()
	s.Alert.Reset()
	s.AutoGG.Reset()
}
