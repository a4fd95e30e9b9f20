package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/command"
	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/directory"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/tracker"
)

const (
	frameQueueSize = 64
	writeQueueSize = 256
)

// Snapshot is a read-only view of a session for the admin surfaces.
type Snapshot struct {
	ID         string    `json:"id"`
	Player     string    `json:"player"`
	PlayerUUID string    `json:"player_uuid"`
	GameKey    string    `json:"game_key"`
	StartedAt  time.Time `json:"started_at"`
	FramesUp   uint64    `json:"frames_up"`
	FramesDown uint64    `json:"frames_down"`
	Dropped    uint64    `json:"dropped"`
}

type outFrame struct {
	p    pk.Packet
	last bool // close the session once written
}

// leg is one side of the session with its writer queue.
type leg struct {
	name string
	conn Conn
	out  chan outFrame
}

type heldFrame struct {
	toClient bool
	p        pk.Packet
}

// Session relays one client. Everything except Post, Close, Kick,
// Snapshot and Wait runs on the loop goroutine.
type Session struct {
	id      string
	ctx     context.Context
	opts    Options
	profile protocol.Profile
	logger  zerolog.Logger
	started time.Time

	client   *leg
	upstream *leg

	trackers *tracker.Set
	commands *command.Interceptor

	frames chan func()
	wake   chan struct{}

	mu       sync.Mutex
	tasks    []func()
	closed   bool
	reason   string
	done     chan struct{}
	finished chan struct{}
	onClose  func(*Session)

	// loop-owned
	holding bool
	held    []heldFrame
	timers  map[*loopTimer]struct{}

	gameKey    atomic.Value
	framesUp   atomic.Uint64
	framesDown atomic.Uint64
	dropped    atomic.Uint64
}

func newSession(ctx context.Context, opts Options, client, upstream Conn, profile protocol.Profile, onClose func(*Session)) *Session {
	id := uuid.NewString()
	s := &Session{
		id:      id,
		ctx:     ctx,
		opts:    opts,
		profile: profile,
		started: time.Now(),
		logger: opts.Logger.With().
			Str("session", id[:8]).
			Str("player", profile.Name).
			Logger(),
		client:   &leg{name: "client", conn: client, out: make(chan outFrame, writeQueueSize)},
		upstream: &leg{name: "upstream", conn: upstream, out: make(chan outFrame, writeQueueSize)},
		frames:   make(chan func(), frameQueueSize),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		onClose:  onClose,
		timers:   make(map[*loopTimer]struct{}),
	}
	s.gameKey.Store("")

	hooks := tracker.Hooks{
		Listener: &gameListener{s: s},
		Alert:    s.onAlert,
	}
	s.trackers = tracker.NewSet(s, hooks, s.logger)
	s.commands = command.New(s, s.trackers, command.Deps{
		Goals:   opts.Goals,
		Results: opts.Results,
		Links:   opts.Links,
		Bus:     opts.Bus,
	}, s.logger)
	return s
}

// start confirms the login to the client and launches the pumps.
func (s *Session) start() {
	s.client.out <- outFrame{p: protocol.LoginSuccessFrame{
		UUID: s.profile.UUID.String(),
		Name: s.profile.Name,
	}.Encode()}

	go s.writeLoop(s.client)
	go s.writeLoop(s.upstream)
	go s.readLoop(s.client, s.fromClient)
	go s.readLoop(s.upstream, s.fromUpstream)
	go s.run()

	s.logger.Info().Str("uuid", s.profile.UUID.String()).Msg("session started")
	s.emit(events.EventSessionStarted, s.sessionPayload(""))
	if s.opts.Presence != nil {
		s.opts.Presence.SetActivity(tracker.Activity{Player: s.profile.Name, Since: s.started})
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Wait blocks until the session has been torn down.
func (s *Session) Wait() {
	<-s.finished
}

// Snapshot returns counters and identity. Safe from any goroutine.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:         s.id,
		Player:     s.profile.Name,
		PlayerUUID: s.profile.UUID.String(),
		GameKey:    s.gameKey.Load().(string),
		StartedAt:  s.started,
		FramesUp:   s.framesUp.Load(),
		FramesDown: s.framesDown.Load(),
		Dropped:    s.dropped.Load(),
	}
}

// Close ends the session. Both legs are closed; the loop resets every
// tracker before it exits.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.reason = reason
	close(s.done)
	s.mu.Unlock()

	s.client.conn.Close()
	s.upstream.conn.Close()
	s.logger.Info().Str("reason", reason).Msg("session closing")
}

// Kick disconnects the client with reason shown on its screen.
func (s *Session) Kick(reason string) bool {
	return s.Post(func() {
		s.logger.Info().Str("reason", reason).Msg("kicking client")
		s.enqueue(s.client, outFrame{p: protocol.Disconnect(protocol.ClientDisconnect, reason), last: true})
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Post queues fn on the loop. It never blocks, so it is safe from the
// loop itself.
func (s *Session) Post(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Session) takeTasks() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.tasks
	s.tasks = nil
	return tasks
}

func (s *Session) run() {
	defer s.teardown()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.frames:
			if s.isClosed() {
				return
			}
			fn()
		case <-s.wake:
			for _, fn := range s.takeTasks() {
				if s.isClosed() {
					return
				}
				fn()
			}
		}
	}
}

func (s *Session) teardown() {
	for t := range s.timers {
		t.stop()
	}
	clear(s.timers)
	s.held = nil
	s.trackers.Reset()

	s.emit(events.EventSessionEnded, s.sessionPayload(s.reason))
	if s.opts.Presence != nil {
		s.opts.Presence.SetActivity(tracker.Activity{})
	}
	if s.onClose != nil {
		s.onClose(s)
	}
	s.logger.Info().
		Uint64("frames_up", s.framesUp.Load()).
		Uint64("frames_down", s.framesDown.Load()).
		Dur("duration", time.Since(s.started)).
		Msg("session ended")
	close(s.finished)
}

func (s *Session) readLoop(l *leg, handle func(pk.Packet)) {
	for {
		var p pk.Packet
		if err := l.conn.ReadPacket(&p); err != nil {
			if errors.Is(err, io.EOF) {
				s.Close(l.name + " disconnected")
			} else {
				s.Close(fmt.Sprintf("%s read: %v", l.name, err))
			}
			return
		}

		if l == s.upstream && p.ID == protocol.ClientSetCompression {
			s.applyThreshold(p)
			continue
		}

		select {
		case s.frames <- func() { handle(p) }:
		case <-s.done:
			return
		}
	}
}

// applyThreshold switches upstream compression in the reader so the next
// read already uses it. The client leg stays uncompressed.
func (s *Session) applyThreshold(p pk.Packet) {
	n, err := protocol.DecodeSetCompression(p)
	if err != nil {
		s.logger.Warn().Err(err).Msg("bad set-compression frame")
		return
	}
	if ts, ok := s.upstream.conn.(thresholdSetter); ok {
		ts.SetThreshold(n)
	}
	s.logger.Debug().Int("threshold", n).Msg("upstream compression changed")
}

func (s *Session) writeLoop(l *leg) {
	for {
		select {
		case f := <-l.out:
			if err := l.conn.WritePacket(f.p); err != nil {
				s.dropped.Add(1)
				s.logger.Warn().Err(err).Str("leg", l.name).Int32("id", f.p.ID).Msg("write failed, frame dropped")
			}
			if f.last {
				s.Close("kicked")
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) enqueue(l *leg, f outFrame) {
	select {
	case l.out <- f:
	case <-s.done:
	}
}

// hold buffers synthetic writes until the current frame is decided.
func (s *Session) hold() {
	s.holding = true
}

func (s *Session) release() {
	s.holding = false
	held := s.held
	s.held = nil
	for _, h := range held {
		if h.toClient {
			s.enqueue(s.client, outFrame{p: h.p})
		} else {
			s.enqueue(s.upstream, outFrame{p: h.p})
		}
	}
}

func (s *Session) fromClient(p pk.Packet) {
	s.framesUp.Add(1)
	s.hold()
	defer s.release()

	switch p.ID {
	case protocol.ServerChat:
		text, err := protocol.DecodeServerboundChat(p)
		if err != nil {
			s.logger.Debug().Err(err).Msg("malformed client chat, forwarding")
			break
		}
		s.logger.Debug().Str("text", text).Msg("client chat")
		prefix := s.opts.Config.GetProxy().CommandPrefix
		if prefix != "" && strings.HasPrefix(text, prefix) && s.commands.Handle(text) {
			return
		}
	case protocol.ServerPluginMessage:
		if out, ok := protocol.RewriteBrand(p); ok {
			p = out
		}
	}
	s.enqueue(s.upstream, outFrame{p: p})
}

func (s *Session) fromUpstream(p pk.Packet) {
	s.framesDown.Add(1)
	s.hold()
	defer s.release()

	if p.ID == protocol.ClientDisconnect {
		if reason, err := protocol.DecodeDisconnect(p); err == nil {
			s.logger.Info().Str("reason", protocol.CleanText(reason)).Msg("server disconnected player")
		}
	}
	out, forward := s.trackers.HandleUpstream(p)
	if forward {
		s.enqueue(s.client, outFrame{p: out})
	}
}

// SendUpstream queues a frame for the server.
func (s *Session) SendUpstream(p pk.Packet) {
	if s.holding {
		s.held = append(s.held, heldFrame{p: p})
		return
	}
	s.enqueue(s.upstream, outFrame{p: p})
}

// SendClient queues a frame for the game client.
func (s *Session) SendClient(p pk.Packet) {
	if s.holding {
		s.held = append(s.held, heldFrame{toClient: true, p: p})
		return
	}
	s.enqueue(s.client, outFrame{p: p})
}

// Chat shows tagged system lines, one frame per line.
func (s *Session) Chat(text string) {
	tag := s.opts.Config.GetProxy().TagPrefix
	for _, line := range strings.Split(text, "\n") {
		s.systemLine(tag + line)
	}
}

// RawChat shows a system line without the tag.
func (s *Session) RawChat(text string) {
	s.systemLine(text)
}

func (s *Session) systemLine(text string) {
	s.SendClient(protocol.Chat{JSON: protocol.TextComponent(text), Position: protocol.ChatSystem}.Encode())
}

// AfterFunc runs fn on the loop after d unless stopped or the session
// closed first.
func (s *Session) AfterFunc(d time.Duration, fn func()) tracker.Timer {
	t := &loopTimer{s: s}
	s.timers[t] = struct{}{}
	t.timer = time.AfterFunc(d, func() {
		s.Post(func() {
			if t.stopped {
				return
			}
			t.stopped = true
			delete(s.timers, t)
			fn()
		})
	})
	return t
}

// Go runs work on a new goroutine with the process context.
func (s *Session) Go(work func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Msg("session worker panicked")
			}
		}()
		work(s.ctx)
	}()
}

// Config returns the shared configuration store.
func (s *Session) Config() *config.Config {
	return s.opts.Config
}

// Directory returns the player directory, or nil when none is configured.
func (s *Session) Directory() directory.PlayerDirectory {
	return s.opts.Directory
}

// Profile returns the upstream-confirmed player identity.
func (s *Session) Profile() protocol.Profile {
	return s.profile
}

func (s *Session) onAlert(name string, _ uuid.UUID) {
	s.emit(events.EventTabAlert, events.TabAlertPayload{
		SessionID:  s.id,
		PlayerName: name,
		GameKey:    s.trackers.CurrentGame(),
	})
}

func (s *Session) emit(t events.EventType, payload any) {
	if s.opts.Bus == nil {
		return
	}
	s.opts.Bus.Emit(s.ctx, events.New(t, "session:"+s.id[:8], payload))
}

func (s *Session) sessionPayload(reason string) events.SessionPayload {
	return events.SessionPayload{
		SessionID:  s.id,
		PlayerName: s.profile.Name,
		PlayerUUID: s.profile.UUID.String(),
		Reason:     reason,
	}
}

// loopTimer is only touched on the loop, apart from the runtime timer.
type loopTimer struct {
	s       *Session
	timer   *time.Timer
	stopped bool
}

// Stop cancels the callback. It reports false if it already ran or was
// stopped.
func (t *loopTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stop()
	delete(t.s.timers, t)
	return true
}

func (t *loopTimer) stop() {
	t.stopped = true
	t.timer.Stop()
}
