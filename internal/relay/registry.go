package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/command"
	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/db"
	"github.com/energizer-project/jagprox/internal/directory"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/tracker"
)

// ErrAlreadyConnected is returned by Attach while another session is live.
var ErrAlreadyConnected = errors.New("a session is already active")

// ResultSink stores game starts and outcomes and reads them back for the
// gametrack command.
type ResultSink interface {
	command.ResultStore
	StartGame(ctx context.Context, sessionID, playerUUID, gameKey string, at time.Time) error
	Record(ctx context.Context, res db.GameResult) (int64, error)
}

// Options are shared by every session. Only Config, Dialer and Logger are
// required.
type Options struct {
	Config    *config.Config
	Dialer    Dialer
	Directory directory.PlayerDirectory
	Goals     command.GoalStore
	Results   ResultSink
	Links     command.LinkChecker
	Presence  tracker.Presence
	Bus       *events.Bus
	Logger    zerolog.Logger
}

// Registry holds at most one active session.
type Registry struct {
	opts Options

	mu        sync.Mutex
	active    *Session
	attaching bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts}
}

// Attach dials the upstream for a logged-in client and starts a session.
// The client has seen nothing but its own login frames until it returns.
func (r *Registry) Attach(ctx context.Context, client Conn, profile protocol.Profile) (*Session, error) {
	r.mu.Lock()
	if r.active != nil || r.attaching {
		r.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	r.attaching = true
	r.mu.Unlock()

	upstream, confirmed, err := r.opts.Dialer.Dial(ctx, profile)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.attaching = false
	if err != nil {
		return nil, fmt.Errorf("dial upstream: %w", err)
	}

	s := newSession(ctx, r.opts, client, upstream, confirmed, r.detach)
	r.active = s
	s.start()
	return s, nil
}

func (r *Registry) detach(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == s {
		r.active = nil
	}
}

func (r *Registry) current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Active returns a snapshot of the live session, if any.
func (r *Registry) Active() (Snapshot, bool) {
	s := r.current()
	if s == nil {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Kick disconnects the live session's client. It reports false when no
// session is active.
func (r *Registry) Kick(reason string) bool {
	s := r.current()
	if s == nil {
		return false
	}
	return s.Kick(reason)
}

// Shutdown kicks the live session and waits for its teardown, up to ctx.
func (r *Registry) Shutdown(ctx context.Context) {
	s := r.current()
	if s == nil {
		return
	}
	s.Kick("Proxy shutting down")
	select {
	case <-s.finished:
	case <-ctx.Done():
		s.Close("shutdown")
		s.Wait()
	}
}
