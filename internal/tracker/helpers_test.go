package tracker

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/directory"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/stats"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeHost records traffic and holds timers until the test fires them.
type fakeHost struct {
	cfg     *config.Config
	dir     directory.PlayerDirectory
	profile protocol.Profile

	upstream []pk.Packet
	client   []pk.Packet
	chat     []string
	timers   []*fakeTimer
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	return &fakeHost{
		cfg:     config.DefaultConfig(),
		profile: protocol.Profile{UUID: uuid.New(), Name: "Steve"},
	}
}

func (h *fakeHost) SendUpstream(p pk.Packet) {
	h.upstream = append(h.upstream, p)
}

func (h *fakeHost) SendClient(p pk.Packet) {
	h.client = append(h.client, p)
}

func (h *fakeHost) Chat(text string) {
	h.chat = append(h.chat, text)
}

func (h *fakeHost) Post(fn func()) bool {
	fn()
	return true
}

func (h *fakeHost) Go(work func(context.Context)) {
	work(context.Background())
}

func (h *fakeHost) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{d: d, fn: fn}
	h.timers = append(h.timers, t)
	return t
}

func (h *fakeHost) Config() *config.Config {
	return h.cfg
}

func (h *fakeHost) Directory() directory.PlayerDirectory {
	return h.dir
}

func (h *fakeHost) Profile() protocol.Profile {
	return h.profile
}

// fire runs every due timer in scheduling order, including timers that
// the callbacks themselves schedule.
func (h *fakeHost) fire() int {
	n := 0
	for i := 0; i < len(h.timers); i++ {
		t := h.timers[i]
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.fn()
		n++
	}
	return n
}

// fireNext runs the oldest pending timer only.
func (h *fakeHost) fireNext() bool {
	for _, t := range h.timers {
		if t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.fn()
		return true
	}
	return false
}

func (h *fakeHost) upstreamChat(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, p := range h.upstream {
		if p.ID != protocol.ServerChat {
			continue
		}
		text, err := protocol.DecodeServerboundChat(p)
		if err != nil {
			t.Fatalf("decode serverbound chat: %v", err)
		}
		out = append(out, text)
	}
	return out
}

func (h *fakeHost) teams(t *testing.T) []protocol.Team {
	t.Helper()
	var out []protocol.Team
	for _, p := range h.client {
		if p.ID != protocol.ClientTeams {
			continue
		}
		team, err := protocol.DecodeTeam(p)
		if err != nil {
			t.Fatalf("decode team: %v", err)
		}
		out = append(out, team)
	}
	return out
}

// fakeDirectory answers tab suffix lookups from a map.
type fakeDirectory struct {
	mu       sync.Mutex
	suffixes map[string]string
	lookups  []string
}

func (d *fakeDirectory) ResolveIdentity(context.Context, string) (directory.Identity, error) {
	return directory.Identity{}, directory.ErrNotFound
}

func (d *fakeDirectory) FetchStats(context.Context, uuid.UUID) (*stats.Player, error) {
	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) FetchStatus(context.Context, uuid.UUID) (*directory.Status, error) {
	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) FetchGuild(context.Context, uuid.UUID) (string, error) {
	return "", nil
}

func (d *fakeDirectory) FetchAvatar(context.Context, uuid.UUID) (image.Image, error) {
	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) FetchTabSuffix(_ context.Context, name, _ string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups = append(d.lookups, name)
	return d.suffixes[name], nil
}

type recordingListener struct {
	changed []string
	ended   []string
	results []string
}

func (l *recordingListener) GameChanged(key, _ string) {
	l.changed = append(l.changed, key)
}

func (l *recordingListener) GameEnded(key string) {
	l.ended = append(l.ended, key)
}

func (l *recordingListener) GameResult(key string, o events.Outcome) {
	l.results = append(l.results, key+":"+string(o))
}

var nopLogger = zerolog.Nop()
