package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/tracker"
)

// chanConn is an in-memory leg. Tests push frames into in and read what
// the session wrote from out.
type chanConn struct {
	in     chan pk.Packet
	out    chan pk.Packet
	closed chan struct{}
	once   sync.Once
}

func newChanConn() *chanConn {
	return &chanConn{
		in:     make(chan pk.Packet, 16),
		out:    make(chan pk.Packet, 16),
		closed: make(chan struct{}),
	}
}

func (c *chanConn) ReadPacket(p *pk.Packet) error {
	select {
	case f := <-c.in:
		*p = f
		return nil
	case <-c.closed:
		return io.EOF
	}
}

func (c *chanConn) WritePacket(p pk.Packet) error {
	select {
	case c.out <- p:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *chanConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *chanConn) next(t *testing.T) pk.Packet {
	t.Helper()
	select {
	case p := <-c.out:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return pk.Packet{}
	}
}

func (c *chanConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type recordingPresence struct {
	mu    sync.Mutex
	calls []tracker.Activity
}

func (p *recordingPresence) SetActivity(a tracker.Activity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, a)
}

var steve = protocol.Profile{UUID: uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), Name: "Steve"}

type fixture struct {
	reg      *Registry
	session  *Session
	client   *chanConn
	upstream *chanConn
	cfg      *config.Config
}

func attach(t *testing.T, presence tracker.Presence) *fixture {
	t.Helper()
	f := &fixture{client: newChanConn(), upstream: newChanConn(), cfg: config.DefaultConfig()}
	f.reg = NewRegistry(Options{
		Config: f.cfg,
		Dialer: DialerFunc(func(context.Context, protocol.Profile) (Conn, protocol.Profile, error) {
			return f.upstream, steve, nil
		}),
		Presence: presence,
		Logger:   zerolog.Nop(),
	})
	s, err := f.reg.Attach(context.Background(), f.client, protocol.Profile{Name: "Steve"})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	f.session = s
	t.Cleanup(func() {
		s.Close("test done")
		s.Wait()
	})

	success, err := protocol.DecodeLoginSuccess(f.client.next(t))
	if err != nil {
		t.Fatalf("first client frame: %v", err)
	}
	if success.UUID != steve.UUID.String() || success.Name != "Steve" {
		t.Fatalf("login success = %+v", success)
	}
	return f
}

func clientChat(t *testing.T, p pk.Packet) protocol.Chat {
	t.Helper()
	if p.ID != protocol.ClientChat {
		t.Fatalf("frame id = 0x%02X, want chat", p.ID)
	}
	c, err := protocol.DecodeChat(p)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAliasScenario(t *testing.T) {
	f := attach(t, nil)
	f.cfg.Override(func(s *config.Settings) { s.Aliases = map[string]string{"/gg": "/achat gg"} })

	f.client.in <- protocol.ServerboundChat("/gg")

	text, err := protocol.DecodeServerboundChat(f.upstream.next(t))
	if err != nil || text != "/achat gg" {
		t.Fatalf("upstream = %q, %v", text, err)
	}
	line := clientChat(t, f.client.next(t))
	want := protocol.TextComponent("§8[§dJagProx§8] §r§eAlias executing: §f/achat gg")
	if line.JSON != want || line.Position != protocol.ChatSystem {
		t.Errorf("local line = %+v, want %s at system position", line, want)
	}

	// Plain chat is untouched.
	f.client.in <- protocol.ServerboundChat("hello")
	text, _ = protocol.DecodeServerboundChat(f.upstream.next(t))
	if text != "hello" {
		t.Errorf("forwarded %q", text)
	}
}

func TestClientBrandRewritten(t *testing.T) {
	f := attach(t, nil)

	var payload []byte
	payload = append(payload, 0x07)
	payload = append(payload, "lunarcl"...)
	f.client.in <- protocol.PluginMessage{Channel: protocol.BrandChannel, Data: payload}.Encode(protocol.ServerPluginMessage)

	msg, err := protocol.DecodePluginMessage(f.upstream.next(t))
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Data[1:]) != protocol.SentinelBrand {
		t.Errorf("brand = %q", msg.Data[1:])
	}
}

func TestUpstreamFramesForwarded(t *testing.T) {
	f := attach(t, nil)

	f.cfg.Override(func(s *config.Settings) { s.Nicknames = map[string]string{"Alice": "Ally"} })
	f.upstream.in <- protocol.Chat{JSON: `{"text":"Alice joined"}`, Position: protocol.ChatBox}.Encode()
	f.upstream.in <- pk.Marshal(0x00, pk.VarInt(7)) // keep-alive

	if got := clientChat(t, f.client.next(t)); got.JSON != `{"text":"Ally joined"}` {
		t.Errorf("rewritten chat = %s", got.JSON)
	}
	if p := f.client.next(t); p.ID != 0x00 {
		t.Errorf("second frame id = 0x%02X", p.ID)
	}
	if snap, _ := f.reg.Active(); snap.FramesDown != 2 {
		t.Errorf("frames down = %d", snap.FramesDown)
	}
}

func TestSingleActiveSession(t *testing.T) {
	f := attach(t, nil)

	_, err := f.reg.Attach(context.Background(), newChanConn(), protocol.Profile{Name: "Alex"})
	if !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second Attach err = %v", err)
	}
	snap, ok := f.reg.Active()
	if !ok || snap.Player != "Steve" || snap.PlayerUUID != steve.UUID.String() {
		t.Errorf("Active = %+v, %v", snap, ok)
	}
}

func TestDialFailureLeavesRegistryFree(t *testing.T) {
	dialErr := errors.New("refused")
	reg := NewRegistry(Options{
		Config: config.DefaultConfig(),
		Dialer: DialerFunc(func(context.Context, protocol.Profile) (Conn, protocol.Profile, error) {
			return nil, protocol.Profile{}, dialErr
		}),
		Logger: zerolog.Nop(),
	})
	if _, err := reg.Attach(context.Background(), newChanConn(), steve); !errors.Is(err, dialErr) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := reg.Active(); ok {
		t.Error("registry kept a session after a failed dial")
	}
}

func TestTeardownIsSymmetric(t *testing.T) {
	presence := &recordingPresence{}
	f := attach(t, presence)

	f.upstream.Close()
	f.session.Wait()

	if !f.client.isClosed() {
		t.Error("client leg left open after upstream EOF")
	}
	if _, ok := f.reg.Active(); ok {
		t.Error("session still registered")
	}
	if f.session.Post(func() { t.Error("posted closure ran after teardown") }) {
		t.Error("Post accepted work after teardown")
	}

	presence.mu.Lock()
	defer presence.mu.Unlock()
	if n := len(presence.calls); n != 2 || presence.calls[n-1] != (tracker.Activity{}) {
		t.Errorf("presence calls = %+v", presence.calls)
	}
}

func TestKick(t *testing.T) {
	f := attach(t, nil)

	if !f.reg.Kick("bye") {
		t.Fatal("Kick found no session")
	}
	p := f.client.next(t)
	reason, err := protocol.DecodeDisconnect(p)
	if p.ID != protocol.ClientDisconnect || err != nil || protocol.CleanText(reason) != "bye" {
		t.Errorf("kick frame = 0x%02X %q %v", p.ID, reason, err)
	}
	f.session.Wait()
	if !f.upstream.isClosed() {
		t.Error("upstream left open after kick")
	}
}

func TestTimersStoppedAtTeardown(t *testing.T) {
	f := attach(t, nil)

	fired := make(chan struct{}, 1)
	ok := f.session.Post(func() {
		f.session.AfterFunc(50*time.Millisecond, func() { fired <- struct{}{} })
		f.session.Close("test")
	})
	if !ok {
		t.Fatal("Post rejected")
	}
	f.session.Wait()

	select {
	case <-fired:
		t.Error("timer fired after teardown")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestGameEventsReachBus(t *testing.T) {
	bus := events.NewBus()
	defer bus.Stop()
	got := make(chan events.Event, 4)
	bus.Subscribe(events.EventGameChanged, "test", func(_ context.Context, e events.Event) error {
		got <- e
		return nil
	})

	client, upstream := newChanConn(), newChanConn()
	reg := NewRegistry(Options{
		Config: config.DefaultConfig(),
		Dialer: DialerFunc(func(context.Context, protocol.Profile) (Conn, protocol.Profile, error) {
			return upstream, steve, nil
		}),
		Bus:    bus,
		Logger: zerolog.Nop(),
	})
	s, err := reg.Attach(context.Background(), client, steve)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		s.Close("done")
		s.Wait()
	}()

	upstream.in <- pk.Marshal(protocol.ClientScoreboardObj,
		pk.String("sidebar"), pk.Byte(0), pk.String("§e§lBED WARS"), pk.String("integer"))

	select {
	case e := <-got:
		payload := e.Payload.(events.GamePayload)
		if payload.GameKey != "bedwars" || payload.SessionID != s.ID() {
			t.Errorf("payload = %+v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no game change event")
	}
}

func TestSyntheticFramesFollowTheirTrigger(t *testing.T) {
	f := attach(t, nil)
	if err := f.cfg.Update(func(s *config.Settings) { s.TabAlerts = []string{"Technoblade"} }); err != nil {
		t.Fatal(err)
	}

	f.upstream.in <- protocol.PlayerListItem{
		Action:  protocol.ListAddPlayer,
		Entries: []protocol.PlayerListEntry{{UUID: uuid.New(), Name: "Technoblade"}},
	}.Encode()

	var ids []int32
	for i := 0; i < 3; i++ {
		ids = append(ids, f.client.next(t).ID)
	}
	want := []int32{protocol.ClientPlayerListItem, protocol.ClientChat, protocol.ClientNamedSound}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("client frame ids = %#x, want %#x", ids, want)
		}
	}
}

func TestWhoReplyNeverReachesClient(t *testing.T) {
	f := attach(t, nil)

	chat := func(text string) pk.Packet {
		return protocol.Chat{JSON: protocol.TextComponent(text), Position: protocol.ChatBox}.Encode()
	}

	f.upstream.in <- pk.Marshal(protocol.ClientScoreboardObj,
		pk.String("sidebar"), pk.Byte(0), pk.String("§e§lBED WARS"), pk.String("integer"))
	f.upstream.in <- chat("Protect your bed and destroy the enemy beds.")
	f.upstream.in <- pk.Marshal(protocol.ClientPlayerPosition,
		pk.Double(0), pk.Double(80), pk.Double(0), pk.Float(0), pk.Float(0), pk.Byte(0))

	for _, id := range []int32{protocol.ClientScoreboardObj, protocol.ClientChat, protocol.ClientPlayerPosition} {
		if p := f.client.next(t); p.ID != id {
			t.Fatalf("client frame 0x%02X, want 0x%02X", p.ID, id)
		}
	}

	who, err := protocol.DecodeServerboundChat(f.upstream.next(t))
	if err != nil || who != "/who" {
		t.Fatalf("upstream = %q, %v; want /who", who, err)
	}

	f.upstream.in <- chat("ONLINE: Alice, Bob.")
	f.upstream.in <- chat("after the roster")

	if got := protocol.CleanText(clientChat(t, f.client.next(t)).JSON); got != "after the roster" {
		t.Errorf("client saw %q, want the line after the roster", got)
	}
}
