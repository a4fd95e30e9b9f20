package network

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	"github.com/Tnze/go-mc/net/CFB8"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/Tnze/go-mc/offline"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/relay"
)

func TestAuthDigest(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "Notch", want: "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48"},
		{name: "jeb_", want: "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1"},
		{name: "simon", want: "88e16a1019277b15d58faf0541e11910eb756f6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthDigest(tt.name, nil, nil); got != tt.want {
				t.Errorf("AuthDigest(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestOfflineProfileUUID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Steve", "5627dd98-e6be-3c21-b8a8-e92344183641"},
		{"Notch", "b50ad385-829d-3141-a216-7e7d7539ba7f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := offline.NameToUUID(tt.name)
			if got.String() != tt.want {
				t.Errorf("NameToUUID(%q) = %s, want %s", tt.name, got, tt.want)
			}
			if got.Version() != 3 || got.Variant() != uuid.RFC4122 {
				t.Errorf("version %d variant %v", got.Version(), got.Variant())
			}
		})
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Override(func(s *config.Settings) {
		s.Proxy.Upstream = "mc.example.net:25565"
		s.Proxy.MOTD = "Test Relay"
	})
	return cfg
}

func newTestListener(t *testing.T, dialer relay.Dialer) *TCPListener {
	t.Helper()
	cfg := testConfig(t)
	reg := relay.NewRegistry(relay.Options{Config: cfg, Dialer: dialer, Logger: zerolog.Nop()})
	return NewTCPListener(cfg, reg)
}

// serve runs the listener's per-connection handler on one end of a pipe
// and returns the other end as a framed client.
func serve(t *testing.T, l *TCPListener) (*mcnet.Conn, <-chan struct{}) {
	t.Helper()
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.handleConnection(context.Background(), server)
	}()
	t.Cleanup(func() { client.Close() })
	return mcnet.WrapConn(client), done
}

func handshake(proto int32, next int32) pk.Packet {
	return protocol.HandshakeFrame{Protocol: proto, Address: "localhost", Port: 2107, NextState: next}.Encode()
}

// write and read report failures without stopping, so the fake servers
// can use them off the test goroutine.
func write(t *testing.T, c *mcnet.Conn, p pk.Packet) {
	t.Helper()
	if err := c.WritePacket(p); err != nil {
		t.Errorf("write 0x%02X: %v", p.ID, err)
	}
}

func read(t *testing.T, c *mcnet.Conn) pk.Packet {
	t.Helper()
	var p pk.Packet
	if err := c.ReadPacket(&p); err != nil {
		t.Errorf("read: %v", err)
	}
	return p
}

func TestStatusPing(t *testing.T) {
	l := newTestListener(t, nil)
	c, done := serve(t, l)

	write(t, c, handshake(protocol.Version, protocol.NextStateStatus))
	write(t, c, pk.Marshal(protocol.StatusRequest))

	var body pk.String
	if err := read(t, c).Scan(&body); err != nil {
		t.Fatal(err)
	}
	var resp statusResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("status json: %v", err)
	}
	if resp.Description.Text != "Test Relay" || resp.Version.Protocol != 47 || resp.Players.Online != 0 {
		t.Errorf("status = %+v", resp)
	}

	write(t, c, pk.Marshal(protocol.StatusPing, pk.Long(1234)))
	var payload pk.Long
	pong := read(t, c)
	if err := pong.Scan(&payload); err != nil || pong.ID != protocol.StatusPong || payload != 1234 {
		t.Errorf("pong = 0x%02X %d %v", pong.ID, payload, err)
	}
	<-done
}

func TestLoginProtocolMismatch(t *testing.T) {
	l := newTestListener(t, nil)
	c, done := serve(t, l)

	write(t, c, handshake(340, protocol.NextStateLogin))
	p := read(t, c)
	reason, err := protocol.DecodeDisconnect(p)
	if p.ID != protocol.LoginDisconnect || err != nil || !strings.Contains(reason, "1.8.9") {
		t.Errorf("got 0x%02X %q %v", p.ID, reason, err)
	}
	<-done
}

func TestLoginAttachesSession(t *testing.T) {
	confirmed := protocol.Profile{UUID: uuid.New(), Name: "Steve"}
	var (
		mu       sync.Mutex
		upstream net.Conn
		seen     protocol.Profile
	)
	dialer := relay.DialerFunc(func(_ context.Context, p protocol.Profile) (relay.Conn, protocol.Profile, error) {
		a, b := net.Pipe()
		mu.Lock()
		upstream, seen = b, p
		mu.Unlock()
		return NewConnection(a, "upstream"), confirmed, nil
	})
	l := newTestListener(t, dialer)
	c, done := serve(t, l)

	write(t, c, handshake(protocol.Version, protocol.NextStateLogin))
	write(t, c, protocol.LoginStartFrame("Steve"))

	success, err := protocol.DecodeLoginSuccess(read(t, c))
	if err != nil || success.UUID != confirmed.UUID.String() || success.Name != "Steve" {
		t.Fatalf("login success = %+v, %v", success, err)
	}
	mu.Lock()
	if seen.UUID.String() != "5627dd98-e6be-3c21-b8a8-e92344183641" {
		t.Errorf("dialer saw %v, want the offline uuid", seen.UUID)
	}
	mu.Unlock()

	if _, ok := l.registry.Active(); !ok {
		t.Error("no active session after login")
	}

	c.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the client left")
	}
	mu.Lock()
	upstream.Close()
	mu.Unlock()
}

func TestLoginRefusedWhenDialFails(t *testing.T) {
	dialer := relay.DialerFunc(func(context.Context, protocol.Profile) (relay.Conn, protocol.Profile, error) {
		return nil, protocol.Profile{}, errors.New("connection refused")
	})
	l := newTestListener(t, dialer)
	c, done := serve(t, l)

	write(t, c, handshake(protocol.Version, protocol.NextStateLogin))
	write(t, c, protocol.LoginStartFrame("Steve"))

	p := read(t, c)
	reason, _ := protocol.DecodeDisconnect(p)
	if p.ID != protocol.LoginDisconnect || !strings.Contains(reason, "mc.example.net") {
		t.Errorf("got 0x%02X %q", p.ID, reason)
	}
	<-done
}

// pipeUpstream points an Upstream at a pipe whose far end is driven by
// server.
func pipeUpstream(t *testing.T, secrets config.Secrets, server func(c *mcnet.Conn)) (*Upstream, <-chan struct{}) {
	t.Helper()
	u := NewUpstream(testConfig(t), secrets)
	done := make(chan struct{})
	u.dial = func(context.Context, string, string) (net.Conn, error) {
		a, b := net.Pipe()
		go func() {
			defer close(done)
			defer b.Close()
			server(mcnet.WrapConn(b))
		}()
		return a, nil
	}
	return u, done
}

func expectLoginStart(t *testing.T, c *mcnet.Conn, name string) {
	t.Helper()
	hs, err := protocol.DecodeHandshake(read(t, c))
	if err != nil || hs.NextState != protocol.NextStateLogin || hs.Address != "mc.example.net" || hs.Port != 25565 {
		t.Errorf("handshake = %+v, %v", hs, err)
	}
	got, err := protocol.DecodeLoginStart(read(t, c))
	if err != nil || got != name {
		t.Errorf("login start = %q, %v", got, err)
	}
}

func TestUpstreamOfflineLoginWithCompression(t *testing.T) {
	id := uuid.New()
	long := strings.Repeat("x", 600)
	u, done := pipeUpstream(t, config.Secrets{}, func(c *mcnet.Conn) {
		expectLoginStart(t, c, "Steve")
		write(t, c, pk.Marshal(protocol.LoginSetCompression, pk.VarInt(256)))
		c.SetThreshold(256)
		write(t, c, protocol.LoginSuccessFrame{UUID: id.String(), Name: "Steve"}.Encode())
		write(t, c, pk.Marshal(protocol.ClientChat, pk.String(long), pk.Byte(0)))
	})

	conn, profile, err := u.Dial(context.Background(), protocol.Profile{Name: "Steve"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if profile.UUID != id || profile.Name != "Steve" {
		t.Errorf("profile = %+v", profile)
	}

	var p pk.Packet
	if err := conn.ReadPacket(&p); err != nil {
		t.Fatalf("read compressed frame: %v", err)
	}
	chat, err := protocol.DecodeChat(p)
	if err != nil || chat.JSON != long {
		t.Errorf("compressed chat = %d bytes, %v", len(chat.JSON), err)
	}
	<-done
}

func TestUpstreamLoginRejected(t *testing.T) {
	u, done := pipeUpstream(t, config.Secrets{}, func(c *mcnet.Conn) {
		expectLoginStart(t, c, "Steve")
		write(t, c, protocol.Disconnect(protocol.LoginDisconnect, "You are banned"))
	})
	_, _, err := u.Dial(context.Background(), protocol.Profile{Name: "Steve"})
	if !errors.Is(err, ErrLoginRejected) || !strings.Contains(err.Error(), "You are banned") {
		t.Errorf("err = %v", err)
	}
	<-done
}

func TestUpstreamEncryptionNeedsCredentials(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	der, _ := x509.MarshalPKIXPublicKey(&key.PublicKey)

	u, done := pipeUpstream(t, config.Secrets{}, func(c *mcnet.Conn) {
		expectLoginStart(t, c, "Steve")
		write(t, c, protocol.EncryptionRequest{PublicKey: der, VerifyToken: []byte{1, 2, 3, 4}}.Encode())
	})
	if _, _, err := u.Dial(context.Background(), protocol.Profile{Name: "Steve"}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v", err)
	}
	<-done
}

func TestUpstreamEncryptedLogin(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	der, _ := x509.MarshalPKIXPublicKey(&key.PublicKey)
	profileID := uuid.New()
	token := []byte{9, 8, 7, 6}

	joins := make(chan joinRequest, 1)
	session := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/minecraft/join" {
			http.NotFound(w, r)
			return
		}
		var join joinRequest
		_ = json.NewDecoder(r.Body).Decode(&join)
		joins <- join
		w.WriteHeader(http.StatusNoContent)
	}))
	defer session.Close()

	secrets := config.Secrets{AccessToken: "token-123", ProfileUUID: profileID.String(), ProfileName: "RealSteve"}
	var serverSecret []byte
	u, done := pipeUpstream(t, secrets, func(c *mcnet.Conn) {
		expectLoginStart(t, c, "RealSteve")
		write(t, c, protocol.EncryptionRequest{ServerID: "", PublicKey: der, VerifyToken: token}.Encode())

		var encSecret, encToken pk.ByteArray
		if err := read(t, c).Scan(&encSecret, &encToken); err != nil {
			t.Errorf("encryption response: %v", err)
			return
		}
		secret, err := rsa.DecryptPKCS1v15(nil, key, encSecret)
		if err != nil {
			t.Errorf("decrypt secret: %v", err)
			return
		}
		gotToken, _ := rsa.DecryptPKCS1v15(nil, key, encToken)
		if !bytes.Equal(gotToken, token) {
			t.Errorf("verify token = %v", gotToken)
		}
		serverSecret = secret

		block, _ := aes.NewCipher(secret)
		c.SetCipher(CFB8.NewCFB8Encrypt(block, secret), CFB8.NewCFB8Decrypt(block, secret))
		write(t, c, protocol.LoginSuccessFrame{UUID: profileID.String(), Name: "RealSteve"}.Encode())
	})
	u.joiner = NewSessionJoiner(session.URL)

	conn, profile, err := u.Dial(context.Background(), protocol.Profile{Name: "Steve"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
	<-done

	if profile.UUID != profileID || profile.Name != "RealSteve" {
		t.Errorf("profile = %+v", profile)
	}
	join := <-joins
	if join.AccessToken != "token-123" || join.SelectedProfile != strings.ReplaceAll(profileID.String(), "-", "") {
		t.Errorf("join = %+v", join)
	}
	if want := AuthDigest("", serverSecret, der); join.ServerID != want {
		t.Errorf("server hash = %s, want %s", join.ServerID, want)
	}
}
