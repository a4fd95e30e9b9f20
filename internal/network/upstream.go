package network

import (
	"context"
	"crypto/aes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/Tnze/go-mc/net/CFB8"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/relay"
	"github.com/energizer-project/jagprox/internal/util"
)

var (
	// ErrLoginRejected wraps a login-state disconnect from the upstream.
	ErrLoginRejected = errors.New("upstream rejected login")
	// ErrNoCredentials means the upstream is in online mode and no access
	// token is configured.
	ErrNoCredentials = errors.New("upstream requires authentication")
)

// Upstream dials and logs in to the configured server. It implements
// relay.Dialer.
type Upstream struct {
	cfg     *config.Config
	secrets config.Secrets
	joiner  *SessionJoiner
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	logger  zerolog.Logger
}

// NewUpstream creates the upstream dialer.
func NewUpstream(cfg *config.Config, secrets config.Secrets) *Upstream {
	var d net.Dialer
	return &Upstream{
		cfg:     cfg,
		secrets: secrets,
		joiner:  NewSessionJoiner(cfg.GetDirectory().SessionURL),
		dial:    d.DialContext,
		logger:  util.ComponentLogger("upstream"),
	}
}

// Dial opens the upstream leg and runs the login sequence, handling
// encryption and compression. The returned profile is the one the server
// confirmed.
func (u *Upstream) Dial(ctx context.Context, client protocol.Profile) (relay.Conn, protocol.Profile, error) {
	proxy := u.cfg.GetProxy()
	host, portStr, err := net.SplitHostPort(proxy.Upstream)
	if err != nil {
		return nil, protocol.Profile{}, fmt.Errorf("invalid upstream address %q: %w", proxy.Upstream, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, protocol.Profile{}, fmt.Errorf("invalid upstream port %q: %w", portStr, err)
	}

	raw, err := u.dial(ctx, "tcp", proxy.Upstream)
	if err != nil {
		return nil, protocol.Profile{}, fmt.Errorf("failed to connect to %s: %w", proxy.Upstream, err)
	}
	conn := NewConnection(raw, "upstream")
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	name := client.Name
	if u.secrets.ProfileName != "" {
		name = u.secrets.ProfileName
	}
	u.logger.Info().Str("upstream", proxy.Upstream).Str("player", name).Msg("logging in upstream")

	hs := protocol.HandshakeFrame{
		Protocol:  int32(proxy.ProtocolVersion),
		Address:   host,
		Port:      uint16(port),
		NextState: protocol.NextStateLogin,
	}
	if err := conn.WritePacket(hs.Encode()); err != nil {
		conn.Close()
		return nil, protocol.Profile{}, err
	}
	if err := conn.WritePacket(protocol.LoginStartFrame(name)); err != nil {
		conn.Close()
		return nil, protocol.Profile{}, err
	}

	profile, err := u.login(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, protocol.Profile{}, err
	}
	u.logger.Info().Str("player", profile.Name).Str("uuid", profile.UUID.String()).Msg("upstream login complete")
	return conn, profile, nil
}

func (u *Upstream) login(ctx context.Context, conn *Connection) (protocol.Profile, error) {
	for {
		var p pk.Packet
		if err := conn.ReadPacket(&p); err != nil {
			return protocol.Profile{}, fmt.Errorf("upstream login: %w", err)
		}

		switch p.ID {
		case protocol.LoginDisconnect:
			reason, _ := protocol.DecodeDisconnect(p)
			return protocol.Profile{}, fmt.Errorf("%w: %s", ErrLoginRejected, protocol.CleanText(reason))

		case protocol.LoginEncryptionRequest:
			if err := u.encrypt(ctx, conn, p); err != nil {
				return protocol.Profile{}, err
			}

		case protocol.LoginSetCompression:
			n, err := protocol.DecodeSetCompression(p)
			if err != nil {
				return protocol.Profile{}, err
			}
			conn.SetThreshold(n)

		case protocol.LoginSuccess:
			ok, err := protocol.DecodeLoginSuccess(p)
			if err != nil {
				return protocol.Profile{}, err
			}
			id, err := uuid.Parse(ok.UUID)
			if err != nil {
				return protocol.Profile{}, fmt.Errorf("upstream login success: %w", err)
			}
			return protocol.Profile{UUID: id, Name: ok.Name}, nil

		default:
			return protocol.Profile{}, fmt.Errorf("unexpected login frame 0x%02X", p.ID)
		}
	}
}

// encrypt answers an encryption request: it joins the session server,
// sends the RSA-wrapped shared secret and switches the leg to AES/CFB8.
func (u *Upstream) encrypt(ctx context.Context, conn *Connection, p pk.Packet) error {
	if !u.secrets.OnlineMode() {
		return ErrNoCredentials
	}
	req, err := protocol.DecodeEncryptionRequest(p)
	if err != nil {
		return err
	}
	key, err := x509.ParsePKIXPublicKey(req.PublicKey)
	if err != nil {
		return fmt.Errorf("parse server key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("server key is %T, not RSA", key)
	}
	profileID, err := uuid.Parse(u.secrets.ProfileUUID)
	if err != nil {
		return err
	}

	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	hash := AuthDigest(req.ServerID, secret, req.PublicKey)
	if err := u.joiner.Join(ctx, u.secrets.AccessToken, profileID, hash); err != nil {
		return err
	}

	encSecret, err := rsa.EncryptPKCS1v15(rand.Reader, rsaKey, secret)
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}
	encToken, err := rsa.EncryptPKCS1v15(rand.Reader, rsaKey, req.VerifyToken)
	if err != nil {
		return fmt.Errorf("encrypt verify token: %w", err)
	}
	if err := conn.WritePacket(protocol.EncryptionResponse(encSecret, encToken)); err != nil {
		return err
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return err
	}
	conn.SetCipher(CFB8.NewCFB8Encrypt(block, secret), CFB8.NewCFB8Decrypt(block, secret))
	u.logger.Debug().Msg("upstream encryption enabled")
	return nil
}
