package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/Tnze/go-mc/offline"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/relay"
	"github.com/energizer-project/jagprox/internal/util"
)

const versionName = "1.8.9"

// TCPListener accepts game clients on the proxy address. Status pings are
// answered locally; logins are handed to the session registry.
type TCPListener struct {
	cfg      *config.Config
	registry *relay.Registry
	listener net.Listener
	logger   zerolog.Logger
}

// NewTCPListener creates a client listener.
func NewTCPListener(cfg *config.Config, registry *relay.Registry) *TCPListener {
	return &TCPListener{
		cfg:      cfg,
		registry: registry,
		logger:   util.ComponentLogger("listener"),
	}
}

// Start listens and serves clients until ctx is cancelled.
func (l *TCPListener) Start(ctx context.Context) error {
	addr := l.cfg.GetProxy().Listen

	// SO_REUSEADDR allows immediate rebinding after a restart
	lc := ReuseAddrListenConfig()
	var err error
	l.listener, err = lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener on %s: %w", addr, err)
	}

	l.logger.Info().Str("addr", addr).Str("upstream", l.cfg.GetProxy().Upstream).Msg("proxy listening")

	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.logger.Info().Msg("listener stopping")
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				l.logger.Error().Err(err).Msg("failed to accept connection")
				continue
			}
		}

		l.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("new client connection")
		go l.handleConnection(ctx, conn)
	}
}

// handleConnection reads the handshake and branches on the next state.
func (l *TCPListener) handleConnection(ctx context.Context, raw net.Conn) {
	conn := NewConnection(raw, "client")
	logger := l.logger.With().Str("remote", raw.RemoteAddr().String()).Logger()

	var p pk.Packet
	if err := conn.ReadPacket(&p); err != nil {
		logger.Debug().Err(err).Msg("failed to read handshake")
		conn.Close()
		return
	}
	hs, err := protocol.DecodeHandshake(p)
	if err != nil {
		logger.Warn().Err(err).Msg("bad handshake")
		conn.Close()
		return
	}

	switch hs.NextState {
	case protocol.NextStateStatus:
		defer conn.Close()
		if err := l.serveStatus(conn); err != nil {
			logger.Debug().Err(err).Msg("status exchange ended")
		}
	case protocol.NextStateLogin:
		l.serveLogin(ctx, conn, hs, logger)
	default:
		logger.Warn().Int32("state", hs.NextState).Msg("unknown next state")
		conn.Close()
	}
}

type statusResponse struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
	} `json:"players"`
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
}

// serveStatus answers one status request and the ping that follows it.
func (l *TCPListener) serveStatus(conn *Connection) error {
	proxy := l.cfg.GetProxy()

	var p pk.Packet
	if err := conn.ReadPacket(&p); err != nil {
		return err
	}
	if p.ID != protocol.StatusRequest {
		return fmt.Errorf("expected status request, got 0x%02X", p.ID)
	}

	var resp statusResponse
	resp.Version.Name = versionName
	resp.Version.Protocol = proxy.ProtocolVersion
	resp.Players.Max = 1
	if _, ok := l.registry.Active(); ok {
		resp.Players.Online = 1
	}
	resp.Description.Text = proxy.MOTD
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := conn.WritePacket(pk.Marshal(protocol.StatusResponse, pk.String(body))); err != nil {
		return err
	}

	if err := conn.ReadPacket(&p); err != nil {
		return err
	}
	if p.ID != protocol.StatusPing {
		return fmt.Errorf("expected ping, got 0x%02X", p.ID)
	}
	return conn.WritePacket(pk.Packet{ID: protocol.StatusPong, Data: p.Data})
}

// serveLogin performs the offline client login and attaches a session.
// It returns once the session has ended.
func (l *TCPListener) serveLogin(ctx context.Context, conn *Connection, hs protocol.HandshakeFrame, logger zerolog.Logger) {
	proxy := l.cfg.GetProxy()
	if int(hs.Protocol) != proxy.ProtocolVersion {
		logger.Warn().Int32("protocol", hs.Protocol).Msg("client protocol mismatch")
		l.refuse(conn, "Please connect with Minecraft "+versionName+".")
		return
	}

	var p pk.Packet
	if err := conn.ReadPacket(&p); err != nil {
		logger.Debug().Err(err).Msg("failed to read login start")
		conn.Close()
		return
	}
	name, err := protocol.DecodeLoginStart(p)
	if err != nil {
		logger.Warn().Err(err).Msg("bad login start")
		conn.Close()
		return
	}

	profile := protocol.Profile{UUID: offline.NameToUUID(name), Name: name}
	logger.Info().Str("player", name).Msg("client login")

	session, err := l.registry.Attach(ctx, conn, profile)
	if err != nil {
		logger.Warn().Err(err).Str("player", name).Msg("session refused")
		if errors.Is(err, relay.ErrAlreadyConnected) {
			l.refuse(conn, "Another session is already active on this proxy.")
		} else {
			l.refuse(conn, "Could not connect to "+proxy.Upstream+".")
		}
		return
	}
	session.Wait()
}

func (l *TCPListener) refuse(conn *Connection, reason string) {
	_ = conn.WritePacket(protocol.Disconnect(protocol.LoginDisconnect, reason))
	conn.Close()
}

// Stop closes the listening socket.
func (l *TCPListener) Stop() error {
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}
