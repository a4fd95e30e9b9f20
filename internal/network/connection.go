// Package network accepts game clients, answers status pings, performs the
// offline client-side login and dials the authenticated upstream leg.
package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// ReadTimeout is how long a leg may stay silent. Both the server and
	// the client send keep-alives well inside it.
	ReadTimeout = 60 * time.Second
	// WriteTimeout bounds a single frame write.
	WriteTimeout = 10 * time.Second
)

// Connection is a framed Minecraft connection with read and write
// deadlines. It satisfies relay.Conn.
type Connection struct {
	*mcnet.Conn

	mu     sync.Mutex
	name   string
	logger zerolog.Logger

	connectedAt time.Time
	closed      bool
}

// NewConnection wraps an established socket.
func NewConnection(conn net.Conn, name string) *Connection {
	return &Connection{
		Conn:        mcnet.WrapConn(conn),
		name:        name,
		connectedAt: time.Now(),
		logger: log.With().
			Str("component", "connection").
			Str("leg", name).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// ReadPacket reads one frame, failing if nothing arrives within
// ReadTimeout.
func (c *Connection) ReadPacket(p *pk.Packet) error {
	if err := c.Socket.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return err
	}
	return c.Conn.ReadPacket(p)
}

// WritePacket sends one frame. Only one goroutine writes per leg.
func (c *Connection) WritePacket(p pk.Packet) error {
	if c.IsClosed() {
		return fmt.Errorf("write to closed %s connection", c.name)
	}
	if err := c.Socket.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return err
	}
	if err := c.Conn.WritePacket(p); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// Close closes the socket once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Debug().Dur("age", time.Since(c.connectedAt)).Msg("connection closed")
	return c.Conn.Close()
}

// IsClosed returns whether Close has been called.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.Socket.RemoteAddr()
}
