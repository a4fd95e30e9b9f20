package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/energizer-project/jagprox/internal/events"
)

const (
	streamBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
)

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := s.cfg.GetAdmin().AllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
				return true
			}
			if slices.Contains(allowed, origin) {
				return true
			}
			// Same-origin dashboard requests.
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// handleEvents streams every bus event to the client as JSON text
// frames. Events are dropped for a client that falls behind.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	name := "api.stream." + uuid.NewString()
	send := make(chan []byte, streamBuffer)
	done := make(chan struct{})

	s.bus.SubscribeAll(name, func(_ context.Context, event events.Event) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		select {
		case send <- data:
		case <-done:
		default:
			s.logger.Debug().Str("stream", name).Msg("event stream behind, dropping event")
		}
		return nil
	})
	s.logger.Debug().Str("client_ip", c.ClientIP()).Msg("event stream opened")

	go func() {
		readStream(conn)
		close(done)
	}()
	writeStream(conn, send, done, s.bus.StopCh())

	s.bus.Unsubscribe("", name)
	conn.Close()
	s.logger.Debug().Str("client_ip", c.ClientIP()).Msg("event stream closed")
}

// readStream discards client frames until the connection fails.
func readStream(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeStream(conn *websocket.Conn, send <-chan []byte, done, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case <-done:
			return
		}
	}
}
