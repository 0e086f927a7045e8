package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be shorter than pongWait
	// maxFrameBytes bounds inbound frames well above the message body limit
	// so the envelope and a full-size body always fit.
	maxFrameBytes = 8192
)

// inboundEnvelope is the wire shape of every client frame.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outboundEnvelope is the wire shape of every server frame.
type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Session is one authenticated websocket connection. It implements
// contract.EventSink: Consume serializes the event and hands it to the
// write pump through a bounded buffer. A full buffer means the client is
// too slow; the event is dropped rather than ever blocking a broadcast.
type Session struct {
	ID       string
	Identity chat.Identity

	log  *slog.Logger
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func NewSession(log *slog.Logger, conn *websocket.Conn, identity chat.Identity, bufferSize int) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		log:      log,
		conn:     conn,
		send:     make(chan []byte, bufferSize),
	}
}

// Consume implements contract.EventSink.
func (s *Session) Consume(_ context.Context, e event.DomainEvent) error {
	frame, err := json.Marshal(outboundEnvelope{Event: e.Name(), Data: e.Body()})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.ID)
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return fmt.Errorf("send buffer full for session %s", s.ID)
	}
}

// Close stops the write pump. Safe to call more than once; after Close every
// Consume reports the session as closed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// readPump reads frames until the connection dies and feeds them to the
// handler. It owns the read side of the connection entirely.
func (s *Session) readPump(ctx context.Context, handle func(ctx context.Context, raw []byte)) {
	defer func() {
		if err := s.conn.Close(); err != nil {
			s.log.Debug("Error closing connection", "session", s.ID, "error", err)
		}
	}()

	s.conn.SetReadLimit(maxFrameBytes)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Warn("Error setting read deadline", "session", s.ID, "error", err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Unexpected websocket error", "session", s.ID, "error", err)
			}
			return
		}
		handle(ctx, raw)
	}
}

// writePump owns the write side of the connection: outbound frames from the
// send buffer, and pings to keep idle connections alive.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil {
			s.log.Debug("Error closing connection", "session", s.ID, "error", err)
		}
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Close() drained us; tell the client we are done.
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("Error writing frame", "session", s.ID, "error", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
