// Package gateway is the websocket edge of the chat server: it authenticates
// the handshake, owns the session lifecycle, and dispatches inbound events
// to the application services.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chat-gateway/auth"
	"chat-gateway/contract"
	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
	"chat-gateway/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const defaultSendBufferSize = 256

// Counters receives delivery metrics. The observability monitor implements
// it; tests usually leave it nil.
type Counters interface {
	IncrMessagesDelivered()
}

type noopCounters struct{}

func (noopCounters) IncrMessagesDelivered() {}

// Options tune the websocket edge without touching the wiring.
type Options struct {
	// CookieName is the cookie carrying the JWT during the handshake.
	CookieName string
	// SendBufferSize bounds the per-session outbound buffer.
	SendBufferSize int
	// HandshakeTimeout bounds the websocket upgrade itself.
	HandshakeTimeout time.Duration
}

type Gateway struct {
	log         *slog.Logger
	upgrader    websocket.Upgrader
	verifier    *auth.TokenVerifier
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	chatService services.IChatService
	roomService services.IRoomService
	validate    *validator.Validate
	counters    Counters
	cookieName  string
	bufferSize  int
}

func NewGateway(
	log *slog.Logger,
	verifier *auth.TokenVerifier,
	registry contract.IRegistry,
	broadcaster contract.IBroadcaster,
	chatService services.IChatService,
	roomService services.IRoomService,
	counters Counters,
	options Options,
) *Gateway {
	if options.SendBufferSize <= 0 {
		options.SendBufferSize = defaultSendBufferSize
	}
	if counters == nil {
		counters = noopCounters{}
	}
	return &Gateway{
		log: log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: options.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			// Auth lives in the token, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		verifier:    verifier,
		registry:    registry,
		broadcaster: broadcaster,
		chatService: chatService,
		roomService: roomService,
		validate:    validator.New(),
		counters:    counters,
		cookieName:  options.CookieName,
		bufferSize:  options.SendBufferSize,
	}
}

// ServeHTTP performs the authenticated handshake and then blocks on the read
// pump for the lifetime of the connection. Unauthenticated requests are
// rejected before the upgrade so no websocket resources are ever spent on
// them.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(g.cookieName)
	if err != nil {
		g.log.Warn("Client connected without token", "remote", r.RemoteAddr)
		http.Error(w, "Authentication required.", http.StatusUnauthorized)
		return
	}

	identity, err := g.verifier.Verify(cookie.Value)
	if err != nil {
		g.log.Warn("Client authentication failed", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "Authentication failed.", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		g.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	session := NewSession(g.log, conn, identity, g.bufferSize)
	g.registry.Bind(session.ID, session)
	g.log.Info("Client connected", "session", session.ID, "user", identity.UserID, "remote", r.RemoteAddr)

	go session.writePump()

	greeting := event.Notice{Notice: chat.SystemNotice{Message: "Connected to chat server!", Type: chat.NoticeInfo}}
	if err := session.Consume(r.Context(), greeting); err != nil {
		g.log.Warn("Greeting dropped", "session", session.ID, "error", err)
	}

	session.readPump(r.Context(), func(ctx context.Context, raw []byte) {
		g.dispatch(ctx, session, raw)
	})

	g.disconnect(session)
}

// disconnect removes the session from every room it occupied and tells the
// remaining occupants. The handler context is already canceled at this
// point, so notifications run on a fresh one.
func (g *Gateway) disconnect(session *Session) {
	rooms := g.registry.RemoveSession(session.ID)
	for _, roomID := range rooms {
		g.broadcaster.Emit(context.Background(), roomID, event.Notice{
			Room: roomID,
			Notice: chat.SystemNotice{
				Message: fmt.Sprintf("%s left the chat room.", session.Identity.Nickname),
				Type:    chat.NoticeLeave,
			},
		}, session.ID)
	}
	session.Close()
	g.log.Info("Client disconnected", "session", session.ID, "user", session.Identity.UserID, "rooms", len(rooms))
}
