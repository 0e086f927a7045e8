package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
	"chat-gateway/errors"
	"chat-gateway/services"
)

// Inbound event names. One handler per name; anything else is an error
// notice back to the caller.
const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventSendMessage    = "sendMessage"
	EventGetChatHistory = "getChatHistory"
)

// joinHistoryLimit is how many recent messages a joiner gets replayed.
const joinHistoryLimit = 20

func (g *Gateway) dispatch(ctx context.Context, session *Session, raw []byte) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		g.fail(ctx, session, "Invalid frame.", err)
		return
	}

	switch envelope.Event {
	case EventJoinRoom:
		g.handleJoinRoom(ctx, session, envelope.Data)
	case EventLeaveRoom:
		g.handleLeaveRoom(ctx, session, envelope.Data)
	case EventSendMessage:
		g.handleSendMessage(ctx, session, envelope.Data)
	case EventGetChatHistory:
		g.handleGetChatHistory(ctx, session, envelope.Data)
	default:
		g.fail(ctx, session, fmt.Sprintf("Unknown event: %s", envelope.Event), nil)
	}
}

// fail reports a handler failure to the offending session only. Other
// occupants never see another client's errors.
func (g *Gateway) fail(ctx context.Context, session *Session, message string, err error) {
	if err != nil {
		g.log.Warn(message, "session", session.ID, "user", session.Identity.UserID, "error", err)
	}
	g.broadcaster.EmitTo(ctx, session.ID, event.ErrorNotice{Message: message})
}

// decode unmarshals a payload and enforces its validation tags.
func (g *Gateway) decode(data json.RawMessage, payload any) error {
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrValidation, err)
	}
	if err := g.validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrValidation, err)
	}
	return nil
}

// handleJoinRoom adds the session to a room, announces it to the other
// occupants and replays the recent history to the joiner. Joining a room
// twice repeats the announcement and the replay; the membership itself
// stays single.
func (g *Gateway) handleJoinRoom(ctx context.Context, session *Session, data json.RawMessage) {
	var payload chat.JoinRoomPayload
	if err := g.decode(data, &payload); err != nil {
		g.fail(ctx, session, "Failed to join room.", err)
		return
	}
	roomID := chat.RoomID(payload.RoomID)

	err := g.roomService.ValidateAccess(roomID, payload.Password)
	if errors.Is(err, errors.ErrRoomNotFound) {
		// Open rooms come to life on first join.
		err = g.roomService.EnsureRoom(roomID)
	}
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrRoomAccessDenied):
		g.fail(ctx, session, "Invalid room password.", err)
		return
	default:
		g.fail(ctx, session, "Failed to join room.", err)
		return
	}

	g.registry.Add(roomID, session.ID)

	g.broadcaster.Emit(ctx, roomID, event.Notice{
		Room: roomID,
		Notice: chat.SystemNotice{
			Message: fmt.Sprintf("%s joined the chat room.", session.Identity.Nickname),
			Type:    chat.NoticeJoin,
		},
	}, session.ID)

	recent, err := g.chatService.GetRecentMessages(roomID, joinHistoryLimit)
	if err != nil {
		g.fail(ctx, session, "Failed to get chat history.", err)
		return
	}
	g.broadcaster.EmitTo(ctx, session.ID, event.History{Room: roomID, Messages: recent})

	g.log.Info("User joined room", "user", session.Identity.UserID, "room", payload.RoomID)
}

// handleLeaveRoom removes the session from a room. Leaving a room the
// session never joined is a silent no-op.
func (g *Gateway) handleLeaveRoom(ctx context.Context, session *Session, data json.RawMessage) {
	var payload chat.LeaveRoomPayload
	if err := g.decode(data, &payload); err != nil {
		g.fail(ctx, session, "Failed to leave room.", err)
		return
	}
	roomID := chat.RoomID(payload.RoomID)

	if !g.registry.Remove(roomID, session.ID) {
		return
	}

	g.broadcaster.Emit(ctx, roomID, event.Notice{
		Room: roomID,
		Notice: chat.SystemNotice{
			Message: fmt.Sprintf("%s left the chat room.", session.Identity.Nickname),
			Type:    chat.NoticeLeave,
		},
	}, session.ID)

	g.log.Info("User left room", "user", session.Identity.UserID, "room", payload.RoomID)
}

// handleSendMessage persists the message and fans the stored shape out to
// the whole room, sender included, so every client renders the same id and
// timestamp.
func (g *Gateway) handleSendMessage(ctx context.Context, session *Session, data json.RawMessage) {
	var payload chat.SendMessagePayload
	if err := g.decode(data, &payload); err != nil {
		g.fail(ctx, session, "Failed to send message.", err)
		return
	}
	roomID := chat.RoomID(payload.RoomID)

	message, err := g.chatService.SaveMessage(ctx, session.Identity, roomID, payload.Message)
	if err != nil {
		g.fail(ctx, session, "Failed to send message.", err)
		return
	}

	g.broadcaster.Emit(ctx, roomID, event.NewMessage{Message: message}, "")
	g.counters.IncrMessagesDelivered()

	g.log.Info("Message sent", "user", session.Identity.UserID, "room", payload.RoomID)
}

// handleGetChatHistory replies with one page of history, to the requester
// only.
func (g *Gateway) handleGetChatHistory(ctx context.Context, session *Session, data json.RawMessage) {
	var payload chat.GetChatHistoryPayload
	if err := g.decode(data, &payload); err != nil {
		g.fail(ctx, session, "Failed to get chat history.", err)
		return
	}
	roomID := chat.RoomID(payload.RoomID)

	// A frame without a limit decodes to zero; that means "default", while
	// an explicit nonsense value is clamped by the service.
	limit := payload.Limit
	if limit == 0 {
		limit = services.DefaultHistoryLimit
	}

	messages, err := g.chatService.GetChatHistory(roomID, payload.Page, limit)
	if err != nil {
		g.fail(ctx, session, "Failed to get chat history.", err)
		return
	}
	g.broadcaster.EmitTo(ctx, session.ID, event.History{Room: roomID, Messages: messages})
}
