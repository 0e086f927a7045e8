// Package event defines the outbound events the server pushes to clients.
package event

import (
	"chat-gateway/domain/chat"
)

// DomainEvent is anything deliverable to a connected session. Name is the
// wire event name, Body the JSON payload.
type DomainEvent interface {
	Name() string
	Body() any
}

// NewMessage carries a persisted message to every occupant of a room.
type NewMessage struct {
	Message chat.Message
}

func (e NewMessage) Name() string { return "newMessage" }
func (e NewMessage) Body() any    { return e.Message }

// Notice is an ephemeral system notice scoped to one room.
type Notice struct {
	Room   chat.RoomID
	Notice chat.SystemNotice
}

func (e Notice) Name() string { return "systemMessage" }
func (e Notice) Body() any    { return e.Notice }

// History delivers a chronological page of messages to a single session.
type History struct {
	Room     chat.RoomID
	Messages []chat.Message
}

func (e History) Name() string { return "chatHistory" }
func (e History) Body() any    { return e.Messages }

// ErrorNotice is only ever delivered to the session that triggered it.
type ErrorNotice struct {
	Message string `json:"message"`
}

func (e ErrorNotice) Name() string { return "error" }
func (e ErrorNotice) Body() any    { return e }
