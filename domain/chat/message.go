// Package chat contains core concepts of the chat system.
// Messages are immutable once persisted and validated at the boundary.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// RoomID identifies a broadcast group. Rooms are registry keys, not objects.
type RoomID string

// Identity is derived once from a verified credential at connection time
// and never changes for the lifetime of a session.
type Identity struct {
	SubjectID string
	UserID    string
	Nickname  string
}

// Message is the persisted message shape exposed to clients. UserID carries
// the author's durable subject id, not the login name.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Body      string    `json:"message"`
	UserID    string    `json:"userId"`
	Nickname  string    `json:"nickname"`
	RoomID    RoomID    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Room carries the optional access-control attributes of a broadcast group.
// The realtime core only ever consults it through the room service.
type Room struct {
	ID           string
	Name         string
	Description  string
	PasswordHash string
	CreatedAt    time.Time
}

// MaxMessageLength bounds a message body, counted in runes.
const MaxMessageLength = 1000
