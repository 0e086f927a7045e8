//go:generate go run go.uber.org/mock/mockgen -source=room_service.go -destination=../mocks/mock_room_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"

	"chat-gateway/auth"
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/repositories"
)

type IRoomService interface {
	CreateRoom(name, description, password string) (string, error)
	EnsureRoom(roomID chat.RoomID) error
	GetRoom(roomID chat.RoomID) (chat.Room, error)
	ListRooms() ([]chat.Room, error)
	ValidateAccess(roomID chat.RoomID, password string) error
}

type RoomService struct {
	log   *slog.Logger
	rooms repositories.IRoomRepository
}

func NewRoomService(log *slog.Logger, rooms repositories.IRoomRepository) *RoomService {
	return &RoomService{log: log, rooms: rooms}
}

// CreateRoom persists a new room. A non-empty password is hashed before it
// ever touches the disk; the plain text is never stored.
func (s *RoomService) CreateRoom(name, description, password string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: room name is empty", errors.ErrValidation)
	}

	passwordHash := ""
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return "", err
		}
		passwordHash = hash
	}
	return s.rooms.CreateRoom(name, description, passwordHash)
}

// EnsureRoom lazily creates an open room. Joining an unknown room brings it
// to life instead of failing.
func (s *RoomService) EnsureRoom(roomID chat.RoomID) error {
	return s.rooms.EnsureRoom(string(roomID))
}

func (s *RoomService) GetRoom(roomID chat.RoomID) (chat.Room, error) {
	return s.rooms.GetRoom(string(roomID))
}

// ListRooms returns every room, newest first, for clients picking one to
// join.
func (s *RoomService) ListRooms() ([]chat.Room, error) {
	return s.rooms.ListRooms()
}

// ValidateAccess gates entry to a room. Open rooms accept everyone; a
// protected room requires the exact password. A wrong password surfaces as
// ErrRoomAccessDenied, a missing room as ErrRoomNotFound.
func (s *RoomService) ValidateAccess(roomID chat.RoomID, password string) error {
	room, err := s.rooms.GetRoom(string(roomID))
	if err != nil {
		return err
	}
	if room.PasswordHash == "" {
		return nil
	}

	match, err := auth.ComparePassword(password, room.PasswordHash)
	if err != nil {
		s.log.Warn("Unreadable room password hash", "room", roomID, "error", err)
		return errors.ErrRoomAccessDenied
	}
	if !match {
		return errors.ErrRoomAccessDenied
	}
	return nil
}
