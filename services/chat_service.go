//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks

// Package services holds the application logic between the realtime
// transport and the persistence layer.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/moderation"
	"chat-gateway/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	// DefaultHistoryLimit applies when a history request carries no limit.
	DefaultHistoryLimit = 50
	// DefaultRecentLimit applies to the newest-messages shortcut.
	DefaultRecentLimit = 10
)

type IChatService interface {
	SaveMessage(ctx context.Context, identity chat.Identity, roomID chat.RoomID, body string) (chat.Message, error)
	GetChatHistory(roomID chat.RoomID, page, limit int) ([]chat.Message, error)
	GetRecentMessages(roomID chat.RoomID, limit int) ([]chat.Message, error)
}

type ChatService struct {
	log       *slog.Logger
	messages  repositories.IMessageRepository
	rooms     repositories.IRoomRepository
	users     repositories.IUserRepository
	moderator *moderation.Moderator
}

func NewChatService(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	rooms repositories.IRoomRepository,
	users repositories.IUserRepository,
	moderator *moderation.Moderator,
) *ChatService {
	return &ChatService{
		log:       log,
		messages:  messages,
		rooms:     rooms,
		users:     users,
		moderator: moderator,
	}
}

// SaveMessage validates, censors and persists a message, then returns the
// exact shape that will be broadcast so every recipient (sender included)
// sees the same id and timestamp.
func (s *ChatService) SaveMessage(ctx context.Context, identity chat.Identity, roomID chat.RoomID, body string) (chat.Message, error) {
	if body == "" {
		return chat.Message{}, fmt.Errorf("%w: message body is empty", errors.ErrValidation)
	}
	if utf8.RuneCountInString(body) > chat.MaxMessageLength {
		return chat.Message{}, fmt.Errorf("%w: message body exceeds %d characters", errors.ErrValidation, chat.MaxMessageLength)
	}

	if err := s.requireRoom(roomID); err != nil {
		return chat.Message{}, err
	}

	// The token is the source of truth for the author; the user store only
	// enriches the nickname when a profile exists.
	nickname := identity.Nickname
	user, err := s.users.GetUserByID(identity.SubjectID)
	switch {
	case err == nil && user.Nickname != "":
		nickname = user.Nickname
	case err != nil && !errors.Is(err, errors.ErrUserNotFound):
		return chat.Message{}, err
	}

	censored, foundWords := s.moderator.Censor(body)
	if len(foundWords) > 0 {
		s.log.Info("Message censored", "room", roomID, "words", len(foundWords))
	}

	message := chat.Message{
		ID:        uuid.New(),
		Body:      censored,
		UserID:    identity.SubjectID,
		Nickname:  nickname,
		RoomID:    roomID,
		CreatedAt: time.Now().UTC(),
	}

	err = s.messages.StoreMessage(repositories.DiskMessage{
		ID:       message.ID,
		Room:     string(message.RoomID),
		Author:   message.UserID,
		Nickname: message.Nickname,
		Content:  message.Body,
		At:       message.CreatedAt,
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// GetChatHistory returns one page of a room's history in chronological
// order. Page and limit below 1 are treated as 1, never errors; defaults
// for absent parameters are the caller's concern.
func (s *ChatService) GetChatHistory(roomID chat.RoomID, page, limit int) ([]chat.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if err := s.requireRoom(roomID); err != nil {
		return nil, err
	}

	diskMessages, err := s.messages.GetPage(string(roomID), (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return toChronological(diskMessages), nil
}

// GetRecentMessages returns the newest messages of a room, oldest first,
// ready to replay to a fresh joiner. A limit below 1 is treated as 1.
func (s *ChatService) GetRecentMessages(roomID chat.RoomID, limit int) ([]chat.Message, error) {
	if limit < 1 {
		limit = 1
	}
	if err := s.requireRoom(roomID); err != nil {
		return nil, err
	}

	diskMessages, err := s.messages.GetPage(string(roomID), 0, limit)
	if err != nil {
		return nil, err
	}
	return toChronological(diskMessages), nil
}

func (s *ChatService) requireRoom(roomID chat.RoomID) error {
	exists, err := s.rooms.Exists(string(roomID))
	if err != nil {
		return err
	}
	if !exists {
		return errors.ErrRoomNotFound
	}
	return nil
}

// toChronological maps the storage shape to the client shape and flips the
// newest-first scan order into reading order.
func toChronological(diskMessages []repositories.DiskMessage) []chat.Message {
	messages := lo.Map(diskMessages, func(m repositories.DiskMessage, _ int) chat.Message {
		return chat.Message{
			ID:        m.ID,
			Body:      m.Content,
			UserID:    m.Author,
			Nickname:  m.Nickname,
			RoomID:    chat.RoomID(m.Room),
			CreatedAt: m.At,
		}
	})
	return lo.Reverse(messages)
}
