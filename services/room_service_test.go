package services

import (
	"log/slog"
	"testing"

	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/repositories"

	"github.com/stretchr/testify/require"
)

func newRoomService(t *testing.T) *RoomService {
	t.Helper()
	db := openTestDB(t)
	return NewRoomService(slog.Default(), repositories.NewRoomRepository(db))
}

func TestRoomService_Open_Room_Accepts_Everyone(t *testing.T) {
	req := require.New(t)
	service := newRoomService(t)

	roomID, err := service.CreateRoom("general", "open discussion", "")
	req.NoError(err)

	// Then any password, or none, is accepted
	req.NoError(service.ValidateAccess(chat.RoomID(roomID), ""))
	req.NoError(service.ValidateAccess(chat.RoomID(roomID), "whatever"))
}

func TestRoomService_Protected_Room_Requires_Password(t *testing.T) {
	req := require.New(t)
	service := newRoomService(t)

	roomID, err := service.CreateRoom("war-room", "", "s3cret")
	req.NoError(err)

	req.NoError(service.ValidateAccess(chat.RoomID(roomID), "s3cret"))
	req.ErrorIs(service.ValidateAccess(chat.RoomID(roomID), "wrong"), errors.ErrRoomAccessDenied)
	req.ErrorIs(service.ValidateAccess(chat.RoomID(roomID), ""), errors.ErrRoomAccessDenied)
}

func TestRoomService_Password_Is_Never_Stored_In_Plain_Text(t *testing.T) {
	req := require.New(t)
	service := newRoomService(t)

	roomID, err := service.CreateRoom("war-room", "", "s3cret")
	req.NoError(err)

	room, err := service.GetRoom(chat.RoomID(roomID))
	req.NoError(err)
	req.NotContains(room.PasswordHash, "s3cret")
	req.Contains(room.PasswordHash, "$argon2id$")
}

func TestRoomService_Missing_Room(t *testing.T) {
	req := require.New(t)
	service := newRoomService(t)

	req.ErrorIs(service.ValidateAccess("missing", ""), errors.ErrRoomNotFound)

	_, err := service.GetRoom("missing")
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomService_CreateRoom_Rejects_Empty_Name(t *testing.T) {
	req := require.New(t)
	service := newRoomService(t)

	_, err := service.CreateRoom("", "", "")
	req.ErrorIs(err, errors.ErrValidation)
}
