package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
	"chat-gateway/mocks"
	"chat-gateway/moderation"
	"chat-gateway/repositories"
	"chat-gateway/runtime"
	"chat-gateway/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// Full wiring below the transport: services, persistence, registry and
// fan-out working together the way the composition root assembles them.
func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() {
		req.NoError(db.Close())
	})

	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	req.NoError(err)

	roomRepository := repositories.NewRoomRepository(db)
	chatService := services.NewChatService(log, repositories.NewMessageRepository(db, log),
		roomRepository, repositories.NewUserRepository(db), &moderator)
	roomService := services.NewRoomService(log, roomRepository)

	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry)

	// Given two connected sessions sitting in the same room
	ctrl := gomock.NewController(t)
	aliceSink := mocks.NewMockEventSink(ctrl)
	bobSink := mocks.NewMockEventSink(ctrl)

	roomID := chat.RoomID("general")
	alice := uuid.NewString()
	bob := uuid.NewString()

	req.NoError(roomService.EnsureRoom(roomID))
	registry.Bind(alice, aliceSink)
	registry.Bind(bob, bobSink)
	registry.Add(roomID, alice)
	registry.Add(roomID, bob)

	// Then both sinks receive the same persisted, censored message
	delivered := make(chan chat.Message, 2)
	expectMessage := func(sink *mocks.MockEventSink) {
		sink.EXPECT().
			Consume(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
				delivered <- e.(event.NewMessage).Message
				return nil
			}).
			Times(1)
	}
	expectMessage(aliceSink)
	expectMessage(bobSink)

	// When Alice speaks
	identity := chat.Identity{SubjectID: uuid.NewString(), UserID: "alice01", Nickname: "Alice"}
	message, err := chatService.SaveMessage(ctx, identity, roomID, "a wild b4dger appears")
	req.NoError(err)
	broadcaster.Emit(ctx, roomID, event.NewMessage{Message: message}, "")

	for i := 0; i < 2; i++ {
		select {
		case received := <-delivered:
			req.Equal(message.ID, received.ID)
			req.Equal("a wild ****** appears", received.Body)
		case <-time.After(2 * time.Second):
			req.Fail("Timeout: message never reached every sink")
		}
	}

	// And the message survives a cold read through the history path
	history, err := chatService.GetChatHistory(roomID, 1, 10)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(message.ID, history[0].ID)

	// When Bob disconnects, only Alice remains
	rooms := registry.RemoveSession(bob)
	req.Equal([]chat.RoomID{roomID}, rooms)
	req.Equal([]string{alice}, registry.MembersOf(roomID))
}
