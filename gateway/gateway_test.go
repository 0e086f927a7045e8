package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-gateway/auth"
	"chat-gateway/domain/chat"
	"chat-gateway/moderation"
	"chat-gateway/repositories"
	"chat-gateway/runtime"
	"chat-gateway/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testCookieName = "access_token"

type testServer struct {
	url      string
	verifier *auth.TokenVerifier
	rooms    services.IRoomService
	messages repositories.IMessageRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.Default()

	options := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.NoError(t, err)

	messageRepo := repositories.NewMessageRepository(db, log)
	roomRepo := repositories.NewRoomRepository(db)
	userRepo := repositories.NewUserRepository(db)

	chatService := services.NewChatService(log, messageRepo, roomRepo, userRepo, &moderator)
	roomService := services.NewRoomService(log, roomRepo)

	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry)
	verifier := auth.NewTokenVerifier([]byte("test-secret"), "chat-gateway")

	g := NewGateway(log, verifier, registry, broadcaster, chatService, roomService, nil, Options{
		CookieName:       testCookieName,
		SendBufferSize:   16,
		HandshakeTimeout: 2 * time.Second,
	})

	server := httptest.NewServer(g)
	t.Cleanup(server.Close)

	return &testServer{
		url:      "ws" + strings.TrimPrefix(server.URL, "http"),
		verifier: verifier,
		rooms:    roomService,
		messages: messageRepo,
	}
}

func (s *testServer) token(t *testing.T, subjectID, userID, nickname string) string {
	t.Helper()
	token, err := s.verifier.GenerateToken(subjectID, userID, nickname, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{"Cookie": {testCookieName + "=" + token}}
	conn, _, err := websocket.DefaultDialer.Dial(s.url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readFrame fails the test if no frame arrives in time.
func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

// waitForEvent discards frames until the wanted event arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, name string) frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f := readFrame(t, conn)
		if f.Event == name {
			return f
		}
	}
	t.Fatalf("event %q never arrived", name)
	return frame{}
}

func send(t *testing.T, conn *websocket.Conn, eventName string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]any{"event": eventName, "data": json.RawMessage(data)})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func TestGateway_Handshake_Requires_Cookie(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	// When dialing without any cookie
	conn, resp, err := websocket.DefaultDialer.Dial(server.url, nil)

	// Then the upgrade is refused before any websocket exists
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Nil(conn)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_Handshake_Rejects_Invalid_Token(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	header := http.Header{"Cookie": {testCookieName + "=not-a-jwt"}}
	_, resp, err := websocket.DefaultDialer.Dial(server.url, header)

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_Greets_On_Connect(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	conn := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))

	f := readFrame(t, conn)
	req.Equal("systemMessage", f.Event)

	var notice chat.SystemNotice
	req.NoError(json.Unmarshal(f.Data, &notice))
	req.Equal("Connected to chat server!", notice.Message)
	req.Equal(chat.NoticeInfo, notice.Type)
}

func TestGateway_Join_Notifies_Others_And_Replays_History(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	alice := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))
	bob := server.dial(t, server.token(t, "sub-2", "bob01", "Bob"))

	// Given Alice already sits in the room and left one message
	send(t, alice, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})
	waitForEvent(t, alice, "chatHistory")
	send(t, alice, EventSendMessage, chat.SendMessagePayload{RoomID: "general", Message: "hello"})
	waitForEvent(t, alice, "newMessage")

	// When Bob joins
	send(t, bob, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})

	// Then Alice is notified
	f := waitForEvent(t, alice, "systemMessage")
	var notice chat.SystemNotice
	req.NoError(json.Unmarshal(f.Data, &notice))
	req.Equal("Bob joined the chat room.", notice.Message)
	req.Equal(chat.NoticeJoin, notice.Type)

	// And Bob gets the history replay, not the join notice
	f = waitForEvent(t, bob, "chatHistory")
	var history []chat.Message
	req.NoError(json.Unmarshal(f.Data, &history))
	req.Len(history, 1)
	req.Equal("hello", history[0].Body)
}

func TestGateway_SendMessage_Reaches_Everyone_Including_Sender(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	alice := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))
	bob := server.dial(t, server.token(t, "sub-2", "bob01", "Bob"))

	send(t, alice, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})
	waitForEvent(t, alice, "chatHistory")
	send(t, bob, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})
	waitForEvent(t, bob, "chatHistory")

	// When Alice speaks
	send(t, alice, EventSendMessage, chat.SendMessagePayload{RoomID: "general", Message: "hi bob"})

	// Then both clients receive the exact same persisted message
	var toAlice, toBob chat.Message
	f := waitForEvent(t, alice, "newMessage")
	req.NoError(json.Unmarshal(f.Data, &toAlice))
	f = waitForEvent(t, bob, "newMessage")
	req.NoError(json.Unmarshal(f.Data, &toBob))

	req.Equal("hi bob", toAlice.Body)
	req.Equal(toAlice.ID, toBob.ID)
	req.Equal(toAlice.CreatedAt, toBob.CreatedAt)
	req.Equal("sub-1", toBob.UserID)
}

func TestGateway_SendMessage_Censors_Forbidden_Words(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	alice := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))
	send(t, alice, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})
	waitForEvent(t, alice, "chatHistory")

	send(t, alice, EventSendMessage, chat.SendMessagePayload{RoomID: "general", Message: "b4dger spotted"})

	f := waitForEvent(t, alice, "newMessage")
	var message chat.Message
	req.NoError(json.Unmarshal(f.Data, &message))
	req.Equal("****** spotted", message.Body)
}

func TestGateway_SendMessage_Rejects_Oversized_Body(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	alice := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))
	send(t, alice, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})
	waitForEvent(t, alice, "chatHistory")

	// When the body is one rune over the limit
	oversized := strings.Repeat("a", chat.MaxMessageLength+1)
	send(t, alice, EventSendMessage, chat.SendMessagePayload{RoomID: "general", Message: oversized})

	// Then only an error frame comes back
	f := waitForEvent(t, alice, "error")
	var failure struct {
		Message string `json:"message"`
	}
	req.NoError(json.Unmarshal(f.Data, &failure))
	req.Equal("Failed to send message.", failure.Message)

	// And nothing was persisted
	stored, err := server.messages.GetPage("general", 0, 10)
	req.NoError(err)
	req.Empty(stored)
}

func TestGateway_Join_Protected_Room_Requires_Password(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	roomID, err := server.rooms.CreateRoom("war-room", "", "s3cret")
	req.NoError(err)

	alice := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))

	// When joining with the wrong password
	send(t, alice, EventJoinRoom, chat.JoinRoomPayload{RoomID: roomID, Password: "nope"})
	f := waitForEvent(t, alice, "error")
	var failure struct {
		Message string `json:"message"`
	}
	req.NoError(json.Unmarshal(f.Data, &failure))
	req.Equal("Invalid room password.", failure.Message)

	// When joining with the right one
	send(t, alice, EventJoinRoom, chat.JoinRoomPayload{RoomID: roomID, Password: "s3cret"})
	waitForEvent(t, alice, "chatHistory")
}

func TestGateway_GetChatHistory_Pages(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	alice := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))
	send(t, alice, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})
	waitForEvent(t, alice, "chatHistory")

	for i := 1; i <= 3; i++ {
		send(t, alice, EventSendMessage, chat.SendMessagePayload{RoomID: "general", Message: fmt.Sprintf("message %d", i)})
		waitForEvent(t, alice, "newMessage")
	}

	// When asking for the second page of two
	send(t, alice, EventGetChatHistory, chat.GetChatHistoryPayload{RoomID: "general", Page: 2, Limit: 2})

	f := waitForEvent(t, alice, "chatHistory")
	var history []chat.Message
	req.NoError(json.Unmarshal(f.Data, &history))
	req.Len(history, 1)
	req.Equal("message 1", history[0].Body)
}

func TestGateway_Disconnect_Notifies_Remaining_Occupants(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	alice := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))
	bob := server.dial(t, server.token(t, "sub-2", "bob01", "Bob"))

	send(t, alice, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})
	waitForEvent(t, alice, "chatHistory")
	send(t, bob, EventJoinRoom, chat.JoinRoomPayload{RoomID: "general"})
	waitForEvent(t, bob, "chatHistory")
	waitForEvent(t, alice, "systemMessage")

	// When Bob's connection dies without a leaveRoom
	req.NoError(bob.Close())

	// Then Alice hears about it
	f := waitForEvent(t, alice, "systemMessage")
	var notice chat.SystemNotice
	req.NoError(json.Unmarshal(f.Data, &notice))
	req.Equal("Bob left the chat room.", notice.Message)
	req.Equal(chat.NoticeLeave, notice.Type)
}

func TestGateway_Unknown_Event_Is_An_Error_Notice(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	alice := server.dial(t, server.token(t, "sub-1", "alice01", "Alice"))

	send(t, alice, "teleport", map[string]string{"roomId": "general"})

	f := waitForEvent(t, alice, "error")
	var failure struct {
		Message string `json:"message"`
	}
	req.NoError(json.Unmarshal(f.Data, &failure))
	req.Equal("Unknown event: teleport", failure.Message)
}
