package api

import (
	"context"
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
	"chat-gateway/observability"
	"chat-gateway/repositories"
	"chat-gateway/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

const testCookieName = "access_token"

type staticHealth struct{}

func (staticHealth) GetLatest() observability.Stats {
	return observability.Stats{Sessions: 1, Rooms: 1}
}

type apiFixture struct {
	server      *httptest.Server
	verifier    *auth.TokenVerifier
	chatService services.IChatService
	roomService services.IRoomService
}

func newAPIFixture(t *testing.T) *apiFixture {
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

	roomRepo := repositories.NewRoomRepository(db)
	chatService := services.NewChatService(log, repositories.NewMessageRepository(db, log),
		roomRepo, repositories.NewUserRepository(db), &moderator)
	roomService := services.NewRoomService(log, roomRepo)
	verifier := auth.NewTokenVerifier([]byte("test-secret"), "chat-gateway")

	a := New(log, verifier, chatService, roomService, staticHealth{}, testCookieName)
	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)

	return &apiFixture{server: server, verifier: verifier, chatService: chatService, roomService: roomService}
}

func (f *apiFixture) request(t *testing.T, method, path string, body string, authenticated bool) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)

	if authenticated {
		token, err := f.verifier.GenerateToken("sub-1", "alice01", "Alice", time.Hour)
		require.NoError(t, err)
		request.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
	}

	response, err := f.server.Client().Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func (f *apiFixture) seedMessages(t *testing.T, roomID string, count int) {
	t.Helper()
	require.NoError(t, f.roomService.EnsureRoom(chat.RoomID(roomID)))
	identity := chat.Identity{SubjectID: "sub-1", UserID: "alice01", Nickname: "Alice"}
	for i := 1; i <= count; i++ {
		_, err := f.chatService.SaveMessage(context.Background(), identity, chat.RoomID(roomID), fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}
}

func TestAPI_History_Requires_Authentication(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	response := fixture.request(t, http.MethodGet, "/chat/history/general", "", false)
	req.Equal(http.StatusUnauthorized, response.StatusCode)
}

func TestAPI_History_Pages_Chronologically(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	fixture.seedMessages(t, "general", 5)

	response := fixture.request(t, http.MethodGet, "/chat/history/general?page=2&limit=2", "", true)
	req.Equal(http.StatusOK, response.StatusCode)

	var messages []chat.Message
	req.NoError(json.NewDecoder(response.Body).Decode(&messages))
	req.Len(messages, 2)
	req.Equal("message 2", messages[0].Body)
	req.Equal("message 3", messages[1].Body)
}

func TestAPI_Recent_Defaults_Limit(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	fixture.seedMessages(t, "general", 12)

	response := fixture.request(t, http.MethodGet, "/chat/recent/general", "", true)
	req.Equal(http.StatusOK, response.StatusCode)

	var messages []chat.Message
	req.NoError(json.NewDecoder(response.Body).Decode(&messages))
	req.Len(messages, services.DefaultRecentLimit)
	req.Equal("message 12", messages[len(messages)-1].Body)
}

func TestAPI_History_Unknown_Room_Is_404(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	response := fixture.request(t, http.MethodGet, "/chat/history/ghost-room", "", true)
	req.Equal(http.StatusNotFound, response.StatusCode)
}

func TestAPI_CreateRoom_Then_Protected_Access(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	response := fixture.request(t, http.MethodPost, "/chat/rooms",
		`{"name":"war-room","description":"ops","password":"s3cret"}`, true)
	req.Equal(http.StatusCreated, response.StatusCode)

	var created map[string]string
	req.NoError(json.NewDecoder(response.Body).Decode(&created))
	req.NotEmpty(created["roomId"])

	room, err := fixture.roomService.GetRoom(chat.RoomID(created["roomId"]))
	req.NoError(err)
	req.Equal("war-room", room.Name)
	req.NotEmpty(room.PasswordHash)
}

func TestAPI_ListRooms_Newest_First_Without_Password(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	_, err := fixture.roomService.CreateRoom("lobby", "open to all", "")
	req.NoError(err)
	_, err = fixture.roomService.CreateRoom("war-room", "ops", "s3cret")
	req.NoError(err)

	response := fixture.request(t, http.MethodGet, "/chat/rooms", "", true)
	req.Equal(http.StatusOK, response.StatusCode)

	var rooms []map[string]any
	req.NoError(json.NewDecoder(response.Body).Decode(&rooms))
	req.Len(rooms, 2)

	// Newest room first, and no trace of the password hash anywhere
	req.Equal("war-room", rooms[0]["name"])
	req.Equal("lobby", rooms[1]["name"])
	for _, room := range rooms {
		req.NotContains(room, "password")
		req.NotContains(room, "passwordHash")
	}
}

func TestAPI_GetRoom_By_ID(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	roomID, err := fixture.roomService.CreateRoom("war-room", "ops", "s3cret")
	req.NoError(err)

	response := fixture.request(t, http.MethodGet, "/chat/rooms/"+roomID, "", true)
	req.Equal(http.StatusOK, response.StatusCode)

	var room map[string]any
	req.NoError(json.NewDecoder(response.Body).Decode(&room))
	req.Equal(roomID, room["id"])
	req.Equal("war-room", room["name"])
	req.NotContains(room, "password")
	req.NotContains(room, "passwordHash")

	response = fixture.request(t, http.MethodGet, "/chat/rooms/ghost-room", "", true)
	req.Equal(http.StatusNotFound, response.StatusCode)
}

func TestAPI_CreateRoom_Rejects_Missing_Name(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	response := fixture.request(t, http.MethodPost, "/chat/rooms", `{"description":"no name"}`, true)
	req.Equal(http.StatusBadRequest, response.StatusCode)
}

func TestAPI_Healthz_Is_Open(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	response := fixture.request(t, http.MethodGet, "/healthz", "", false)
	req.Equal(http.StatusOK, response.StatusCode)

	var stats observability.Stats
	req.NoError(json.NewDecoder(response.Body).Decode(&stats))
	req.Equal(1, stats.Sessions)
}
