// Package api exposes the read-side of the chat history and the health of
// the gateway over plain HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chat-gateway/auth"
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/observability"
	"chat-gateway/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

// HealthSource provides the latest gateway snapshot for the health endpoint.
type HealthSource interface {
	GetLatest() observability.Stats
}

type API struct {
	log         *slog.Logger
	verifier    *auth.TokenVerifier
	chatService services.IChatService
	roomService services.IRoomService
	health      HealthSource
	validate    *validator.Validate
	cookieName  string
}

func New(
	log *slog.Logger,
	verifier *auth.TokenVerifier,
	chatService services.IChatService,
	roomService services.IRoomService,
	health HealthSource,
	cookieName string,
) *API {
	return &API{
		log:         log,
		verifier:    verifier,
		chatService: chatService,
		roomService: roomService,
		health:      health,
		validate:    validator.New(),
		cookieName:  cookieName,
	}
}

// Router wires every REST route. The chat routes sit behind the same cookie
// authentication as the websocket handshake; health stays open for probes.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)

	chatRouter := router.PathPrefix("/chat").Subrouter()
	chatRouter.Use(a.authenticate)
	chatRouter.HandleFunc("/history/{roomId}", a.handleHistory).Methods(http.MethodGet)
	chatRouter.HandleFunc("/recent/{roomId}", a.handleRecent).Methods(http.MethodGet)
	chatRouter.HandleFunc("/rooms", a.handleListRooms).Methods(http.MethodGet)
	chatRouter.HandleFunc("/rooms", a.handleCreateRoom).Methods(http.MethodPost)
	chatRouter.HandleFunc("/rooms/{roomId}", a.handleGetRoom).Methods(http.MethodGet)
	return router
}

func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(a.cookieName)
		if err != nil {
			a.writeError(w, errors.ErrUnauthenticated, "Authentication required.")
			return
		}
		if _, err := a.verifier.Verify(cookie.Value); err != nil {
			a.writeError(w, err, "Authentication failed.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.health.GetLatest())
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chat.RoomID(mux.Vars(r)["roomId"])
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", services.DefaultHistoryLimit)

	messages, err := a.chatService.GetChatHistory(roomID, page, limit)
	if err != nil {
		a.writeError(w, err, "Failed to get chat history.")
		return
	}
	a.writeJSON(w, http.StatusOK, messages)
}

func (a *API) handleRecent(w http.ResponseWriter, r *http.Request) {
	roomID := chat.RoomID(mux.Vars(r)["roomId"])
	limit := queryInt(r, "limit", services.DefaultRecentLimit)

	messages, err := a.chatService.GetRecentMessages(roomID, limit)
	if err != nil {
		a.writeError(w, err, "Failed to get chat history.")
		return
	}
	a.writeJSON(w, http.StatusOK, messages)
}

// roomResponse is the public shape of a room. The password hash never
// leaves the service.
type roomResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toRoomResponse(room chat.Room) roomResponse {
	return roomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		CreatedAt:   room.CreatedAt,
	}
}

func (a *API) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms, err := a.roomService.ListRooms()
	if err != nil {
		a.writeError(w, err, "Failed to list rooms.")
		return
	}
	a.writeJSON(w, http.StatusOK, lo.Map(rooms, func(room chat.Room, _ int) roomResponse {
		return toRoomResponse(room)
	}))
}

func (a *API) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := a.roomService.GetRoom(chat.RoomID(mux.Vars(r)["roomId"]))
	if err != nil {
		a.writeError(w, err, "Failed to get room.")
		return
	}
	a.writeJSON(w, http.StatusOK, toRoomResponse(room))
}

type createRoomRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Password    string `json:"password"`
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var request createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		a.writeError(w, errors.ErrValidation, "Invalid request body.")
		return
	}
	if err := a.validate.Struct(request); err != nil {
		a.writeError(w, errors.ErrValidation, "Invalid request body.")
		return
	}

	roomID, err := a.roomService.CreateRoom(request.Name, request.Description, request.Password)
	if err != nil {
		a.writeError(w, err, "Failed to create room.")
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Warn("Error writing response", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, err error, message string) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.log.Error(message, "error", err)
	}
	a.writeJSON(w, status, map[string]string{"message": message})
}

// queryInt reads an integer query parameter, falling back on garbage.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
