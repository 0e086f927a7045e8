package chat

// Inbound event payloads. Validation tags are enforced by the gateway
// before any handler runs.

type JoinRoomPayload struct {
	RoomID   string `json:"roomId" validate:"required"`
	Password string `json:"password"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type SendMessagePayload struct {
	RoomID  string `json:"roomId" validate:"required"`
	Message string `json:"message" validate:"required,max=1000"`
}

type GetChatHistoryPayload struct {
	RoomID string `json:"roomId" validate:"required"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}
