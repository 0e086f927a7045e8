// Command client is a terminal chat client for poking a running gateway:
// it mints a development token, joins a room and bridges stdin to the room.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chat-gateway/auth"
	"chat-gateway/domain/chat"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	RoomID        string `env:"CHAT_ROOM_ID,default=general"`
	RoomPassword  string `env:"CHAT_ROOM_PASSWORD"`
	Nickname      string `env:"CHAT_NICKNAME,default=tester"`
	JWTSecret     string `env:"JWT_SECRET,required=true"`
	JWTIssuer     string `env:"JWT_ISSUER,default=chat-gateway"`
	CookieAuthKey string `env:"COOKIE_AUTH_KEY_TOKEN,required=true"`
	LogLevel      string `env:"LOG_LEVEL,required=true"`
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle, configuration loading, and the
// stdin/room bridge.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Mint a development token with the shared secret.
	verifier := auth.NewTokenVerifier([]byte(config.JWTSecret), config.JWTIssuer)
	token, err := verifier.GenerateToken(uuid.NewString(), config.Nickname, config.Nickname, time.Hour)
	if err != nil {
		return exitRuntime, fmt.Errorf("token generation failed: %w", err)
	}

	// 3. Connect.
	url := fmt.Sprintf("ws://%s/ws", config.ServerAddress)
	header := http.Header{"Cookie": {config.CookieAuthKey + "=" + token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return exitRuntime, fmt.Errorf("connection to %s failed: %w", url, err)
	}
	defer conn.Close()
	log.Info("Connected", "server", config.ServerAddress, "room", config.RoomID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Print everything the server pushes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			printFrame(raw)
		}
	}()

	// 5. Join and bridge stdin.
	if err := write(conn, envelope{Event: "joinRoom", Data: chat.JoinRoomPayload{
		RoomID:   config.RoomID,
		Password: config.RoomPassword,
	}}); err != nil {
		return exitRuntime, err
	}

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
			case line == "/quit":
				stop()
				return
			case line == "/history":
				_ = write(conn, envelope{Event: "getChatHistory", Data: chat.GetChatHistoryPayload{RoomID: config.RoomID}})
			default:
				_ = write(conn, envelope{Event: "sendMessage", Data: chat.SendMessagePayload{
					RoomID:  config.RoomID,
					Message: line,
				}})
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = write(conn, envelope{Event: "leaveRoom", Data: chat.LeaveRoomPayload{RoomID: config.RoomID}})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-done:
		// Server went away.
	}
	return exitOK, nil
}

func write(conn *websocket.Conn, e envelope) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func printFrame(raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		color.Red.Printf("unreadable frame: %s\n", raw)
		return
	}

	switch f.Event {
	case "newMessage":
		var message chat.Message
		if json.Unmarshal(f.Data, &message) == nil {
			color.Cyan.Printf("[%s] %s: %s\n",
				message.CreatedAt.Local().Format("15:04:05"), message.Nickname, message.Body)
		}
	case "systemMessage":
		var notice chat.SystemNotice
		if json.Unmarshal(f.Data, &notice) == nil {
			color.Yellow.Printf("-- %s\n", notice.Message)
		}
	case "chatHistory":
		var history []chat.Message
		if json.Unmarshal(f.Data, &history) == nil {
			for _, message := range history {
				color.Gray.Printf("[%s] %s: %s\n",
					message.CreatedAt.Local().Format("15:04:05"), message.Nickname, message.Body)
			}
		}
	case "error":
		var failure struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(f.Data, &failure) == nil {
			color.Red.Printf("!! %s\n", failure.Message)
		}
	default:
		fmt.Printf("%s: %s\n", f.Event, f.Data)
	}
}
