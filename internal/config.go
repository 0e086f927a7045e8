package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	JWTSecret     string `env:"JWT_SECRET,required=true"`
	JWTIssuer     string `env:"JWT_ISSUER,default=chat-gateway"`
	CookieAuthKey string `env:"COOKIE_AUTH_KEY_TOKEN,required=true"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	HandshakeTimeout     time.Duration `env:"HANDSHAKE_TIMEOUT,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	DebugPort int `env:"DEBUG_PORT,default=8081"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
