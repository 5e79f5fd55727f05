package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host               string        `env:"HOST,default=localhost"`
	Port               int           `env:"PORT,default=8080" validate:"gt=0,lt=65536"`
	LogLevel           string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath     string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	JwtSecret          string        `env:"JWT_SECRET,required=true" validate:"required"`
	EncryptionKey      string        `env:"ENCRYPTION_KEY,required=true" validate:"required"`
	HistoryLimit       int           `env:"HISTORY_LIMIT,default=50" validate:"gt=0"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST,default=20" validate:"gt=0"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW,default=60s" validate:"gt=0"`
	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL,default=30s" validate:"gt=0"`
	StoreRetryAttempts int           `env:"STORE_RETRY_ATTEMPTS,default=3" validate:"gt=0"`
	StoreRetryBackoff  time.Duration `env:"STORE_RETRY_BACKOFF,default=1s" validate:"gte=0"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	MaxContentLength   int           `env:"MAX_CONTENT_LENGTH,default=4096" validate:"gt=0"`
	ReadLimit          int64         `env:"READ_LIMIT,default=1048576" validate:"gt=0"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	JanitorInterval    time.Duration `env:"JANITOR_INTERVAL,default=5m" validate:"gt=0"`
	HealthInterval     time.Duration `env:"HEALTH_INTERVAL,default=30s" validate:"gt=0"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	// Comma separated, empty accepts any origin
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}

// LoadConfig reads an optional .env file then the environment.
// Variables already set in the environment win over the file.
func LoadConfig(files ...string) (Config, error) {
	// A missing .env is the normal case outside development
	_ = godotenv.Load(files...)

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IdleTimeout is how long a connection may stay silent, pongs included,
// before it is considered gone: one probe interval plus the time the pong
// may take to come back.
func (c Config) IdleTimeout() time.Duration {
	return c.HeartbeatInterval + c.WriteTimeout
}

func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
