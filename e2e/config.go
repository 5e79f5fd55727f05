package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHAT_ADDR is host:port of a running server, the suite is skipped when empty
	ChatAddr  string `envconfig:"CHAT_ADDR"`
	JwtSecret string `envconfig:"JWT_SECRET"`
	// Both participants must already be in the server directory (cmd/participants)
	DoctorID string `envconfig:"E2E_DOCTOR_ID" default:"D1"`
	UserID   string `envconfig:"E2E_USER_ID" default:"U1"`
	// E2E_DEBUG_JSON dumps every frame read or written
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
