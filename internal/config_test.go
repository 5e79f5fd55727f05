package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENCRYPTION_KEY", "key")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	req.NoError(err)
	req.Equal(8080, config.Port)
	req.Equal(50, config.HistoryLimit)
	req.Equal(20, config.RateLimitBurst)
	req.Equal(time.Minute, config.RateLimitWindow)
	req.Equal(30*time.Second, config.HeartbeatInterval)
	req.Equal(3, config.StoreRetryAttempts)
	req.Equal(time.Second, config.StoreRetryBackoff)
	req.Equal(4096, config.MaxContentLength)
	req.Equal("localhost:8080", config.Address())
	req.Equal(40*time.Second, config.IdleTimeout())
	req.Empty(config.Origins())
}

func TestLoadConfig_RequiresSecrets(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("ENCRYPTION_KEY")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	req.Error(err)
}

func TestLoadConfig_ReadsDotEnv(t *testing.T) {
	req := require.New(t)
	dotenv := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(dotenv, []byte("BADGER_FILEPATH=/tmp/care-chat\nJWT_SECRET=s\nENCRYPTION_KEY=k\nALLOWED_ORIGINS=http://a.test, http://b.test\n"), 0o600))
	for _, key := range []string{"BADGER_FILEPATH", "JWT_SECRET", "ENCRYPTION_KEY", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	config, err := LoadConfig(dotenv)

	req.NoError(err)
	req.Equal("/tmp/care-chat", config.BadgerFilepath)
	req.Equal([]string{"http://a.test", "http://b.test"}, config.Origins())
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENCRYPTION_KEY", "key")
	t.Setenv("RATE_LIMIT_BURST", "0")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	req.Error(err)
}
