package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:3000/api", c.BaseURL)
	assert.Equal(t, "ws://127.0.0.1:3000/socket", c.SocketURL)
	assert.Equal(t, "en", c.Language)
	assert.True(t, c.StrictDecryption)
	assert.Equal(t, 5, c.ReconnectMaxAttempts)
	assert.Equal(t, time.Second, c.ReconnectBaseDelay)
	assert.Equal(t, 30*time.Second, c.HealthCheckInterval)
	assert.Equal(t, 5*time.Second, c.HealthCheckTimeout)
	assert.Equal(t, "/login", c.LoginPath)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:3000/api", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempFile(t, "cfg.yaml", "base_url: http://file/api\nlanguage: de\nsocket_url: ws://file/socket\n")
	t.Setenv("SHIFTDESK_LANGUAGE", "vi")

	os.Args = []string{"testbin", "-c", path, "-a", "http://flag/api"}

	cfg := LoadConfig()

	assert.Equal(t, "http://flag/api", cfg.BaseURL, "flag beats file")
	assert.Equal(t, "vi", cfg.Language, "env beats file")
	assert.Equal(t, "ws://file/socket", cfg.SocketURL, "file beats default")
}
