package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 57575, cfg.Server.Port)
	assert.False(t, cfg.Server.Unsecure)
	assert.Equal(t, "default", cfg.Server.Theme)
	assert.NotEmpty(t, cfg.Server.CertDir)
	assert.NotEmpty(t, cfg.Server.SessionLogDir)
	assert.Equal(t, "localhost:57575", cfg.Addr())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MORPHO_HOST", "0.0.0.0")
	t.Setenv("MORPHO_PORT", "8022")
	t.Setenv("MORPHO_UNSECURE", "true")
	t.Setenv("MORPHO_SHELL", "/bin/fish")
	t.Setenv("MORPHO_THEME", "monokai")
	t.Setenv("MORPHO_LOG_SESSIONS", "1")
	t.Setenv("MORPHO_SESSION_LOG_DIR", "/tmp/morpho-logs")

	cfg := DefaultConfig()
	require.NoError(t, cfg.applyEnv())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8022, cfg.Server.Port)
	assert.True(t, cfg.Server.Unsecure)
	assert.Equal(t, "/bin/fish", cfg.Server.Shell)
	assert.Equal(t, "monokai", cfg.Server.Theme)
	assert.True(t, cfg.Server.LogSessions)
	assert.Equal(t, "/tmp/morpho-logs", cfg.Server.SessionLogDir)
}

func TestEnvRejectsBadValues(t *testing.T) {
	t.Run("port", func(t *testing.T) {
		t.Setenv("MORPHO_PORT", "not-a-port")
		cfg := DefaultConfig()
		assert.Error(t, cfg.applyEnv())
	})
	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("MORPHO_PORT", "70000")
		cfg := DefaultConfig()
		assert.Error(t, cfg.applyEnv())
	})
	t.Run("unsecure", func(t *testing.T) {
		t.Setenv("MORPHO_UNSECURE", "maybe")
		cfg := DefaultConfig()
		assert.Error(t, cfg.applyEnv())
	})
}
