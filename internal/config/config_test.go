package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "taskbuddy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Agent.BaseURL)
	assert.Equal(t, 20, cfg.Agent.HistoryTurnLimit)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  host: db.internal
  ssl_mode: require
agent:
  model: openai/gpt-4o-mini
  max_tokens: 512
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Agent.Model)
	assert.Equal(t, 512, cfg.Agent.MaxTokens)
	// Untouched keys keep defaults
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestEnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `
database:
  host: from-file
agent:
  model: from-file-model
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("POSTGRES_HOST", "from-env")
	t.Setenv("OPENROUTER_MODEL", "from-env-model")
	t.Setenv("JWT_SECRET", "sekrit")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, "from-env-model", cfg.Agent.Model)
	assert.Equal(t, "sekrit", cfg.Auth.JWTSecret)
}

func TestManagerServesSnapshot(t *testing.T) {
	path := writeConfig(t, `
agent:
  model: first-model
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	m := NewManager(cfg, zap.NewNop())
	defer m.Close()

	assert.Equal(t, "first-model", m.Agent().Model)
}
