package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
	assert.Equal(t, 0.7, cfg.Oracle.Temperature)
	assert.Equal(t, 4096, cfg.Oracle.MaxTokens)

	assert.Equal(t, time.Second, cfg.Transport.PollInterval)
	assert.Equal(t, 10, cfg.Transport.MaxPolls)
	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)

	assert.Equal(t, 15, cfg.Run.MaxIterations)
	assert.False(t, cfg.Run.Tolerant)
	assert.Equal(t, 3, cfg.Run.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Run.RetryBackoff)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
oracle:
  provider: anthropic
  model: claude-3-5-sonnet-20241022
  api_key: test-key
  temperature: 0.2
transport:
  poll_interval: 500ms
  max_polls: 20
run:
  max_iterations: 5
  tolerant: true
store:
  driver: memory
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Oracle.Provider)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Oracle.Model)
	assert.Equal(t, "test-key", cfg.Oracle.APIKey)
	assert.Equal(t, 0.2, cfg.Oracle.Temperature)
	assert.Equal(t, 500*time.Millisecond, cfg.Transport.PollInterval)
	assert.Equal(t, 20, cfg.Transport.MaxPolls)
	assert.Equal(t, 5, cfg.Run.MaxIterations)
	assert.True(t, cfg.Run.Tolerant)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, 4096, cfg.Oracle.MaxTokens)
	assert.Equal(t, 3, cfg.Run.RetryAttempts)
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestAPIKeyFallsBackToProviderEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("oracle:\n  provider: anthropic\n"), 0o644))

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-from-env", cfg.Oracle.APIKey)
}

func TestAPIKeyExpandsEnvReference(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath,
		[]byte("oracle:\n  api_key: ${CREWMESH_TEST_KEY}\n"), 0o644))

	t.Setenv("CREWMESH_TEST_KEY", "expanded-key")

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, "expanded-key", cfg.Oracle.APIKey)
}
