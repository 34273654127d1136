package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
jwt:
  secret: test-secret
webhooks:
  failure_threshold: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, 3, cfg.Webhooks.FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.Webhooks.Timeout)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: from-file
`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("KAFKA_TOPIC", "projecthub.events")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "projecthub.events", cfg.Kafka.Topic)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-only")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.JWT.Secret)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_RequiresSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	_, err := Load(path)
	assert.Error(t, err)
}
