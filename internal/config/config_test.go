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
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
environments:
  - name: dev
    url: nats://dev:4222
  - name: prod
    url: nats://prod:4222
    username: ops
    password: secret
default_environment: prod
engine:
  batch_size: 25
  dmq_suffix: _dead
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, SourceConfigFile, cfg.GetConfigSource())
	assert.Equal(t, "prod", cfg.CurrentEnvironmentName())
	assert.Equal(t, "nats://prod:4222", cfg.CurrentEnvironment().URL)
	assert.Equal(t, 25, cfg.Engine.BatchSize)
	assert.Equal(t, "_dead", cfg.Engine.DMQSuffix)
}

func TestLoadFileKeepsEngineDefaults(t *testing.T) {
	path := writeConfig(t, `
environments:
  - name: dev
    url: nats://dev:4222
default_environment: dev
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Engine.BatchSize)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrentMutations)
	assert.True(t, cfg.Engine.RetryOnTransientError)
	assert.Equal(t, 3, cfg.Engine.RetryLimit)
	assert.Equal(t, "_dmq", cfg.Engine.DMQSuffix)
	assert.Equal(t, 200*time.Millisecond, cfg.Engine.GetRetryBackoff())
}

func TestLoadServerOverride(t *testing.T) {
	cfg, err := Load("", "nats://override:4222")
	require.NoError(t, err)
	assert.Equal(t, SourceCLI, cfg.GetConfigSource())
	assert.Equal(t, "cli", cfg.CurrentEnvironmentName())
	assert.Equal(t, "nats://override:4222", cfg.CurrentEnvironment().URL)
}

func TestLoadMissingFileWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, cfg.GetConfigSource())
	assert.Equal(t, "local", cfg.CurrentEnvironmentName())
	assert.FileExists(t, path)

	// The written file round-trips.
	again, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "local", again.CurrentEnvironmentName())
	assert.Equal(t, 50, again.Engine.BatchSize)
}

func TestSetEnvironment(t *testing.T) {
	path := writeConfig(t, `
environments:
  - name: dev
    url: nats://dev:4222
  - name: prod
    url: nats://prod:4222
default_environment: dev
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.NoError(t, cfg.SetEnvironment("prod"))
	assert.Equal(t, "prod", cfg.CurrentEnvironmentName())
	assert.Error(t, cfg.SetEnvironment("staging"))
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("QOPS_TEST_TOKEN", "tok-123")
	t.Setenv("QOPS_TEST_PASS", "pw-456")
	path := writeConfig(t, `
environments:
  - name: dev
    url: nats://dev:4222
    token: $QOPS_TEST_TOKEN
    password: ${QOPS_TEST_PASS}
default_environment: dev
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	env := cfg.CurrentEnvironment()
	assert.Equal(t, "tok-123", env.Token)
	assert.Equal(t, "pw-456", env.Password)
}

func TestCredsPathRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environments:
  - name: dev
    url: nats://dev:4222
    creds: ./dev.creds
default_environment: dev
`), 0644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dev.creds"), cfg.CurrentEnvironment().Creds)
}

func TestGetRetryBackoffInvalid(t *testing.T) {
	e := Engine{RetryBackoff: "not-a-duration"}
	assert.Equal(t, 200*time.Millisecond, e.GetRetryBackoff())
}
