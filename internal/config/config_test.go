package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testMasterKey() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func validYAML() string {
	return `
port: 9090
debug: true
database:
  type: sqlite
  dsn: "file::memory:"
auth:
  jwt_secret: "` + testSecret + `"
  master_key: "` + testMasterKey() + `"
backend:
  base_url: "http://backend:8000"
rate_limit:
  requests: 10
  window: 1s
`
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, warning, err := LoadConfig(writeConfig(t, validYAML()))
	require.NoError(t, err)
	assert.Empty(t, warning)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "http://backend:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, time.Second, cfg.RateLimit.WindowDuration())
	// Defaults fill the gaps the file left.
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTLDuration())
	assert.Equal(t, "/internal/keys/sync", cfg.Backend.SyncPath)
	assert.Equal(t, "/health", cfg.Backend.HealthPath)
}

func TestLoadConfigWarnsOnMissingRateLimit(t *testing.T) {
	yaml := `
database:
  type: sqlite
  dsn: "file::memory:"
auth:
  jwt_secret: "` + testSecret + `"
  master_key: "` + testMasterKey() + `"
backend:
  base_url: "http://backend:8000"
`
	cfg, warning, err := LoadConfig(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.NotEmpty(t, warning)
	assert.Equal(t, 60, cfg.RateLimit.Requests)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AIGATEWAY_PORT", "7777")
	t.Setenv("AIGATEWAY_DATABASE_TYPE", "postgres")
	t.Setenv("AIGATEWAY_DATABASE_DSN", "host=db user=gw")

	cfg, _, err := LoadConfig(writeConfig(t, validYAML()))
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "host=db user=gw", cfg.Database.DSN)
}

func TestLoadConfigValidation(t *testing.T) {
	missingDB := `
auth:
  jwt_secret: "` + testSecret + `"
  master_key: "` + testMasterKey() + `"
backend:
  base_url: "http://backend:8000"
`
	_, _, err := LoadConfig(writeConfig(t, missingDB))
	assert.Error(t, err)

	shortSecret := `
database:
  type: sqlite
  dsn: "file::memory:"
auth:
  jwt_secret: "short"
  master_key: "` + testMasterKey() + `"
backend:
  base_url: "http://backend:8000"
`
	_, _, err = LoadConfig(writeConfig(t, shortSecret))
	assert.Error(t, err)

	badKey := `
database:
  type: sqlite
  dsn: "file::memory:"
auth:
  jwt_secret: "` + testSecret + `"
  master_key: "dG9vc2hvcnQ="
backend:
  base_url: "http://backend:8000"
`
	_, _, err = LoadConfig(writeConfig(t, badKey))
	assert.Error(t, err)

	noBackend := `
database:
  type: sqlite
  dsn: "file::memory:"
auth:
  jwt_secret: "` + testSecret + `"
  master_key: "` + testMasterKey() + `"
`
	_, _, err = LoadConfig(writeConfig(t, noBackend))
	assert.Error(t, err)
}
