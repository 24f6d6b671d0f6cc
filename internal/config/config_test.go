package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.Equal(t, "BasisTracker/1.0", cfg.Geocode.UserAgent)
	assert.Equal(t, 15, cfg.Geocode.TimeoutSecs)
	assert.InDelta(t, 1.0, cfg.Geocode.RateLimitRPS, 0.001)
	assert.Equal(t, 14, cfg.Aggregate.StaleAfterDays)
	assert.Equal(t, 30, cfg.Aggregate.BasisWindowDays)
	assert.Equal(t, 30, cfg.Aggregate.TrendDays)
	assert.Equal(t, 7, cfg.Aggregate.StatsDays)
	assert.Equal(t, "America/Chicago", cfg.Aggregate.Timezone)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: basis.db
log:
  level: debug
  format: console
server:
  port: 9090
aggregate:
  stale_after_days: 7
  timezone: America/New_York
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "basis.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Aggregate.StaleAfterDays)
	assert.Equal(t, "America/New_York", cfg.Aggregate.Timezone)
	// Untouched sections keep defaults.
	assert.Equal(t, 30, cfg.Aggregate.TrendDays)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("BASIS_STORE_DATABASE_URL", "postgres://localhost/basis")
	t.Setenv("BASIS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/basis", cfg.Store.DatabaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())

	err = InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
