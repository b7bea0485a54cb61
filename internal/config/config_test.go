package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inDir runs the test from an empty directory so no stray .env is picked up.
func inDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

// unset removes key for the duration of the test.
func unset(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad_Defaults(t *testing.T) {
	inDir(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Europe/Moscow", cfg.DefaultTZ)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.AdminIDs)
}

func TestLoad_FromEnv(t *testing.T) {
	inDir(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "10,11")
	t.Setenv("POLL_INTERVAL", "45s")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://bot@localhost/bot")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 11}, cfg.AdminIDs)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inDir(t)
	unset(t, "BOT_TOKEN")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BOT_TOKEN=from-file\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.BotToken)
	assert.Equal(t, "warn", cfg.LogLevel, "the environment wins over .env")
}

func TestLoad_Invalid(t *testing.T) {
	inDir(t)
	unset(t, "BOT_TOKEN")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DB_DRIVER", "postgres")
	_, err = Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DB_DRIVER", "mysql")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_DRIVER")
}
