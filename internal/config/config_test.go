package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/readings/internal/config"
)

// isolate points the loader at an empty working directory so a stray
// readings.yaml cannot leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.ConfigPathEnvVar, "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, "console", cfg.LogFormat())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("READINGS_HTTP_ADDR", ":8088")
	t.Setenv("READINGS_ENV", "PROD")
	t.Setenv("READINGS_MAX_BODY_BYTES", "2048")
	t.Setenv("READINGS_JOURNAL_DRIVER", "sqlite")
	t.Setenv("READINGS_SHUTDOWN_TIMEOUT", "10s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.HTTPAddr)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "json", cfg.LogFormat())
	assert.Equal(t, int64(2048), cfg.MaxBodyBytes)
	assert.Equal(t, "sqlite", cfg.JournalDriver)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_UnknownValuesFailSoft(t *testing.T) {
	isolate(t)
	t.Setenv("READINGS_ENV", "staging")
	t.Setenv("READINGS_JOURNAL_DRIVER", "postgres")
	t.Setenv("READINGS_PRUNE_INTERVAL_HOURS", "0")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "memory", cfg.JournalDriver)
	assert.Equal(t, 6, cfg.PruneIntervalHours)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":7000\"\ngrpc_addr: \":7001\"\njournal_retention_days: 3\n"), 0o600))
	t.Setenv(config.ConfigPathEnvVar, path)
	t.Setenv("READINGS_GRPC_ADDR", ":7002")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, ":7002", cfg.GRPCAddr)
	assert.Equal(t, 3, cfg.JournalRetentionDays)
}

func TestLoad_RejectsNonPositiveBodyCap(t *testing.T) {
	isolate(t)
	t.Setenv("READINGS_MAX_BODY_BYTES", "0")

	_, err := config.Load()
	assert.Error(t, err)
}
