package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/config"
)

func TestLoadManagerDefaults(t *testing.T) {
	t.Setenv("ENV", "local")
	t.Setenv("STORE_DATA_DIR", "")
	t.Setenv("MANAGER_BIND_ADDR", "")
	t.Setenv("QUEUE_BACKEND", "")

	cfg, err := config.LoadManager()
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, ":7700", cfg.BindAddr)
	require.Equal(t, "local", cfg.Backend)
}

func TestLoadManagerEnvOverridesDefault(t *testing.T) {
	t.Setenv("ENV", "local")
	t.Setenv("STORE_DATA_DIR", "/tmp/cluster-data")
	t.Setenv("QUEUE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := config.LoadManager()
	require.NoError(t, err)
	require.Equal(t, "/tmp/cluster-data", cfg.DataDir)
	require.Equal(t, "redis", cfg.Backend)
	require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("ENV", "local")
	t.Setenv("CLUSTER_MANAGER_URL", "")
	t.Setenv("WORKER_BIND_ADDR", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:7700", cfg.ManagerURL)
	require.Equal(t, ":7800", cfg.BindAddr)
}

func TestLoadLoggingDefaults(t *testing.T) {
	t.Setenv("ENV", "local")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_JSON", "")

	cfg, err := config.LoadLogging()
	require.NoError(t, err)
	require.Equal(t, "info", string(cfg.Level))
	require.False(t, cfg.JSONOutput)
}
