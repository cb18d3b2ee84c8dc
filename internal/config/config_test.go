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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TILEWORLD_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  rest_port: 9000
world:
  data_file: maps/station.yaml
  obstacle_policy: commit
  tick_interval: 250ms
storage:
  backend: badger
  dsn: /tmp/positions
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.RESTPort)
	assert.Equal(t, 2112, cfg.Server.MetricsPort, "незаданные поля остаются по умолчанию")
	assert.Equal(t, "maps/station.yaml", cfg.World.DataFile)
	assert.Equal(t, "commit", cfg.World.ObstaclePolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.World.TickInterval)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  rest_port: 9000\n")
	t.Setenv("TILEWORLD_REST_PORT", "9100")
	t.Setenv("TILEWORLD_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.RESTPort)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: ["))
	assert.Error(t, err)

	t.Setenv("TILEWORLD_REST_PORT", "not-a-port")
	_, err = Load(writeConfig(t, "{}"))
	assert.ErrorContains(t, err, "parse env:")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = BackendRedis
	assert.Error(t, cfg.Validate(), "redis без адреса")

	cfg = Default()
	cfg.World.ObstaclePolicy = "ignore"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Backend = "etcd"
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}
