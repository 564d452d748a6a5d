package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  sync_completed_topic_name: "board.sync.completed"
redis:
  host: "localhost"
  port: 6379
board:
  http_addr: ":8080"
  kafka_consumer_group: "board-api"
  uppership_base_url: "https://go.uppership.com/public"
  uppership_api_key: "secret"
  proxy_prefix: "/api"
  static_dir: "./static"
  swagger_path: "./api/swagger.json"
  column_cache_ttl_seconds: 15
  sync_cooldown_seconds: 900
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "board.sync.completed", cfg.Kafka.SyncCompletedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.Board.HTTPAddr)
	require.Equal(t, "secret", cfg.Board.UppershipAPIKey)
	require.Equal(t, 900, cfg.Board.SyncCooldownSeconds)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/cfg.yaml")
	require.Error(t, err)
}
