package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  http:
    host: "127.0.0.1"
    port: 8081
    read_timeout: 5s
  grpc:
    enabled: true
    port: 9091
log:
  level: debug
  format: console
rules:
  source: dir
  dir: ./rules
  watch: true
  single_flight: true
  default_fuzzy: false
linking:
  enabled: true
  strategies: [exact, name]
  timeout: 500ms
database:
  enabled: true
  host: db
  user: lore
redis:
  enabled: true
  addr: cache:6379
  ttl: 30s
kafka:
  enabled: true
  brokers: ["broker-1:9092", "broker-2:9092"]
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8081", cfg.Server.HTTP.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.HTTP.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.HTTP.WriteTimeout)
	assert.True(t, cfg.Server.GRPC.Enabled)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "./rules", cfg.Rules.Dir)
	assert.True(t, cfg.Rules.Watch)
	assert.True(t, cfg.Rules.SingleFlight)
	assert.False(t, cfg.Rules.DefaultFuzzy)
	assert.Equal(t, []string{"exact", "name"}, cfg.Linking.Strategies)
	assert.Equal(t, 500*time.Millisecond, cfg.Linking.Timeout)
	assert.Equal(t, DefaultDBPort, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, DefaultRedisNegativeTTL, cfg.Redis.NegativeTTL)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
}

func TestLoad_DefaultFuzzyStaysOnWhenOmitted(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Rules.DefaultFuzzy)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "invalid_yaml: ["))
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "rules:\n  source: svn\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "rules.source")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("LOREKIT_SERVER_HTTP_PORT", "9000")
	t.Setenv("LOREKIT_RULES_DIR", "/etc/lorekit/rules")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTP.Port)
	assert.Equal(t, "/etc/lorekit/rules", cfg.Rules.Dir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOREKIT_LOG_LEVEL", "error")
	t.Setenv("LOREKIT_REDIS_ENABLED", "true")
	t.Setenv("LOREKIT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LOREKIT_KAFKA_ENABLED", "true")
	t.Setenv("LOREKIT_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultRulesDir, cfg.Rules.Dir)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTP.Port)

	cfg, err = LoadOrDefault(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.HTTP.Port)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "configs/rules", cfg.Rules.Dir)
	assert.True(t, cfg.Rules.DefaultFuzzy)
	assert.True(t, cfg.Server.GRPC.Enabled)
	assert.Equal(t, DefaultKafkaRulesTopic, cfg.Kafka.RulesTopic)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
}
