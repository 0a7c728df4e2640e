package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultMetricsPort, cfg.Server.MetricsPort)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultPoolSize, cfg.Transport.PoolSize)
	assert.Equal(t, DefaultRequestTimeout, cfg.Predict.RequestTimeout)
	// disabled backends stay unconfigured
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.MinIO.Endpoint)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.MetricsPort = 7070
	cfg.Predict.RequestTimeout = time.Minute
	ApplyDefaults(cfg)

	assert.Equal(t, 7070, cfg.Server.MetricsPort)
	assert.Equal(t, time.Minute, cfg.Predict.RequestTimeout)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.Server.MetricsPort = -1
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Kafka.Enabled = true
	bad.Kafka.Brokers = nil
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.MinIO.Enabled = true
	assert.Error(t, bad.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  metrics_port: 9191
log:
  level: debug
  format: console
kafka:
  enabled: true
  brokers:
    - broker-1:9092
transport:
  pool_size: 16
predict:
  request_timeout: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.MetricsPort)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"broker-1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 16, cfg.Transport.PoolSize)
	assert.Equal(t, 90*time.Second, cfg.Predict.RequestTimeout)
	// defaults fill the rest
	assert.Equal(t, DefaultKafkaGroupID, cfg.Kafka.GroupID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/no/such/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VISIONSERVE_SERVER_METRICS_PORT", "9999")
	t.Setenv("VISIONSERVE_LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.MetricsPort)
	assert.Equal(t, "warn", cfg.Log.Level)
}
