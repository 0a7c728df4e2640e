// Package config defines the service configuration and its loading rules.
// Plain data and validation live here; each infrastructure package owns the
// shape of its own section.
package config

import (
	"fmt"
	"time"

	appredict "github.com/turtacn/VisionServe/internal/application/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/internal/infrastructure/storage/minio"
	"github.com/turtacn/VisionServe/internal/infrastructure/transport"
)

// ServerConfig holds the metrics and health listener tunables.
type ServerConfig struct {
	MetricsPort     int           `mapstructure:"metrics_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// KafkaConfig wraps broker settings with an enable switch; disabled
// deployments run without audit or metrics emission.
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	GroupID string `mapstructure:"group_id"`
	kafka.Config `mapstructure:",squash"`
}

// MinIOConfig wraps object-store settings with an enable switch; disabled
// deployments reject s3:// URLs.
type MinIOConfig struct {
	Enabled bool `mapstructure:"enabled"`
	minio.Config `mapstructure:",squash"`
}

// TransportConfig tunes payload movement.
type TransportConfig struct {
	HTTP     transport.HTTPConfig `mapstructure:"http"`
	PoolSize int                  `mapstructure:"pool_size"`
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Log       logging.LogConfig `mapstructure:"log"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	MinIO     MinIOConfig       `mapstructure:"minio"`
	Transport TransportConfig   `mapstructure:"transport"`
	Predict   appredict.Config  `mapstructure:"predict"`
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("config: invalid metrics port %d", c.Server.MetricsPort)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka enabled but no brokers configured")
	}
	if c.MinIO.Enabled && c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio enabled but no endpoint configured")
	}
	if c.Transport.PoolSize < 0 {
		return fmt.Errorf("config: transfer pool size must not be negative")
	}
	if c.Predict.RequestTimeout < 0 {
		return fmt.Errorf("config: request timeout must not be negative")
	}
	return nil
}
