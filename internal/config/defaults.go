package config

import "time"

const (
	DefaultMetricsPort     = 9090
	DefaultShutdownTimeout = 15 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "visionserve-workers"

	DefaultMinIOEndpoint = "localhost:9000"

	DefaultPoolSize       = 8
	DefaultRequestTimeout = 5 * time.Minute
)

// ApplyDefaults fills zero-value fields with platform defaults.  Explicit
// settings always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = DefaultMetricsPort
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}

	if cfg.MinIO.Enabled && cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}

	if cfg.Transport.PoolSize == 0 {
		cfg.Transport.PoolSize = DefaultPoolSize
	}
	if cfg.Predict.RequestTimeout == 0 {
		cfg.Predict.RequestTimeout = DefaultRequestTimeout
	}
}
