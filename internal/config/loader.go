package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for all settings.
const envPrefix = "VISIONSERVE"

// newViper builds a Viper instance with the service's conventions: YAML
// files, VISIONSERVE_ env prefix and a "." to "_" key replacer so that
// "kafka.brokers" resolves to VISIONSERVE_KAFKA_BROKERS.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Registering every key makes environment-only loading work: viper
	// resolves env overrides during Unmarshal only for keys it knows.
	v.SetDefault("server.metrics_port", 0)
	v.SetDefault("server.shutdown_timeout", "0s")
	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "")
	v.SetDefault("log.output_paths", []string(nil))
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.group_id", "")
	v.SetDefault("kafka.brokers", []string(nil))
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("transport.pool_size", 0)
	v.SetDefault("transport.http.timeout", "0s")
	v.SetDefault("predict.request_timeout", "0s")
	return v
}

// Load reads the YAML file at configPath, merges environment overrides,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from environment variables alone, the
// loading strategy for containerized deployments.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics on any load error, for use in main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
