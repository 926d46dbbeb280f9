// Package config loads the application configuration from environment
// variables and validates it before anything else starts.
package config

import (
	"time"

	"github.com/gabapcia/walletsync/internal/pkg/validator"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full environment-driven application configuration.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Telemetry is enabled only when a service name is set; the OTLP
	// exporter endpoint itself comes from the standard OTEL variables.
	TelemetryServiceName string `envconfig:"TELEMETRY_SERVICE_NAME"`

	// Redis is optional: when no address is configured, transactions and
	// cursors live in memory and every start re-syncs from scratch.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	FetchInterval     time.Duration `envconfig:"FETCH_INTERVAL" default:"30s" validate:"gt=0"`
	FetchConcurrency  int           `envconfig:"FETCH_CONCURRENCY" default:"3" validate:"gte=1"`
	AutoFetchDisabled bool          `envconfig:"AUTO_FETCH_DISABLED"`

	EtherscanAPIKey string `envconfig:"ETHERSCAN_API_KEY"`
	CovalentAPIKey  string `envconfig:"COVALENT_API_KEY"`
	OklinkAPIKey    string `envconfig:"OKLINK_API_KEY"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("walletsync", &cfg); err != nil {
		return Config{}, err
	}

	return cfg, validator.Validate(cfg)
}
