// Package config loads the demo service configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Tracing TracingConfig
	Logging LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	RelayTarget string `envconfig:"RELAY_TARGET" default:""`
}

// TracingConfig holds context bridge configuration.
type TracingConfig struct {
	Sample         bool          `envconfig:"SAMPLE" default:"true"`
	SharedSpans    bool          `envconfig:"SHARED_SPANS" default:"false"`
	CollectorURL   string        `envconfig:"COLLECTOR_URL" default:""`
	ReportInterval time.Duration `envconfig:"REPORT_INTERVAL" default:"5s"`
	ReportBuffer   int           `envconfig:"REPORT_BUFFER" default:"1024"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Tracing: TracingConfig{
			Sample:         true,
			ReportInterval: 5 * time.Second,
			ReportBuffer:   1024,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}
