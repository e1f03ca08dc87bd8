// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors are wrapped via this package's sentinel kinds.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// PostgresDSN points at the telemetry event store.
	PostgresDSN string `koanf:"postgres_dsn"`

	// RefAPIBaseURL is the base URL of the user/course reference API.
	RefAPIBaseURL string `koanf:"ref_api_base_url"`

	// RefAPIToken is the bearer token presented to the reference API.
	RefAPIToken string `koanf:"ref_api_token"`

	// RefreshIntervalSeconds is the lake refresh period.
	RefreshIntervalSeconds int `koanf:"refresh_interval_seconds"`

	// ReferenceTimeoutSeconds bounds each reference-data fetch during a build.
	ReferenceTimeoutSeconds int `koanf:"reference_timeout_seconds"`

	// IngestQueueSize bounds the in-memory ingest queue.
	IngestQueueSize int `koanf:"ingest_queue_size"`

	// WriterCount sets the number of ingest writer goroutines.
	WriterCount int `koanf:"writer_count"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":8080",
		PostgresDSN:             "postgres://localhost:5432/studylake",
		RefAPIBaseURL:           "http://localhost:9000",
		RefAPIToken:             "",
		RefreshIntervalSeconds:  600,
		ReferenceTimeoutSeconds: 15,
		IngestQueueSize:         10_000,
		WriterCount:             runtime.NumCPU(),
	}
}

// RefreshInterval returns the refresh period as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// ReferenceTimeout returns the reference-fetch bound as a duration.
func (c *Config) ReferenceTimeout() time.Duration {
	return time.Duration(c.ReferenceTimeoutSeconds) * time.Second
}
