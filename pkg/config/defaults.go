package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blinkhost/blink/internal/bytesize"
	"github.com/blinkhost/blink/pkg/api"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Called after loading configuration from file and environment variables to
// fill in any missing values with sensible defaults.
//
// Default strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyShutdownTimeoutDefaults(cfg)
	applyHTTPDefaults(&cfg.HTTP)
	applyMetricsDefaults(&cfg.Metrics)
	applyUploadDefaults(&cfg.Upload)
	applyBlobDefaults(&cfg.Blob)
	applyIndexDefaults(&cfg.Index)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyHTTPDefaults sets HTTP server defaults.
func applyHTTPDefaults(cfg *api.Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
}

// applyUploadDefaults sets upload policy defaults.
func applyUploadDefaults(cfg *UploadConfig) {
	if len(cfg.AcceptedFileTypes) == 0 {
		cfg.AcceptedFileTypes = []string{"jpeg", "jpg", "png", "webp"}
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 5 * bytesize.MiB
	}
	if cfg.URLTTL == 0 {
		cfg.URLTTL = 60 * time.Second
	}
	if cfg.ClockSkewTolerance == 0 {
		cfg.ClockSkewTolerance = 5 * time.Second
	}
}

// applyBlobDefaults sets blob store defaults.
func applyBlobDefaults(cfg *BlobConfig) {
	if cfg.Store == "" {
		cfg.Store = "local"
	}
	if cfg.Local.Path == "" {
		cfg.Local.Path = "/var/lib/blink/blobs"
	}
}

// applyIndexDefaults sets metadata index defaults.
func applyIndexDefaults(cfg *IndexConfig) {
	if cfg.Store == "" {
		cfg.Store = "badger"
	}
	if cfg.Badger.Path == "" {
		cfg.Badger.Path = "/var/lib/blink/index"
	}
	cfg.Postgres.ApplyDefaults()
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
