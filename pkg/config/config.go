package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/blinkhost/blink/internal/bytesize"
	"github.com/blinkhost/blink/pkg/api"
	"github.com/blinkhost/blink/pkg/blob/s3"
	"github.com/blinkhost/blink/pkg/index/postgres"
)

// Config represents the blink server configuration.
//
// It captures everything fixed at startup:
//   - Logging behavior
//   - HTTP server settings
//   - Prometheus metrics server
//   - Upload policy (accepted types, size cap, TTL, skew tolerance)
//   - Blob store backends
//   - Metadata index backend
//
// Configuration sources (in order of precedence):
//  1. Environment variables (BLINK_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// HTTP contains the public HTTP server configuration
	HTTP api.Config `mapstructure:"http" yaml:"http"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Upload contains the upload and access policy
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Blob selects and configures the blob store backends
	Blob BlobConfig `mapstructure:"blob" yaml:"blob"`

	// Index selects and configures the metadata index backend
	Index IndexConfig `mapstructure:"index" yaml:"index"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Path is the metrics endpoint path
	// Default: /metrics
	Path string `mapstructure:"path" yaml:"path"`
}

// UploadConfig holds the upload and access policy.
type UploadConfig struct {
	// AcceptedFileTypes lists accepted image formats as shorthand tokens
	// ("jpeg", "jpg", "png", "webp") or full MIME types ("image/png").
	// Unknown shorthands are rejected at load time.
	// Default: [jpeg, jpg, png, webp]
	AcceptedFileTypes []string `mapstructure:"accepted_file_types" yaml:"accepted_file_types"`

	// MaxUploadSize caps the decoded payload length
	// Supports human-readable formats: "5Mi", "1MB", or plain bytes
	// Default: 5Mi
	MaxUploadSize bytesize.ByteSize `mapstructure:"max_upload_size" yaml:"max_upload_size"`

	// URLTTL is how long an uploaded image's URL stays valid
	// Default: 60s
	URLTTL time.Duration `mapstructure:"url_ttl" validate:"omitempty,gt=0" yaml:"url_ttl"`

	// ClockSkewTolerance is the grace window past expiry in which access
	// is still allowed
	// Default: 5s
	ClockSkewTolerance time.Duration `mapstructure:"clock_skew_tolerance" validate:"omitempty,gte=0" yaml:"clock_skew_tolerance"`
}

// BlobConfig selects blob store backends.
//
// Store is a comma-separated backend list. With one entry ("local" or "s3")
// that backend serves alone; with two ("local,s3") the first is primary and
// the second receives asynchronous replica writes and serves as a read
// fallback.
type BlobConfig struct {
	// Store selects backends: local | s3 | local,s3 | s3,local
	Store string `mapstructure:"store" validate:"required" yaml:"store"`

	// Local configures the filesystem backend
	Local LocalBlobConfig `mapstructure:"local" yaml:"local"`

	// S3 configures the S3 backend
	S3 s3.Config `mapstructure:"s3" yaml:"s3"`
}

// LocalBlobConfig configures the filesystem blob backend.
type LocalBlobConfig struct {
	// Path is the directory blobs are written under (required when the
	// local backend is selected)
	Path string `mapstructure:"path" yaml:"path"`
}

// IndexConfig selects the metadata index backend.
type IndexConfig struct {
	// Store selects the backend: memory | badger | postgres
	Store string `mapstructure:"store" validate:"required,oneof=memory badger postgres" yaml:"store"`

	// Badger configures the BadgerDB backend
	Badger BadgerIndexConfig `mapstructure:"badger" yaml:"badger"`

	// Postgres configures the PostgreSQL backend
	Postgres postgres.Config `mapstructure:"postgres" yaml:"postgres"`
}

// BadgerIndexConfig configures the BadgerDB index backend.
type BadgerIndexConfig struct {
	// Path is the directory for the BadgerDB database (required when the
	// badger backend is selected)
	Path string `mapstructure:"path" yaml:"path"`

	// SyncWrites controls whether every write syncs to disk. Leaving it
	// unset means true; records must survive a crash.
	SyncWrites *bool `mapstructure:"sync_writes" yaml:"sync_writes,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BLINK_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the config
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  blink init\n\n"+
				"Or specify a custom config file:\n"+
				"  blink <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  blink init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions: the postgres section can carry a password.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the BLINK_ prefix and underscores
	// Example: BLINK_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("BLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize so
// config files can use human-readable sizes like "5Mi" or "100MB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration so config files can
// use human-readable durations like "30s" or "5m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "blink")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "blink")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
