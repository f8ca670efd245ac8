// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidUploadLimit is returned when MAX_UPLOAD_MB is not positive.
	ErrInvalidUploadLimit = errors.New("config: MAX_UPLOAD_MB must be positive")
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_TRIMS is not positive.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_TRIMS must be positive")
	// ErrInvalidTimeout is returned when REQUEST_TIMEOUT_SEC is negative.
	ErrInvalidTimeout = errors.New("config: REQUEST_TIMEOUT_SEC must not be negative")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port              int `env:"PORT, default=8080" json:"port"`
	MaxUploadMB       int `env:"MAX_UPLOAD_MB, default=50" json:"max_upload_mb"`
	RequestTimeoutSec int `env:"REQUEST_TIMEOUT_SEC, default=300" json:"request_timeout_sec"`

	// Storage settings
	DataDir string `env:"DATA_DIR, default=/tmp/audiotrim" json:"data_dir"`

	// Processing settings
	MaxConcurrentTrims int    `env:"MAX_CONCURRENT_TRIMS, default=2" json:"max_concurrent_trims"`
	FFmpegPath         string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	PresetsFile        string `env:"PRESETS_FILE" json:"presets_file,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"

	// Observability settings
	MetricsEnabled bool `env:"METRICS_ENABLED, default=true" json:"metrics_enabled"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// RequestTimeout returns the per-job pipeline timeout. Zero disables it.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, ErrInvalidUploadLimit)
	}
	if c.MaxConcurrentTrims <= 0 {
		errs = append(errs, ErrInvalidConcurrency)
	}
	if c.RequestTimeoutSec < 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		errs = append(errs, ErrS3RegionRequired)
	}
	return errors.Join(errs...)
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, DataDir: %s, MaxUploadMB: %d, MaxConcurrentTrims: %d, RequestTimeoutSec: %d, FFmpegPath: %s, PresetsFile: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s, MetricsEnabled: %t}",
		c.Port,
		c.DataDir,
		c.MaxUploadMB,
		c.MaxConcurrentTrims,
		c.RequestTimeoutSec,
		c.FFmpegPath,
		c.PresetsFile,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
		c.MetricsEnabled,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
