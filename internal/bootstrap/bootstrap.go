// Package bootstrap provides dependency initialization for the audiotrim server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maauso/audiotrim/internal/audio"
	"github.com/maauso/audiotrim/internal/config"
	"github.com/maauso/audiotrim/internal/job"
	"github.com/maauso/audiotrim/internal/observe"
	"github.com/maauso/audiotrim/internal/preset"
	"github.com/maauso/audiotrim/internal/storage"
	"github.com/maauso/audiotrim/internal/trim"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	TrimService *job.TrimService
	Presets     *preset.Registry
	Metrics     *observe.Metrics
}

// NewDependencies creates and initializes all dependencies for the application.
// Call it after observe.InitProvider so metrics bind to the exporting provider.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	presets, err := preset.Load(cfg.PresetsFile)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	if cfg.PresetsFile != "" {
		logger.Info("presets loaded",
			slog.String("file", cfg.PresetsFile),
			slog.Int("count", len(presets.List())),
		)
	}

	// Intermediate ffmpeg files live next to the local outputs.
	tempDir := filepath.Join(cfg.DataDir, "tmp")
	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	codec := audio.NewFFmpegCodec(cfg.FFmpegPath,
		audio.WithTempDir(tempDir),
		audio.WithCodecLogger(logger),
	)

	trimmer := trim.NewTrimmer(
		trim.NewCoordinator(trim.WithCoordinatorLogger(logger)),
		logger,
	)

	metrics := observe.DefaultMetrics()

	svc := job.NewTrimService(
		job.NewMemoryRepository(),
		codec,
		trimmer,
		store,
		job.WithMaxConcurrent(cfg.MaxConcurrentTrims),
		job.WithTimeout(cfg.RequestTimeout()),
		job.WithMetrics(metrics),
		job.WithLogger(logger),
	)

	return &Dependencies{
		TrimService: svc,
		Presets:     presets,
		Metrics:     metrics,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("data_dir", localStore.Dir()),
	)
	return localStore, nil
}
