package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audiotrim/internal/config"
	"github.com/maauso/audiotrim/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:               8080,
		DataDir:            t.TempDir(),
		MaxUploadMB:        50,
		MaxConcurrentTrims: 3,
		RequestTimeoutSec:  60,
		FFmpegPath:         "ffmpeg",
		LogFormat:          "text",
		LogLevel:           "error",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_Local(t *testing.T) {
	cfg := testConfig(t)

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	require.NotNil(t, deps.TrimService)
	assert.Equal(t, 3, deps.TrimService.MaxConcurrent())
	assert.NotNil(t, deps.Metrics)
	assert.Len(t, deps.Presets.List(), 4)
	assert.DirExists(t, filepath.Join(cfg.DataDir, "tmp"))
}

func TestNewDependencies_PresetsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PresetsFile = filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(cfg.PresetsFile, []byte(`
presets:
  - name: audiobook
    description: Narration with long breaths removed
    params:
      strategy: fixed
      min_silence_ms: 600
      threshold_db: -45
`), 0o600))

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	p, err := deps.Presets.Get("audiobook")
	require.NoError(t, err)
	assert.Equal(t, 600, p.Params.MinSilenceMs)
}

func TestNewDependencies_MissingPresetsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PresetsFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewDependencies(context.Background(), cfg, discardLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInitStorage(t *testing.T) {
	t.Run("local by default", func(t *testing.T) {
		cfg := testConfig(t)

		store, err := initStorage(context.Background(), cfg, discardLogger())
		require.NoError(t, err)
		assert.IsType(t, &storage.LocalStorage{}, store)
	})

	t.Run("s3 when bucket and region are set", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.S3Bucket = "bucket"
		cfg.S3Region = "us-east-1"
		cfg.S3Endpoint = "http://localhost:4566"
		cfg.AWSAccessKeyID = "key"
		cfg.AWSSecretAccessKey = "secret"

		store, err := initStorage(context.Background(), cfg, discardLogger())
		require.NoError(t, err)
		assert.IsType(t, &storage.S3Storage{}, store)
	})
}
