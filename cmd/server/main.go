// Package main provides the entry point for the audiotrim API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maauso/audiotrim/internal/bootstrap"
	"github.com/maauso/audiotrim/internal/config"
	"github.com/maauso/audiotrim/internal/observe"
	"github.com/maauso/audiotrim/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting audiotrim",
		slog.String("version", version),
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("data_dir", cfg.DataDir),
		slog.Int("max_upload_mb", cfg.MaxUploadMB),
		slog.Int("max_concurrent_trims", cfg.MaxConcurrentTrims),
		slog.Int("request_timeout_sec", cfg.RequestTimeoutSec),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
	)

	ctx := context.Background()

	// The meter provider must be registered before bootstrap creates the instruments.
	var metricsHandler http.Handler
	shutdownTelemetry := func(context.Context) error { return nil }
	if cfg.MetricsEnabled {
		shutdownTelemetry, err = observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "audiotrim",
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		metricsHandler = promhttp.Handler()
	}

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.TrimService, deps.Presets, logger,
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	)
	routerCfg := server.DefaultConfig()
	routerCfg.Metrics = deps.Metrics
	routerCfg.MetricsHandler = metricsHandler
	router := server.NewRouter(handlers, logger, routerCfg)

	// POST /trim holds the connection for the whole pipeline.
	writeTimeout := cfg.RequestTimeout() + 30*time.Second
	if cfg.RequestTimeoutSec == 0 {
		writeTimeout = 0
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	// Let background jobs finish writing their outputs.
	done := make(chan struct{})
	go func() {
		deps.TrimService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("background jobs still running at shutdown")
	}

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}

	logger.Info("server stopped gracefully")
	return nil
}
