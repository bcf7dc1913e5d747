package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/imedwei/workspace-backups/internal/api"
	"github.com/imedwei/workspace-backups/internal/backup"
	"github.com/imedwei/workspace-backups/internal/config"
	"github.com/imedwei/workspace-backups/internal/health"
	"github.com/imedwei/workspace-backups/internal/metrics"
	"github.com/imedwei/workspace-backups/internal/scheduler"
	"github.com/imedwei/workspace-backups/internal/server"
	"github.com/imedwei/workspace-backups/internal/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// probeKey is never written; a NotFound answer proves the bucket is reachable.
const probeKey = "/.healthcheck"

func main() {
	// Bootstrap logger until configuration is known
	logger := newLogger("info", "text")
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("Workspace backup service starting", "version", version)

	// Log configuration (without sensitive data)
	logger.Info("Configuration loaded",
		"storage_provider", cfg.StorageProvider,
		"storage_prefix", cfg.StoragePrefix,
		"default_max_keep", cfg.DefaultMaxKeep,
		"presign_expiry", cfg.PresignExpiry,
		"stat_concurrency", cfg.StatConcurrency,
		"prune_schedule", cfg.PruneSchedule,
		"port", cfg.Port,
	)

	metrics.Info.WithLabelValues(version, cfg.StorageProvider).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Error("Failed to create storage provider", "error", err)
		os.Exit(1)
	}

	catalog := backup.NewCatalog(store, cfg.StatConcurrency, logger)
	policy := backup.NewRetentionPolicy(store, catalog, logger)
	lifecycle := backup.NewLifecycle(store, policy, logger)

	apiRouter := api.NewRouter(catalog, policy, lifecycle, api.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultMaxKeep: cfg.DefaultMaxKeep,
		Logger:         logger,
	})

	serverConfig := server.DefaultConfig()
	serverConfig.Port = cfg.Port
	httpServer := server.New(serverConfig, logger, apiRouter)

	httpServer.RegisterHealthCheck("storage", health.ProbeCheck(5*time.Second, func(ctx context.Context) error {
		_, err := store.Stat(ctx, probeKey)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}))

	var sweeper *scheduler.Sweeper
	if cfg.PruneSchedule != "" {
		sweeper = scheduler.NewSweeper(catalog, policy, cfg.DefaultMaxKeep, 10*time.Minute, logger)
		if err := sweeper.Start(cfg.PruneSchedule); err != nil {
			logger.Error("Failed to start prune sweeper", "error", err)
			os.Exit(1)
		}
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverErr <- httpServer.Start()
	}()

	httpServer.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}

	wg.Wait()

	if err := storage.Close(store); err != nil {
		logger.Error("Failed to close storage provider", "error", err)
	}
	logger.Info("Workspace backup service stopped")
}

func newLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
