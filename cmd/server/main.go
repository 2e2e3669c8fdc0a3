package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/labelqr/internal/config"
	"github.com/JonMunkholm/labelqr/internal/core"
	"github.com/JonMunkholm/labelqr/internal/logging"
	"github.com/JonMunkholm/labelqr/internal/metrics"
	"github.com/JonMunkholm/labelqr/internal/qr"
	"github.com/JonMunkholm/labelqr/internal/store"
	"github.com/JonMunkholm/labelqr/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"qr_default_size", cfg.Render.DefaultSize,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("store close error", "error", err)
		}
	}()

	service := core.NewService(qr.NewEncoder(core.DefaultMargin), cfg)
	m := metrics.New()
	service.SetObserver(m)

	if p, ok := st.(store.Purger); ok && cfg.Store.PurgeInterval > 0 {
		go purgeLoop(ctx, p, cfg.Store.PurgeInterval)
	}

	server := web.NewServer(cfg, service, st, m)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		slog.Error("server stopped", "error", err)
		return
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Wait for active uploads to complete (with timeout)
	if status := service.UploadLimiterStatus(); status.Active > 0 {
		slog.Info("waiting for uploads to complete", "active", status.Active)
		if err := service.WaitForUploads(shutdownCtx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		} else {
			slog.Info("all uploads completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// purgeLoop drops expired sheets until ctx is cancelled.
func purgeLoop(ctx context.Context, p store.Purger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PurgeExpired(ctx); err != nil {
				slog.Warn("purge expired sheets failed", "error", err)
			}
		}
	}
}
