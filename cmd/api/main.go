package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/ragline/internal/app"
	"github.com/markdave123-py/ragline/internal/config"
	"github.com/markdave123-py/ragline/internal/logger"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	application.Queue.Start(ctx, cfg.IngestWorkers)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Server.Start()
	}()

	slog.Info("ragline is running", "env", cfg.RunningEnv, "port", cfg.Port)
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			slog.Error("server error", "error", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	// running jobs finish; queued ones are dropped
	application.Queue.Wait()
	slog.Info("shutting down...")
}
