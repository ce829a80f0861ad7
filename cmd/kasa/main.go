package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kasa/internal/config"
	apphttp "kasa/internal/http"
	applog "kasa/internal/log"
	"kasa/internal/notify"
	"kasa/internal/schedule"
	"kasa/internal/services"
	"kasa/internal/state"
	"kasa/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The server only projects reminder instances; delivery is the
	// reminder-worker's job, which rebuilds the same projection from
	// the persisted reminders.
	notifier := notify.NewMemoryNotifier()
	scheduler := schedule.NewScheduler(notifier)
	ledger := services.NewLedger(repo, scheduler)
	aggregator := services.NewAggregator(repo)
	coordinator := state.NewCoordinator(repo, ledger, aggregator, cfg.SpendingWindowDays)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := coordinator.RefreshDashboard(startupCtx); err != nil {
		logger.Error("Initial dashboard refresh failed", "error", err)
		startupCancel()
		os.Exit(1)
	}
	if count, err := ledger.RescheduleAll(startupCtx); err != nil {
		logger.Warn("Reminder projection at startup failed", "error", err)
	} else {
		logger.Info("Reminders projected", "reminders", count)
	}
	startupCancel()

	srv := apphttp.NewServer(":"+cfg.Port, coordinator, logger)
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting kasa server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
