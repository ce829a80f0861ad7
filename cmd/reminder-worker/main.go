package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kasa/internal/config"
	applog "kasa/internal/log"
	"kasa/internal/notify"
	"kasa/internal/schedule"
	"kasa/internal/services"
	"kasa/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting reminder-worker")

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

	var sender notify.Sender
	switch cfg.NotifyChannel {
	case "email":
		sender = notify.EmailSender{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.SMTPTo,
		}
		logger.Info("Email delivery configured", "smtp", cfg.SMTPAddr, "to", cfg.SMTPTo)
	default:
		sender = notify.LogSender{}
		logger.Info("Log delivery configured")
	}

	dispatcher := notify.NewDispatcher(sender, cfg.DispatchInterval)
	scheduler := schedule.NewScheduler(dispatcher)
	ledger := services.NewLedger(repo, scheduler)

	// Re-read the persisted reminders on every tick so reminders the
	// server creates while we run become deliverable without a restart.
	dispatcher.WithRefresh(func(ctx context.Context) {
		if _, err := ledger.RescheduleAll(ctx); err != nil {
			logger.Error("Periodic reminder projection failed", "error", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rebuild the 12-month projection for every persisted reminder so
	// registrations survive restarts.
	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	count, err := ledger.RescheduleAll(startupCtx)
	startupCancel()
	if err != nil {
		logger.Error("Startup reminder projection failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Reminder projection complete",
		"reminders", count,
		"pending_instances", dispatcher.Pending(),
		"interval", cfg.DispatchInterval)

	// One pass right away, then the periodic loop takes over.
	dispatcher.DispatchDue(ctx)
	if err := dispatcher.Start(); err != nil {
		logger.Error("Failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down reminder-worker...")
	dispatcher.Stop()
	logger.Info("Reminder-worker shutdown complete")
}
