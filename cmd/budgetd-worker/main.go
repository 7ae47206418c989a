package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budgetd/internal/amqp"
	"budgetd/internal/config"
	"budgetd/internal/sheets/google"
	"budgetd/internal/storage"
	"budgetd/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting budgetd-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if !cfg.SheetsConfigured() {
		logger.Error("No GOOGLE_SPREADSHEET_ID configured, nothing to sync to")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	var err error
	switch cfg.DataBackend {
	case "postgres":
		store, err = storage.NewPostgresStore(ctx, cfg.PostgresURL)
	default:
		store, err = storage.NewSQLiteStore(cfg.SQLiteDBPath)
	}
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	sheetsClient, err := google.NewClient(ctx, cfg.GoogleSpreadsheetID, google.Credentials{
		JSON: cfg.GoogleCredentialsJSON,
		File: cfg.GoogleCredentialsFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(store, sheetsClient, cfg.SyncBatchSize)

	g, gctx := errgroup.WithContext(ctx)

	// Periodic snapshot export reconciles deletes and missed messages.
	g.Go(func() error {
		return syncWorker.Run(gctx, cfg.SyncInterval)
	})

	// Incremental sync from record-change messages, when AMQP is configured.
	if cfg.AMQPURL != "" {
		g.Go(func() error {
			return amqp.ConsumeRecordSyncWithReconnect(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
				func(msg *amqp.RecordSyncMessage) error {
					return syncWorker.HandleSyncMessage(gctx, msg)
				})
		})
	} else {
		logger.Info("AMQP disabled, running snapshot export only")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
