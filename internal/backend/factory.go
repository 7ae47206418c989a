package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budgetd/internal/amqp"
	"budgetd/internal/config"
	"budgetd/internal/storage"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result contains the store instance, optional AMQP client, and cleanup.
type Result struct {
	Store   storage.Store
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates storage backends based on configuration.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateBackend builds the store selected by cfg.DataBackend and, when an
// AMQP URL is configured, a sync publisher alongside it. A failed AMQP
// connection is non-fatal: the app runs without sync.
func (f *Factory) CreateBackend(ctx context.Context, cfg *config.Config) (*Result, error) {
	var (
		store storage.Store
		err   error
	)

	switch cfg.DataBackend {
	case "sqlite":
		store, err = storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case "postgres":
		store, err = storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	cleanup := func() error {
		if amqpClient != nil {
			amqpClient.Close()
		}
		return store.Close()
	}

	return &Result{
		Store:   store,
		AMQP:    amqpClient,
		Cleanup: cleanup,
	}, nil
}
