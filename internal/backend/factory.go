package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cadastro/internal/amqp"
	"cadastro/internal/cache"
	applog "cadastro/internal/log"
	"cadastro/internal/services"
	"cadastro/internal/stats"
	"cadastro/internal/storage"
	"cadastro/internal/storage/boltstore"
	"cadastro/internal/storage/memory"
)

const viewCacheSize = 64

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the configured store, connects the optional broker
// and returns a loaded record service.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w (valid: %v)", err, GetBackendTypes())
	}

	var (
		store     storage.BlobStore
		backupLog *storage.SQLiteStore
		err       error
	)
	switch config.Type {
	case SQLiteBackend:
		backupLog, err = storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		store = backupLog
	case BoltBackend:
		store, err = boltstore.New(config.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Bolt store: %w", err)
		}
	case MemoryBackend:
		store, err = memory.NewFromFile(config.StorageKey, config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	amqpClient := f.connectAMQP(config)
	var publisher services.EventPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	views := cache.NewLRUCache[stats.Dashboard](viewCacheSize, config.CacheTTL)
	svc := services.NewRecordService(store, publisher, services.Options{
		StorageKey: config.StorageKey,
		Owner:      config.Owner,
		TopN:       config.TopN,
		Views:      views,
		Logger:     applog.New(applog.Config{Handler: f.logger.Handler(), Component: applog.ComponentRecords}),
	})
	if err := svc.Load(ctx); err != nil {
		return nil, errors.Join(err, svc.Close())
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"records", svc.Count(),
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Records:   svc,
		Store:     store,
		Views:     views,
		AMQP:      amqpClient,
		BackupLog: backupLog,
		Cleanup:   svc.Close,
	}, nil
}

// connectAMQP returns nil when no broker is configured or it cannot be
// reached; the application keeps working without events.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
