package backend

import (
	"context"
	"time"

	"cadastro/internal/amqp"
	"cadastro/internal/cache"
	"cadastro/internal/services"
	"cadastro/internal/stats"
	"cadastro/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired record service and the pieces the
// processes need directly.
type BackendResult struct {
	Records *services.RecordService
	Store   storage.BlobStore
	Views   *cache.LRUCache[stats.Dashboard]

	// AMQP is nil when no broker is configured or reachable.
	AMQP *amqp.Client
	// BackupLog is only available on the sqlite backend.
	BackupLog *storage.SQLiteStore

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	BoltDBPath   string
	// SeedFile preloads the memory backend.
	SeedFile   string
	StorageKey string

	Owner    string
	TopN     int
	CacheTTL time.Duration

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	BoltBackend   BackendType = "bolt"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, BoltBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
