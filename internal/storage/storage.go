// Package storage persists the record collection as a single blob under a
// fixed key. The SQLite implementation lives here; memory and boltstore
// provide the alternatives selected by DATA_BACKEND.
package storage

import (
	"context"
	"time"
)

// BlobStore is the persistence port. Get reports found=false for a key
// that was never written.
type BlobStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// BackupEntry is one snapshot written by the backup worker.
type BackupEntry struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"arquivo"`
	RecordCount int       `json:"quantidadeRegistros"`
	Reason      string    `json:"motivo"`
	CreatedAt   time.Time `json:"dataBackup"`
}
