package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite store ready", "path", dbPath, "schema_version", version)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write key %q: %w", key, err)
	}
	slog.DebugContext(ctx, "Blob written to SQLite", "key", key, "bytes", len(value))
	return nil
}

// LogBackup records a snapshot written by the backup worker.
func (s *SQLiteStore) LogBackup(ctx context.Context, fileName string, recordCount int, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO backup_log (file_name, record_count, reason, created_at) VALUES (?, ?, ?, ?)`,
		fileName, recordCount, reason, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("log backup: %w", err)
	}
	return res.LastInsertId()
}

// RecentBackups returns the latest snapshots, newest first.
func (s *SQLiteStore) RecentBackups(ctx context.Context, limit int) ([]BackupEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, record_count, reason, created_at FROM backup_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var out []BackupEntry
	for rows.Next() {
		var (
			e       BackupEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.FileName, &e.RecordCount, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
