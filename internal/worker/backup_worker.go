// Package worker keeps rolling snapshots of the record collection. It
// reacts to dataset.changed events, runs scheduled backups and optionally
// mirrors the report to a spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"cadastro/internal/amqp"
	"cadastro/internal/backup"
	"cadastro/internal/core"
	applog "cadastro/internal/log"
	"cadastro/internal/records"
	"cadastro/internal/report"
	"cadastro/internal/sheets"
	"cadastro/internal/storage"
)

// BackupLog records written snapshots. storage.SQLiteStore implements it.
type BackupLog interface {
	LogBackup(ctx context.Context, fileName string, recordCount int, reason string) (int64, error)
}

type Config struct {
	Dir        string
	StorageKey string
	Owner      string
	// Retention is how many snapshot files to keep; 0 keeps all.
	Retention int
}

// Snapshot describes one written backup file.
type Snapshot struct {
	FileName    string
	Path        string
	RecordCount int
}

type BackupWorker struct {
	blobs    storage.BlobStore
	log      BackupLog
	exporter sheets.ReportExporter
	cfg      Config
	now      func() time.Time

	// serialises snapshots from the consumer and the scheduler
	mu sync.Mutex
}

// NewBackupWorker creates the worker. log and exporter may be nil.
func NewBackupWorker(blobs storage.BlobStore, log BackupLog, exporter sheets.ReportExporter, cfg Config) *BackupWorker {
	return &BackupWorker{
		blobs:    blobs,
		log:      log,
		exporter: exporter,
		cfg:      cfg,
		now:      time.Now,
	}
}

// HandleDatasetChanged snapshots the collection after a committed change.
// An empty collection and a failed export are logged, not returned, so the
// message is not redelivered for them.
func (w *BackupWorker) HandleDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error {
	slog.InfoContext(ctx, "Processing dataset changed message",
		"operation", msg.Operation,
		"record_id", msg.RecordID,
		"record_count", msg.RecordCount)

	if _, err := w.Snapshot(ctx, "event:"+msg.Operation); err != nil {
		if errors.Is(err, backup.ErrEmptyDataset) {
			slog.InfoContext(ctx, "Collection is empty, no snapshot written")
			return nil
		}
		return fmt.Errorf("snapshot: %w", err)
	}

	if w.exporter != nil {
		if err := w.ExportReport(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to export report", "error", err)
		}
	}
	return nil
}

// Snapshot writes the current collection to a new backup file, records it
// in the backup log and prunes old files.
func (w *BackupWorker) Snapshot(ctx context.Context, reason string) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	recs, err := w.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	now := w.now()
	doc, err := backup.Create(recs, now)
	if err != nil {
		return Snapshot{}, err
	}
	raw, err := backup.Encode(doc)
	if err != nil {
		return Snapshot{}, err
	}

	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("create backup dir: %w", err)
	}
	name := snapshotName(w.cfg.Owner, now)
	path := filepath.Join(w.cfg.Dir, name)
	if err := writeFileAtomic(path, raw); err != nil {
		return Snapshot{}, err
	}

	if w.log != nil {
		if _, err := w.log.LogBackup(ctx, name, len(recs), reason); err != nil {
			slog.WarnContext(ctx, "Failed to record backup in log", "file", name, "error", err)
		}
	}
	if removed, err := w.prune(); err != nil {
		slog.WarnContext(ctx, "Failed to prune old backups", "error", err)
	} else if removed > 0 {
		slog.InfoContext(ctx, "Old backups pruned", "removed", removed)
	}

	slog.InfoContext(ctx, "Backup snapshot written",
		"file", name,
		"record_count", len(recs),
		"reason", reason)
	return Snapshot{FileName: name, Path: path, RecordCount: len(recs)}, nil
}

// ExportReport mirrors the current report to the configured exporter.
func (w *BackupWorker) ExportReport(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}
	recs, err := w.load(ctx)
	if err != nil {
		return err
	}
	rep, err := report.Build(recs, w.cfg.Owner, w.now())
	if err != nil {
		return err
	}
	ref, err := w.exporter.ExportReport(ctx, rep)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	slog.InfoContext(ctx, "Report exported",
		applog.FieldOperation, applog.OpExport,
		"ref", ref,
		"rows", len(rep.Rows))
	return nil
}

// Prune removes the oldest snapshot files beyond the retention count.
func (w *BackupWorker) Prune() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prune()
}

func (w *BackupWorker) prune() (int, error) {
	if w.cfg.Retention <= 0 {
		return 0, nil
	}
	files, err := w.snapshotFiles()
	if err != nil {
		return 0, err
	}
	if len(files) <= w.cfg.Retention {
		return 0, nil
	}
	stale := files[:len(files)-w.cfg.Retention]
	for _, f := range stale {
		if err := os.Remove(filepath.Join(w.cfg.Dir, f)); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("remove %s: %w", f, err)
		}
	}
	return len(stale), nil
}

// snapshotFiles lists this owner's snapshot files, oldest first. Names
// embed the timestamp, so lexical order is chronological.
func (w *BackupWorker) snapshotFiles() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	prefix := "backup-clientes-" + w.cfg.Owner + "-"
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (w *BackupWorker) load(ctx context.Context) ([]core.Record, error) {
	raw, found, err := w.blobs.Get(ctx, w.cfg.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if !found {
		return nil, nil
	}
	return records.Decode(raw)
}

// snapshotName extends the download name with the time of day so several
// snapshots can coexist per day.
func snapshotName(owner string, now time.Time) string {
	base := strings.TrimSuffix(backup.FileName(owner, now), ".json")
	return base + "-" + now.Format("150405") + ".json"
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
