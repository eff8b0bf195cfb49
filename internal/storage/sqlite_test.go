package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "cadastro.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteGetMissing(t *testing.T) {
	s := newTestSQLiteStore(t)
	v, found, err := s.Get(context.Background(), "clientes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found || v != nil {
		t.Fatalf("expected missing key, got %q", v)
	}
}

func TestSQLiteSetOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	if err := s.Set(ctx, "clientes", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "clientes", []byte(`[]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, found, err := s.Get(ctx, "clientes")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if string(v) != "[]" {
		t.Fatalf("expected last write to win, got %s", v)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cadastro.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	v, found, err := s.Get(ctx, "k")
	if err != nil || !found || string(v) != "v" {
		t.Fatalf("expected persisted value, got %q found=%v err=%v", v, found, err)
	}
}

func TestSQLiteBackupLog(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	for _, name := range []string{"a.json", "b.json", "c.json"} {
		if _, err := s.LogBackup(ctx, name, 2, "scheduled"); err != nil {
			t.Fatalf("log backup: %v", err)
		}
	}
	got, err := s.RecentBackups(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].FileName != "c.json" || got[1].FileName != "b.json" {
		t.Fatalf("unexpected entries %+v", got)
	}
	if got[0].CreatedAt.IsZero() || got[0].Reason != "scheduled" || got[0].RecordCount != 2 {
		t.Fatalf("unexpected entry %+v", got[0])
	}
}
