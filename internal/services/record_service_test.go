package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cadastro/internal/amqp"
	"cadastro/internal/backup"
	"cadastro/internal/cache"
	"cadastro/internal/confirm"
	"cadastro/internal/core"
	"cadastro/internal/filter"
	applog "cadastro/internal/log"
	"cadastro/internal/records"
	"cadastro/internal/stats"
	"cadastro/internal/storage/memory"
)

const testKey = "clientes"

// flakyStore wraps the memory store and fails Set while failSet is true.
type flakyStore struct {
	*memory.Store
	failSet bool
	sets    int
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	f.sets++
	return f.Store.Set(ctx, key, value)
}

type recordingPublisher struct {
	msgs []*amqp.DatasetChangedMessage
	err  error
}

func (p *recordingPublisher) PublishDatasetChanged(_ context.Context, msg *amqp.DatasetChangedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, seed []core.Record) (*RecordService, *flakyStore, *recordingPublisher) {
	t.Helper()
	blobs := &flakyStore{Store: memory.New()}
	if seed != nil {
		raw, err := records.New(seed).Encode()
		if err != nil {
			t.Fatalf("encode seed: %v", err)
		}
		if err := blobs.Store.Set(context.Background(), testKey, raw); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	pub := &recordingPublisher{}
	n := 0
	svc := NewRecordService(blobs, pub, Options{
		StorageKey: testKey,
		Owner:      "studio",
		Views:      cache.NewLRUCache[stats.Dashboard](16, time.Minute),
		Now:        func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return svc, blobs, pub
}

func rec(id, name, service, date string, cents int64, paid bool) core.Record {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Record{ID: id, Name: name, Service: service, Date: d, Amount: core.Money{Cents: cents}, Paid: paid}
}

func seedRecords() []core.Record {
	return []core.Record{
		rec("a", "Ana", "Corte", "2024-01-10", 5000, true),
		rec("b", "Bia", "Escova", "2024-02-10", 3000, false),
	}
}

func storedBlob(t *testing.T, blobs *flakyStore) []byte {
	t.Helper()
	raw, _, err := blobs.Get(context.Background(), testKey)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	return raw
}

func TestLoadMissingKeyIsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	if svc.Count() != 0 || !svc.Loaded() {
		t.Fatalf("expected loaded empty store, got %d", svc.Count())
	}
}

func TestLoadCorruptBlob(t *testing.T) {
	blobs := memory.New()
	_ = blobs.Set(context.Background(), testKey, []byte("{oops"))
	svc := NewRecordService(blobs, nil, Options{StorageKey: testKey})
	if err := svc.Load(context.Background()); err == nil {
		t.Fatal("expected error for corrupt blob")
	}
	if svc.Loaded() {
		t.Fatal("service must not report loaded after a failed load")
	}
	if _, err := svc.Create(context.Background(), rec("", "Ana", "Corte", "2024-01-10", 100, true)); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestCreateAssignsIdentityAndPersists(t *testing.T) {
	svc, blobs, pub := newTestService(t, nil)

	created, err := svc.Create(context.Background(), rec("", "  Ana  ", " Corte ", "2024-01-10", 5000, true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "id-1" || created.Name != "Ana" || created.Service != "Corte" {
		t.Fatalf("unexpected record %+v", created)
	}
	if !created.RegisteredAt.Equal(fixedNow) {
		t.Fatalf("expected registration time %v, got %v", fixedNow, created.RegisteredAt)
	}

	persisted, err := records.Decode(storedBlob(t, blobs))
	if err != nil || len(persisted) != 1 || persisted[0].ID != "id-1" {
		t.Fatalf("unexpected persisted state %+v (%v)", persisted, err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Operation != amqp.OpCreate || pub.msgs[0].RecordCount != 1 {
		t.Fatalf("unexpected published messages %+v", pub.msgs)
	}
}

func TestCreateRejectsInvalidRecord(t *testing.T) {
	svc, blobs, pub := newTestService(t, nil)

	_, err := svc.Create(context.Background(), rec("", "", "Corte", "2024-01-10", 100, true))
	if !errors.Is(err, ErrInvalidRecord) || !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected invalid record error, got %v", err)
	}
	if blobs.sets != 0 || len(pub.msgs) != 0 || svc.Count() != 0 {
		t.Fatal("invalid record must not be stored or published")
	}
}

func TestCreatePersistFailureRollsBack(t *testing.T) {
	svc, blobs, pub := newTestService(t, seedRecords())
	blobs.failSet = true

	if _, err := svc.Create(context.Background(), rec("", "Cris", "Corte", "2024-03-01", 100, true)); err == nil {
		t.Fatal("expected persist error")
	}
	if svc.Count() != 2 {
		t.Fatalf("expected rollback to 2 records, got %d", svc.Count())
	}
	if len(pub.msgs) != 0 {
		t.Fatal("nothing should be published after a failed persist")
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _, pub := newTestService(t, nil)
	pub.err = amqp.ErrCircuitOpen

	if _, err := svc.Create(context.Background(), rec("", "Ana", "Corte", "2024-01-10", 100, true)); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	if svc.Count() != 1 {
		t.Fatalf("expected 1 record, got %d", svc.Count())
	}
}

// lockCheckingPublisher records whether the service lock was held while a
// message was published.
type lockCheckingPublisher struct {
	svc       *RecordService
	published int
	heldLock  bool
}

func (p *lockCheckingPublisher) PublishDatasetChanged(context.Context, *amqp.DatasetChangedMessage) error {
	p.published++
	if p.svc.mu.TryLock() {
		p.svc.mu.Unlock()
	} else {
		p.heldLock = true
	}
	return nil
}

func TestPublishRunsOutsideLock(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())
	pub := &lockCheckingPublisher{svc: svc}
	svc.publisher = pub
	ctx := context.Background()

	created, err := svc.Create(ctx, rec("", "Carla", "Corte", "2024-03-01", 4000, false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	created.Paid = true
	if _, err := svc.Update(ctx, created.ID, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.RequestDelete(ctx, "a"); err != nil {
		t.Fatalf("request delete: %v", err)
	}
	if _, err := svc.Confirm(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Confirm(ctx); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("expected ErrNothingPending, got %v", err)
	}

	if pub.published != 3 {
		t.Fatalf("expected 3 messages, got %d", pub.published)
	}
	if pub.heldLock {
		t.Fatal("messages must be published after the lock is released")
	}
}

func TestUpdateKeepsRegistrationTime(t *testing.T) {
	seed := seedRecords()
	seed[0].RegisteredAt = time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, seed)

	changed := rec("ignored", "Ana Paula", "Corte", "2024-01-10", 6000, true)
	got, err := svc.Update(context.Background(), "a", changed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ID != "a" || !got.RegisteredAt.Equal(seed[0].RegisteredAt) || got.Amount.Cents != 6000 {
		t.Fatalf("unexpected updated record %+v", got)
	}

	if _, err := svc.Update(context.Background(), "missing", changed); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	svc, _, pub := newTestService(t, seedRecords())
	ctx := context.Background()

	a, err := svc.RequestDelete(ctx, "a")
	if err != nil {
		t.Fatalf("request delete: %v", err)
	}
	if a.Kind != confirm.Delete || svc.State() != confirm.AwaitingConfirmation {
		t.Fatalf("expected pending delete, got %+v", a)
	}
	if svc.Count() != 2 {
		t.Fatal("store must not change before confirmation")
	}

	out, err := svc.Confirm(ctx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if out.Kind != confirm.Delete || out.RecordID != "a" || out.Message() != "Cliente excluído com sucesso!" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, err := svc.Get("a"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected record to be gone, got %v", err)
	}
	if svc.State() != confirm.Idle {
		t.Fatal("slot must be idle after confirm")
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Operation != amqp.OpDelete {
		t.Fatalf("unexpected messages %+v", pub.msgs)
	}

	if _, err := svc.RequestDelete(ctx, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestConfirmWithNothingPending(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())
	if _, err := svc.Confirm(context.Background()); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("expected ErrNothingPending, got %v", err)
	}
}

func TestDeclinedRestoreChangesNothing(t *testing.T) {
	svc, blobs, pub := newTestService(t, seedRecords())
	ctx := context.Background()
	before := storedBlob(t, blobs)

	raw := []byte(`{"data":[],"metadata":{"versao":"1.0","dataBackup":"2024-01-01T00:00:00Z","quantidadeRegistros":0}}`)
	a, err := svc.RequestRestore(ctx, raw)
	if err != nil {
		t.Fatalf("request restore: %v", err)
	}
	if a.Kind != confirm.Restore || len(a.Records) != 0 {
		t.Fatalf("unexpected pending action %+v", a)
	}

	cancelled := svc.Cancel(ctx)
	if cancelled.Kind != confirm.Restore {
		t.Fatalf("expected to cancel the restore, got %v", cancelled.Kind)
	}
	if svc.Count() != 2 || !bytes.Equal(before, storedBlob(t, blobs)) || len(pub.msgs) != 0 {
		t.Fatal("declined restore must leave memory and storage untouched")
	}
}

func TestConfirmedEmptyRestoreZeroesStats(t *testing.T) {
	svc, blobs, pub := newTestService(t, seedRecords())
	ctx := context.Background()

	if d := svc.Dashboard(filter.Criteria{}); d.Summary.Count != 2 {
		t.Fatalf("expected 2 records before restore, got %d", d.Summary.Count)
	}

	raw := []byte(`{"data":[],"metadata":{"versao":"1.0","dataBackup":"2024-01-01T00:00:00Z","quantidadeRegistros":0}}`)
	if _, err := svc.RequestRestore(ctx, raw); err != nil {
		t.Fatalf("request restore: %v", err)
	}
	out, err := svc.Confirm(ctx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if out.Message() != "Backup restaurado com sucesso! 0 registros recuperados." {
		t.Fatalf("unexpected message %q", out.Message())
	}

	d := svc.Dashboard(filter.Criteria{})
	if d.Summary.Count != 0 || !d.Summary.TotalAmount.IsZero() || d.PaidPercent != 0 {
		t.Fatalf("expected zeroed dashboard after restore, got %+v", d.Summary)
	}
	if string(storedBlob(t, blobs)) != "[]" {
		t.Fatalf("expected empty persisted collection, got %s", storedBlob(t, blobs))
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Operation != amqp.OpRestore {
		t.Fatalf("unexpected messages %+v", pub.msgs)
	}
}

func TestRestorePersistFailureRollsBack(t *testing.T) {
	svc, blobs, _ := newTestService(t, seedRecords())
	ctx := context.Background()

	raw, _, err := svc.Backup(ctx)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	replacement := strings.Replace(string(raw), `"Ana"`, `"Ana Maria"`, 1)
	if _, err := svc.RequestRestore(ctx, []byte(replacement)); err != nil {
		t.Fatalf("request restore: %v", err)
	}

	blobs.failSet = true
	if _, err := svc.Confirm(ctx); err == nil {
		t.Fatal("expected persist error")
	}
	got, err := svc.Get("a")
	if err != nil || got.Name != "Ana" {
		t.Fatalf("expected original record after rollback, got %+v (%v)", got, err)
	}
	if svc.State() != confirm.Idle {
		t.Fatal("slot must be idle after a failed confirm")
	}
}

func TestRestoreRejectsInvalidDocuments(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())
	ctx := context.Background()

	if _, err := svc.RequestDelete(ctx, "b"); err != nil {
		t.Fatalf("request delete: %v", err)
	}

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"no selection", nil, backup.ErrMissingSelection},
		{"not json", []byte("not json"), backup.ErrMalformedDocument},
		{"legacy layout", []byte(`{"clientes":[]}`), backup.ErrInvalidSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.RequestRestore(ctx, tt.raw); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if p := svc.Pending(); p.Kind != confirm.Delete || p.RecordID != "b" {
		t.Fatalf("rejected document must not replace the pending action, got %+v", p)
	}
	if svc.Count() != 2 {
		t.Fatal("rejected document must not change the store")
	}
}

func TestLastRegisteredActionWins(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())
	ctx := context.Background()

	raw := []byte(`{"data":[],"metadata":{"versao":"1.0","dataBackup":"2024-01-01T00:00:00Z","quantidadeRegistros":0}}`)
	if _, err := svc.RequestRestore(ctx, raw); err != nil {
		t.Fatalf("request restore: %v", err)
	}
	if _, err := svc.RequestDelete(ctx, "a"); err != nil {
		t.Fatalf("request delete: %v", err)
	}

	out, err := svc.Confirm(ctx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if out.Kind != confirm.Delete {
		t.Fatalf("expected the delete to run, got %v", out.Kind)
	}
	if svc.Count() != 1 {
		t.Fatalf("expected only the delete to apply, got %d records", svc.Count())
	}
}

func TestBackupRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())
	ctx := context.Background()

	raw, name, err := svc.Backup(ctx)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if name != backup.FileName("studio", fixedNow) {
		t.Fatalf("unexpected file name %q", name)
	}

	a, err := svc.RequestRestore(ctx, raw)
	if err != nil {
		t.Fatalf("restore own backup: %v", err)
	}
	if len(a.Records) != 2 {
		t.Fatalf("expected 2 records in backup, got %d", len(a.Records))
	}

	empty, _, _ := newTestService(t, nil)
	if _, _, err := empty.Backup(ctx); !errors.Is(err, backup.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())

	all := svc.List(filter.Criteria{})
	if len(all) != 2 || all[0].ID != "b" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	paid := true
	got := svc.List(filter.Criteria{Paid: &paid})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only paid record, got %+v", got)
	}
}

func TestDashboardCacheIsPurgedOnWrite(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())
	ctx := context.Background()

	if d := svc.Dashboard(filter.Criteria{}); d.Summary.Count != 2 {
		t.Fatalf("expected 2, got %d", d.Summary.Count)
	}
	if _, err := svc.Create(ctx, rec("", "Cris", "Corte", "2024-03-01", 100, true)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if d := svc.Dashboard(filter.Criteria{}); d.Summary.Count != 3 {
		t.Fatalf("expected fresh dashboard with 3 records, got %d", d.Summary.Count)
	}
}

func TestWriteReportCSV(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())

	var buf bytes.Buffer
	name, err := svc.WriteReportCSV(&buf)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.HasPrefix(name, "relatorio-clientes-studio-") {
		t.Fatalf("unexpected file name %q", name)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], `"Bia"`) {
		t.Fatalf("expected pending record first, got %q", lines[1])
	}

	empty, _, _ := newTestService(t, nil)
	if _, err := empty.WriteReportCSV(&buf); !errors.Is(err, backup.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestClose(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPendingActionsAreLogged(t *testing.T) {
	svc, _, _ := newTestService(t, seedRecords())
	var buf bytes.Buffer
	svc.logger = applog.New(applog.Config{Format: "json", Component: applog.ComponentRecords, Output: &buf})
	svc.events = applog.NewStructuredLogger(svc.logger)
	ctx := context.Background()

	if _, err := svc.RequestDelete(ctx, "a"); err != nil {
		t.Fatalf("request delete: %v", err)
	}
	svc.Cancel(ctx)
	if _, err := svc.RequestDelete(ctx, "b"); err != nil {
		t.Fatalf("request delete: %v", err)
	}
	if _, err := svc.Confirm(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"operation":"cancel"`, `"operation":"confirm"`, `"pending_action":"delete"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in logs:\n%s", want, out)
		}
	}
}
