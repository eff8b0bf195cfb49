package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cadastro/internal/amqp"
	"cadastro/internal/backup"
	"cadastro/internal/cache"
	"cadastro/internal/confirm"
	"cadastro/internal/core"
	"cadastro/internal/filter"
	applog "cadastro/internal/log"
	"cadastro/internal/records"
	"cadastro/internal/report"
	"cadastro/internal/stats"
	"cadastro/internal/storage"
)

var (
	ErrInvalidRecord  = errors.New("invalid record")
	ErrRecordNotFound = errors.New("record not found")
	ErrNothingPending = errors.New("no action awaiting confirmation")
	ErrNotLoaded      = errors.New("records not loaded")
)

// EventPublisher announces committed changes. amqp.Client implements it.
type EventPublisher interface {
	PublishDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error
}

type Options struct {
	StorageKey string
	Owner      string
	TopN       int
	Views      cache.Cache[stats.Dashboard]
	Logger     *applog.Logger
	Now        func() time.Time
	NewID      func() string
}

// RecordService owns the record store. Every operation runs under one
// mutex, so the store always has a single writer and readers never see a
// half-applied change.
type RecordService struct {
	mu        sync.Mutex
	store     *records.Store
	loaded    bool
	slot      confirm.Slot
	blobs     storage.BlobStore
	publisher EventPublisher

	key   string
	owner string
	topN  int
	views cache.Cache[stats.Dashboard]
	now   func() time.Time
	newID func() string

	logger *applog.Logger
	events *applog.StructuredLogger
}

// NewRecordService wires the service. publisher may be nil.
func NewRecordService(blobs storage.BlobStore, publisher EventPublisher, opts Options) *RecordService {
	if opts.StorageKey == "" {
		opts.StorageKey = "clientes"
	}
	if opts.Owner == "" {
		opts.Owner = "studio"
	}
	if opts.TopN <= 0 {
		opts.TopN = stats.DefaultTopN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentRecords})
	}
	return &RecordService{
		store:     records.New(nil),
		blobs:     blobs,
		publisher: publisher,
		key:       opts.StorageKey,
		owner:     opts.Owner,
		topN:      opts.TopN,
		views:     opts.Views,
		now:       opts.Now,
		newID:     opts.NewID,
		logger:    opts.Logger,
		events:    applog.NewStructuredLogger(opts.Logger),
	}
}

// Load reads the persisted collection. A key that was never written is an
// empty collection; a blob that cannot be decoded is an error.
func (s *RecordService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, found, err := s.blobs.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	var recs []core.Record
	if found {
		if recs, err = records.Decode(raw); err != nil {
			return fmt.Errorf("load records: %w", err)
		}
	}
	s.store = records.New(recs)
	s.loaded = true
	s.purgeViews()
	s.logger.InfoContext(ctx, "Records loaded", applog.FieldStorageKey, s.key, applog.FieldRecordCount, len(recs))
	return nil
}

// Loaded reports whether Load has succeeded.
func (s *RecordService) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Owner is the business name used in file names and report titles.
func (s *RecordService) Owner() string {
	return s.owner
}

// Create validates r, assigns its id and registration time and persists it.
func (s *RecordService) Create(ctx context.Context, r core.Record) (core.Record, error) {
	var msg *amqp.DatasetChangedMessage
	defer func() { s.publish(ctx, msg) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return core.Record{}, ErrNotLoaded
	}

	r = r.Normalize()
	if err := r.Validate(); err != nil {
		return core.Record{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	r.ID = s.newID()
	r.RegisteredAt = s.now().UTC().Truncate(time.Second)

	prev := s.store.All()
	if err := s.store.Add(r); err != nil {
		return core.Record{}, fmt.Errorf("add record: %w", err)
	}
	if err := s.persist(ctx, prev); err != nil {
		return core.Record{}, err
	}
	msg = s.committed(amqp.OpCreate, r.ID)
	s.events.LogRecordChanged(ctx, applog.OpCreate, r.ID, r.Service, r.Amount.Cents, r.Paid)
	return r, nil
}

// Update replaces the record with id, keeping its registration time.
func (s *RecordService) Update(ctx context.Context, id string, r core.Record) (core.Record, error) {
	var msg *amqp.DatasetChangedMessage
	defer func() { s.publish(ctx, msg) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return core.Record{}, ErrNotLoaded
	}

	existing, ok := s.store.Get(id)
	if !ok {
		return core.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	r = r.Normalize()
	if err := r.Validate(); err != nil {
		return core.Record{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	r.ID = existing.ID
	r.RegisteredAt = existing.RegisteredAt

	prev := s.store.All()
	if err := s.store.Update(r); err != nil {
		return core.Record{}, fmt.Errorf("update record: %w", err)
	}
	if err := s.persist(ctx, prev); err != nil {
		return core.Record{}, err
	}
	msg = s.committed(amqp.OpUpdate, r.ID)
	s.events.LogRecordChanged(ctx, applog.OpUpdate, r.ID, r.Service, r.Amount.Cents, r.Paid)
	return r, nil
}

// Get returns one record.
func (s *RecordService) Get(id string) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.Get(id)
	if !ok {
		return core.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return r, nil
}

// List returns the records matching c, newest first.
func (s *RecordService) List(c filter.Criteria) []core.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := filter.Apply(s.store.All(), c)
	records.SortByDateDesc(out)
	return out
}

// History returns every visit of the customer behind id, newest first.
func (s *RecordService) History(id string) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.store.History(id)
	if errors.Is(err, records.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return out, err
}

// Count returns the size of the whole store.
func (s *RecordService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Len()
}

// Dashboard returns every derived view for the records matching c.
func (s *RecordService) Dashboard(c filter.Criteria) stats.Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := criteriaKey(c) + "|" + now.Format("2006-01")
	if s.views != nil {
		if d, ok := s.views.Get(key); ok {
			return d
		}
	}
	d := stats.Build(filter.Apply(s.store.All(), c), s.topN, now)
	if s.views != nil {
		s.views.Set(key, d)
	}
	return d
}

// MonthlySeries returns the per-month series of kind over the records
// matching c.
func (s *RecordService) MonthlySeries(c filter.Criteria, kind stats.Kind) []stats.MonthPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stats.MonthlySeries(filter.Apply(s.store.All(), c), kind)
}

// Backup builds a document from the whole store, ignoring any filter.
func (s *RecordService) Backup(ctx context.Context) (raw []byte, fileName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	doc, err := backup.Create(s.store.All(), now)
	if err != nil {
		return nil, "", err
	}
	raw, err = backup.Encode(doc)
	if err != nil {
		return nil, "", err
	}
	s.logger.InfoContext(ctx, "Backup created",
		applog.FieldOperation, applog.OpBackup,
		applog.FieldRecordCount, doc.Metadata.RecordCount)
	return raw, backup.FileName(s.owner, now), nil
}

// Report builds the customer report over the whole store.
func (s *RecordService) Report() (report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return report.Build(s.store.All(), s.owner, s.now())
}

// WriteReportCSV writes the CSV report to w and returns its file name.
func (s *RecordService) WriteReportCSV(w io.Writer) (string, error) {
	rep, err := s.Report()
	if err != nil {
		return "", err
	}
	if err := report.WriteCSV(w, rep.Rows); err != nil {
		return "", fmt.Errorf("write csv report: %w", err)
	}
	return report.CSVFileName(s.owner, rep.GeneratedAt), nil
}

// persist writes the store to the blob. On failure the store is put back
// to prev and the error returned.
func (s *RecordService) persist(ctx context.Context, prev []core.Record) error {
	raw, err := s.store.Encode()
	if err == nil {
		err = s.blobs.Set(ctx, s.key, raw)
	}
	if err != nil {
		s.store.ReplaceAll(prev)
		s.events.LogError(ctx, "Persist failed, changes rolled back", err, applog.ComponentStorage, applog.OpPersist, nil)
		return fmt.Errorf("persist records: %w", err)
	}
	return nil
}

// committed runs under the lock after every successful persist. Derived
// views are dropped and the change message returned for publish.
func (s *RecordService) committed(op, recordID string) *amqp.DatasetChangedMessage {
	s.purgeViews()
	if s.publisher == nil {
		return nil
	}
	return amqp.NewDatasetChangedMessage(op, recordID, s.store.Len())
}

// publish notifies subscribers once the lock is released. Failures are
// logged only; the local write is authoritative.
func (s *RecordService) publish(ctx context.Context, msg *amqp.DatasetChangedMessage) {
	if msg == nil || s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDatasetChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish dataset changed message",
			applog.FieldOperation, msg.Operation,
			applog.FieldError, err)
	}
}

func (s *RecordService) purgeViews() {
	if s.views != nil {
		s.views.Purge()
	}
}

// Close releases storage and the publisher when it can be closed.
func (s *RecordService) Close() error {
	var errs []error

	if s.blobs != nil {
		if err := s.blobs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close record service: %w", errors.Join(errs...))
	}
	return nil
}

func criteriaKey(c filter.Criteria) string {
	paid := "-"
	if c.Paid != nil {
		paid = fmt.Sprint(*c.Paid)
	}
	return fmt.Sprintf("%q|%s|%q|%d|%d", c.NameContains, paid, c.Service, c.Month, c.Year)
}
