package services

import (
	"context"
	"fmt"

	"cadastro/internal/amqp"
	"cadastro/internal/backup"
	"cadastro/internal/confirm"
	applog "cadastro/internal/log"
)

// Outcome describes a confirmed action.
type Outcome struct {
	Kind        confirm.Kind `json:"-"`
	Action      string       `json:"action"`
	RecordID    string       `json:"recordId,omitempty"`
	RecordCount int          `json:"recordCount"`
}

// Message is the notification shown after the action went through.
func (o Outcome) Message() string {
	switch o.Kind {
	case confirm.Delete:
		return "Cliente excluído com sucesso!"
	case confirm.Restore:
		return fmt.Sprintf("Backup restaurado com sucesso! %d registros recuperados.", o.RecordCount)
	}
	return ""
}

// RequestDelete registers the deletion of id. Nothing changes until
// Confirm.
func (s *RecordService) RequestDelete(ctx context.Context, id string) (confirm.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Get(id); !ok {
		return confirm.Action{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return s.register(ctx, confirm.DeleteAction(id)), nil
}

// RequestRestore validates raw as a backup document and registers it for
// restoring. An invalid document leaves both the store and the pending
// action untouched.
func (s *RecordService) RequestRestore(ctx context.Context, raw []byte) (confirm.Action, error) {
	if raw == nil {
		return confirm.Action{}, backup.ErrMissingSelection
	}
	recs, err := backup.Validate(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Backup document rejected",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldError, err)
		return confirm.Action{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(ctx, confirm.RestoreAction(recs)), nil
}

func (s *RecordService) register(ctx context.Context, a confirm.Action) confirm.Action {
	if prev := s.slot.Register(a); prev.Kind != confirm.None {
		s.logger.InfoContext(ctx, "Pending action replaced",
			applog.FieldPendingAction, a.Kind.String(),
			"replaced_action", prev.Kind.String())
	}
	return a
}

// Pending returns the action awaiting confirmation, Kind None when idle.
func (s *RecordService) Pending() confirm.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot.Pending()
}

// State reports whether an action awaits confirmation.
func (s *RecordService) State() confirm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot.State()
}

// Cancel drops the pending action and returns it. The store is not
// touched.
func (s *RecordService) Cancel(ctx context.Context) confirm.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.slot.Take()
	if a.Kind != confirm.None {
		s.logger.InfoContext(ctx, "Pending action cancelled",
			applog.FieldOperation, applog.OpCancel,
			applog.FieldPendingAction, a.Kind.String())
	}
	return a
}

// Confirm applies the pending action. The slot is emptied whatever the
// result; when persisting fails the store is rolled back and the error
// returned.
func (s *RecordService) Confirm(ctx context.Context) (Outcome, error) {
	var msg *amqp.DatasetChangedMessage
	defer func() { s.publish(ctx, msg) }()
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.slot.Take()
	if a.Kind != confirm.None {
		s.logger.InfoContext(ctx, "Pending action confirmed",
			applog.FieldOperation, applog.OpConfirm,
			applog.FieldPendingAction, a.Kind.String())
	}
	var (
		out Outcome
		err error
	)
	switch a.Kind {
	case confirm.Delete:
		out, msg, err = s.applyDelete(ctx, a.RecordID)
	case confirm.Restore:
		out, msg, err = s.applyRestore(ctx, a)
	default:
		err = ErrNothingPending
	}
	return out, err
}

func (s *RecordService) applyDelete(ctx context.Context, id string) (Outcome, *amqp.DatasetChangedMessage, error) {
	prev := s.store.All()
	removed, err := s.store.Remove(id)
	if err != nil {
		return Outcome{}, nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err := s.persist(ctx, prev); err != nil {
		return Outcome{}, nil, err
	}
	msg := s.committed(amqp.OpDelete, id)
	s.events.LogRecordChanged(ctx, applog.OpDelete, removed.ID, removed.Service, removed.Amount.Cents, removed.Paid)
	return Outcome{Kind: confirm.Delete, Action: confirm.Delete.String(), RecordID: id, RecordCount: s.store.Len()}, msg, nil
}

func (s *RecordService) applyRestore(ctx context.Context, a confirm.Action) (Outcome, *amqp.DatasetChangedMessage, error) {
	prev := s.store.ReplaceAll(a.Records)
	if err := s.persist(ctx, prev); err != nil {
		return Outcome{}, nil, err
	}
	s.loaded = true
	msg := s.committed(amqp.OpRestore, "")
	s.events.LogDatasetReplaced(ctx, len(prev), len(a.Records))
	return Outcome{Kind: confirm.Restore, Action: confirm.Restore.String(), RecordCount: len(a.Records)}, msg, nil
}
