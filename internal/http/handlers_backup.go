package http

import (
	"net/http"
	"strconv"

	"cadastro/internal/confirm"
	"cadastro/internal/storage"
)

// handleBackup downloads the whole store as a backup document.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	raw, fileName, err := s.records.Backup(r.Context())
	if err != nil {
		errorResponse(r.Context(), err, msgNoBackupData).Write(w)
		return
	}
	NewResponse().
		TriggerSuccessNotification(msgBackupDone).
		Attachment(fileName, "application/json", raw).
		Write(w)
}

// handleRestore validates an uploaded document and registers it as the
// pending action. Nothing is replaced until POST /pending/confirm.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	raw, err := ReadUpload(w, r, s.maxUpload)
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	action, err := s.records.RequestRestore(r.Context(), raw)
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	NewResponse().
		Status(http.StatusAccepted).
		TriggerConfirmationRequired(action.Kind.String(), action.Prompt()).
		JSON(pendingView(action)).
		Write(w)
}

// pending is the JSON view of the confirmation slot.
type pending struct {
	State       string `json:"state"`
	Kind        string `json:"kind"`
	Prompt      string `json:"prompt,omitempty"`
	RecordID    string `json:"recordId,omitempty"`
	RecordCount int    `json:"recordCount,omitempty"`
}

func pendingView(a confirm.Action) pending {
	p := pending{
		State:  confirm.Idle.String(),
		Kind:   a.Kind.String(),
		Prompt: a.Prompt(),
	}
	switch a.Kind {
	case confirm.Delete:
		p.State = confirm.AwaitingConfirmation.String()
		p.RecordID = a.RecordID
	case confirm.Restore:
		p.State = confirm.AwaitingConfirmation.String()
		p.RecordCount = len(a.Records)
	}
	return p
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(pendingView(s.records.Pending())).Write(w)
}

// handleConfirm runs the pending action.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	out, err := s.records.Confirm(r.Context())
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	NewResponse().
		TriggerDatasetChanged(s.records.Count()).
		TriggerSuccessNotification(out.Message()).
		JSON(out).
		Write(w)
}

// handleCancel declines the pending action. Cancelling an idle slot is
// not an error.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	declined := s.records.Cancel(r.Context())
	b := NewResponse()
	if declined.Kind != confirm.None {
		b.TriggerNotification(NotificationInfo, msgCancelled, 3000)
	}
	b.JSON(pendingView(confirm.Action{})).Write(w)
}

const (
	defaultBackupLogLimit = 20
	maxBackupLogLimit     = 100
)

type backupLog struct {
	Backups []storage.BackupEntry `json:"backups"`
	Count   int                   `json:"count"`
}

// handleBackupLog lists the latest snapshots written by the backup worker.
func (s *Server) handleBackupLog(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		NotFoundError(msgNoBackupLog).Write(w)
		return
	}
	limit := defaultBackupLogLimit
	if v := r.URL.Query().Get("limite"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxBackupLogLimit {
			BadRequestError(msgBadFilter).Write(w)
			return
		}
		limit = n
	}
	entries, err := s.backups.RecentBackups(r.Context(), limit)
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	if entries == nil {
		entries = []storage.BackupEntry{}
	}
	NewResponse().JSON(backupLog{Backups: entries, Count: len(entries)}).Write(w)
}
