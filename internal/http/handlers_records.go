package http

import (
	"net/http"

	"cadastro/internal/core"
)

type recordList struct {
	Records []core.Record `json:"records"`
	Count   int           `json:"count"`
	Total   int           `json:"total"`
}

// handleListRecords returns the table view: filtered, newest first.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	recs := s.records.List(c)
	NewResponse().
		JSON(recordList{Records: recs, Count: len(recs), Total: s.records.Count()}).
		Write(w)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.PathValue("id"))
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	NewResponse().JSON(rec).Write(w)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(w, r, s.maxUpload).Record()
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	rec, err := s.records.Create(r.Context(), in)
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/records/"+rec.ID).
		TriggerDatasetChanged(s.records.Count()).
		TriggerSuccessNotification(msgSaved).
		JSON(rec).
		Write(w)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(w, r, s.maxUpload).Record()
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	rec, err := s.records.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	NewResponse().
		TriggerDatasetChanged(s.records.Count()).
		TriggerSuccessNotification(msgSaved).
		JSON(rec).
		Write(w)
}

// handleDeleteRecord only registers the deletion; the record goes away
// on POST /pending/confirm.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	action, err := s.records.RequestDelete(r.Context(), r.PathValue("id"))
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

type historyView struct {
	Records []core.Record `json:"records"`
	Count   int           `json:"count"`
	Total   core.Money    `json:"valorTotal"`
}

// handleRecordHistory lists every visit of the customer behind id.
func (s *Server) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.History(r.PathValue("id"))
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	var total core.Money
	for _, rec := range recs {
		total = total.Add(rec.Amount)
	}
	NewResponse().
		JSON(historyView{Records: recs, Count: len(recs), Total: total}).
		Write(w)
}
