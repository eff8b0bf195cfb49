package http

import (
	"net/http"
	"strings"

	"cadastro/internal/stats"
)

// handleDashboard returns every chart and summary for the filtered set.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	NewResponse().JSON(s.records.Dashboard(c)).Write(w)
}

type monthlyView struct {
	Kind   stats.Kind         `json:"kind"`
	Points []stats.MonthPoint `json:"points"`
}

// handleMonthlySeries returns the per-month series; kind defaults to count.
func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	kind := stats.KindCount
	if v := strings.TrimSpace(r.URL.Query().Get("kind")); v != "" {
		kind = stats.Kind(strings.ToLower(v))
	}
	if !kind.IsValid() {
		BadRequestError(msgBadKind).Write(w)
		return
	}
	NewResponse().
		JSON(monthlyView{Kind: kind, Points: s.records.MonthlySeries(c, kind)}).
		Write(w)
}
