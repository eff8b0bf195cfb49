package http

import (
	"bytes"
	"net/http"

	"cadastro/internal/report"
)

// handleReportCSV downloads the customer report as CSV.
func (s *Server) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	rep, err := s.records.Report()
	if err != nil {
		errorResponse(r.Context(), err, msgNoReportData).Write(w)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rep.Rows); err != nil {
		errorResponse(r.Context(), err, "").Write(w)
		return
	}
	NewResponse().
		TriggerSuccessNotification(msgReportDone).
		Attachment(report.CSVFileName(s.records.Owner(), rep.GeneratedAt), "text/csv; charset=utf-8", buf.Bytes()).
		Write(w)
}

type reportSummary struct {
	report.Report
	FileName string   `json:"arquivoPdf"`
	Lines    []string `json:"linhasResumo"`
}

// handleReportSummary returns the data a PDF renderer needs: title,
// sorted rows and the closing summary.
func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	rep, err := s.records.Report()
	if err != nil {
		errorResponse(r.Context(), err, msgNoReportData).Write(w)
		return
	}
	NewResponse().
		JSON(reportSummary{
			Report:   rep,
			FileName: report.PDFFileName(s.records.Owner()),
			Lines:    rep.Summary.Lines(),
		}).
		Write(w)
}
