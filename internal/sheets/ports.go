// Package sheets publishes the customer report to a spreadsheet.
package sheets

import (
	"context"

	"cadastro/internal/report"
)

// ReportExporter writes a report to an outbound sheet and returns a
// reference to the written range.
type ReportExporter interface {
	ExportReport(ctx context.Context, rep report.Report) (rangeRef string, err error)
}

// Values lays the report out as a cell matrix: title, header, one row per
// record, a blank line and the summary lines in the first column.
func Values(rep report.Report) [][]any {
	out := make([][]any, 0, len(rep.Rows)+9)
	out = append(out, []any{rep.Title})

	header := make([]any, len(report.Header))
	for i, h := range report.Header {
		header[i] = h
	}
	out = append(out, header)

	for _, r := range rep.Rows {
		out = append(out, []any{r.Name, r.TaxID, r.Email, r.Service, r.Date, r.Amount, r.Status, r.Notes})
	}

	out = append(out, []any{})
	for _, line := range rep.Summary.Lines() {
		out = append(out, []any{line})
	}
	return out
}
