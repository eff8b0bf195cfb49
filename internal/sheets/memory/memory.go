// Package memory keeps exported reports in process, for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "cadastro/internal/sheets"
	"cadastro/internal/report"
)

var _ ports.ReportExporter = (*Exporter)(nil)

type Exporter struct {
	mu      sync.Mutex
	exports [][][]any
}

func New() *Exporter {
	return &Exporter{}
}

// ExportReport stores the report's cell matrix and returns a synthetic
// reference.
func (e *Exporter) ExportReport(_ context.Context, rep report.Report) (string, error) {
	values := ports.Values(rep)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports = append(e.exports, values)
	return fmt.Sprintf("mem:%d", len(e.exports)), nil
}

// Last returns the most recent export, nil when nothing was exported.
func (e *Exporter) Last() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.exports) == 0 {
		return nil
	}
	return e.exports[len(e.exports)-1]
}

func (e *Exporter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.exports)
}
