// Package report prepares the customer report: the sorted row set shared
// by the CSV and PDF outputs, the closing summary block and the CSV
// encoding itself.
package report

import (
	"fmt"
	"slices"
	"time"

	"cadastro/internal/backup"
	"cadastro/internal/core"
	"cadastro/internal/stats"
)

const (
	StatusPaid    = "Pago"
	StatusPending = "Pendente"
)

// Row is one formatted report line.
type Row struct {
	Name    string `json:"nome"`
	TaxID   string `json:"cpf"`
	Email   string `json:"email"`
	Service string `json:"servico"`
	Date    string `json:"data"`
	Amount  string `json:"valor"`
	Status  string `json:"status"`
	Notes   string `json:"observacoes"`
	Pending bool   `json:"pendente"`
}

// Summary closes the report.
type Summary struct {
	Count         int        `json:"totalClientes"`
	PaidCount     int        `json:"pagamentosRealizados"`
	PendingCount  int        `json:"pagamentosPendentes"`
	TotalAmount   core.Money `json:"valorTotal"`
	PendingAmount core.Money `json:"valorPendente"`
}

// Lines renders the summary as the report prints it.
func (s Summary) Lines() []string {
	return []string{
		fmt.Sprintf("Total de clientes: %d", s.Count),
		fmt.Sprintf("Pagamentos realizados: %d", s.PaidCount),
		fmt.Sprintf("Pagamentos pendentes: %d", s.PendingCount),
		"Valor total: " + s.TotalAmount.BRL(),
		"Valor pendente: " + s.PendingAmount.BRL(),
	}
}

type Report struct {
	Title       string    `json:"titulo"`
	GeneratedAt time.Time `json:"geradoEm"`
	Rows        []Row     `json:"linhas"`
	Summary     Summary   `json:"resumo"`
}

// Sort returns a copy of recs with pending records first and, within each
// group, the most recent date first.
func Sort(recs []core.Record) []core.Record {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b core.Record) int {
		if a.Paid != b.Paid {
			if a.Paid {
				return 1
			}
			return -1
		}
		return b.Date.Compare(a.Date)
	})
	return out
}

// Rows formats recs in report order.
func Rows(recs []core.Record) []Row {
	sorted := Sort(recs)
	rows := make([]Row, 0, len(sorted))
	for _, r := range sorted {
		status := StatusPaid
		if r.Pending() {
			status = StatusPending
		}
		rows = append(rows, Row{
			Name:    r.Name,
			TaxID:   r.TaxID,
			Email:   r.Email,
			Service: r.Service,
			Date:    r.Date.BR(),
			Amount:  r.Amount.BRL(),
			Status:  status,
			Notes:   r.Notes,
			Pending: r.Pending(),
		})
	}
	return rows
}

// Summarize computes the closing block over every record.
func Summarize(recs []core.Record) Summary {
	p := stats.PaymentBreakdown(recs)
	return Summary{
		Count:         p.PaidCount + p.PendingCount,
		PaidCount:     p.PaidCount,
		PendingCount:  p.PendingCount,
		TotalAmount:   p.PaidAmount.Add(p.PendingAmount),
		PendingAmount: p.PendingAmount,
	}
}

// Build assembles the full report. An empty collection has nothing to
// report and fails with backup.ErrEmptyDataset.
func Build(recs []core.Record, owner string, now time.Time) (Report, error) {
	if len(recs) == 0 {
		return Report{}, backup.ErrEmptyDataset
	}
	return Report{
		Title:       "Relatório de Clientes - " + owner,
		GeneratedAt: now,
		Rows:        Rows(recs),
		Summary:     Summarize(recs),
	}, nil
}

// CSVFileName is the download name of the CSV report generated at now.
func CSVFileName(owner string, now time.Time) string {
	return fmt.Sprintf("relatorio-clientes-%s-%s.csv", owner, now.Format("2006-01-02"))
}

// PDFFileName is the download name of the PDF report.
func PDFFileName(owner string) string {
	return fmt.Sprintf("relatorio-clientes-%s.pdf", owner)
}
