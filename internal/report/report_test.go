package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"cadastro/internal/backup"
	"cadastro/internal/core"
)

func sample() []core.Record {
	return []core.Record{
		{ID: "1", Name: "Ana", Service: "Corte", Date: core.NewDate(2024, 1, 10), Amount: core.Money{Cents: 5000}, Paid: true},
		{ID: "2", Name: `Bia "Bi"`, TaxID: "111.222.333-44", Service: "Escova, longa", Date: core.NewDate(2024, 1, 5), Amount: core.Money{Cents: 3050}},
		{ID: "3", Name: "Carla", Email: "c@x.com", Service: "Corte", Date: core.NewDate(2024, 3, 1), Amount: core.Money{Cents: 2000}, Paid: true},
		{ID: "4", Name: "Dani", Service: "Manicure", Date: core.NewDate(2024, 2, 1), Notes: "trazer esmalte"},
	}
}

func TestSortPendingFirstThenNewest(t *testing.T) {
	got := Sort(sample())
	want := []string{"4", "2", "3", "1"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, Rows(sample())); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Nome,CPF,Email,Serviço,Data,Valor,Status,Observações" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	wantDani := `"Dani","","","Manicure","01/02/2024","R$ 0,00","Pendente","trazer esmalte"`
	if lines[1] != wantDani {
		t.Fatalf("row 1:\n got %s\nwant %s", lines[1], wantDani)
	}
	wantBia := `"Bia ""Bi""","111.222.333-44","","Escova, longa","05/01/2024","R$ 30,50","Pendente",""`
	if lines[2] != wantBia {
		t.Fatalf("row 2:\n got %s\nwant %s", lines[2], wantBia)
	}
	if !strings.HasSuffix(lines[4], `"R$ 50,00","Pago",""`) {
		t.Fatalf("row 4: unexpected %s", lines[4])
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())
	want := Summary{
		Count:         4,
		PaidCount:     2,
		PendingCount:  2,
		TotalAmount:   core.Money{Cents: 10050},
		PendingAmount: core.Money{Cents: 3050},
	}
	if s != want {
		t.Fatalf("expected %+v, got %+v", want, s)
	}
	lines := s.Lines()
	if lines[3] != "Valor total: R$ 100,50" || lines[4] != "Valor pendente: R$ 30,50" {
		t.Fatalf("unexpected summary lines %q", lines)
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	if _, err := Build(nil, "dayane", now); !errors.Is(err, backup.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	r, err := Build(sample(), "Dayane", now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(r.Rows) != 4 || r.Summary.Count != 4 || r.Title != "Relatório de Clientes - Dayane" {
		t.Fatalf("unexpected report %+v", r)
	}
	if !r.Rows[0].Pending || r.Rows[3].Pending {
		t.Fatalf("pending flags out of order")
	}
}

func TestFileNames(t *testing.T) {
	now := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	if got := CSVFileName("dayane", now); got != "relatorio-clientes-dayane-2024-04-02.csv" {
		t.Fatalf("unexpected csv name %q", got)
	}
	if got := PDFFileName("dayane"); got != "relatorio-clientes-dayane.pdf" {
		t.Fatalf("unexpected pdf name %q", got)
	}
}
