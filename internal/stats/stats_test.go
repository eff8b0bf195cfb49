package stats

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"cadastro/internal/core"
)

func brl(reais int64) core.Money {
	return core.Money{Cents: reais * 100}
}

// scenarioR is the reference data set used across the aggregation tests.
func scenarioR() []core.Record {
	return []core.Record{
		{ID: "1", Service: "Corte", Amount: brl(50), Paid: true, Date: core.NewDate(2024, 1, 10)},
		{ID: "2", Service: "Corte", Amount: brl(30), Paid: false, Date: core.NewDate(2024, 2, 5)},
		{ID: "3", Service: "Manicure", Amount: brl(20), Paid: true, Date: core.NewDate(2024, 1, 20)},
	}
}

func TestScenarioR(t *testing.T) {
	r := scenarioR()

	if got, want := Summarize(r), (Summary{Count: 3, PaidCount: 2, PendingCount: 1, TotalAmount: brl(100)}); got != want {
		t.Fatalf("summary: expected %+v, got %+v", want, got)
	}

	wantTop := []ServiceCount{{"Corte", 2}, {"Manicure", 1}}
	if got := TopServicesByCount(r, 6); !reflect.DeepEqual(got, wantTop) {
		t.Fatalf("top services: expected %+v, got %+v", wantTop, got)
	}

	wantRev := []ServiceRevenue{{"Corte", brl(80)}, {"Manicure", brl(20)}}
	if got := RevenueByService(r, 6); !reflect.DeepEqual(got, wantRev) {
		t.Fatalf("revenue: expected %+v, got %+v", wantRev, got)
	}

	wantMonthly := []MonthPoint{
		{Key: "2024-01", Label: "Janeiro/24", Value: 2},
		{Key: "2024-02", Label: "Fevereiro/24", Value: 1},
	}
	if got := MonthlySeries(r, KindCount); !reflect.DeepEqual(got, wantMonthly) {
		t.Fatalf("monthly: expected %+v, got %+v", wantMonthly, got)
	}
}

func TestSummaryPartition(t *testing.T) {
	sets := [][]core.Record{nil, scenarioR(), {{Amount: brl(0)}, {Paid: true}}}
	for i, recs := range sets {
		s := Summarize(recs)
		if s.PaidCount+s.PendingCount != s.Count {
			t.Fatalf("set %d: paid+pending != count (%+v)", i, s)
		}
		p := PaymentBreakdown(recs)
		if p.PaidAmount.Add(p.PendingAmount) != s.TotalAmount {
			t.Fatalf("set %d: paid+pending amounts != total (%+v vs %+v)", i, p, s)
		}
		if p.PaidCount != s.PaidCount || p.PendingCount != s.PendingCount {
			t.Fatalf("set %d: breakdown counts disagree with summary", i)
		}
	}
}

func TestTopServicesTieBreakAndTruncate(t *testing.T) {
	var recs []core.Record
	for _, svc := range []string{"A", "B", "C", "B", "D", "E", "F", "G", "C", ""} {
		recs = append(recs, core.Record{Service: svc})
	}
	got := TopServicesByCount(recs, 4)
	want := []ServiceCount{{"B", 2}, {"C", 2}, {"A", 1}, {"D", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Count > got[i-1].Count {
			t.Fatalf("counts not descending: %+v", got)
		}
	}
	if all := TopServicesByCount(recs, 0); len(all) != 7 {
		t.Fatalf("n<=0 must keep all, got %d", len(all))
	}
}

func TestRevenueSkipsZeroAmounts(t *testing.T) {
	recs := []core.Record{
		{Service: "Corte", Amount: brl(10)},
		{Service: "Hidratação", Amount: brl(0)},
		{Service: "Escova", Amount: brl(40)},
		{Service: "Corte", Amount: brl(0)},
	}
	got := RevenueByService(recs, 6)
	want := []ServiceRevenue{{"Escova", brl(40)}, {"Corte", brl(10)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestMonthlySeriesRevenueOrdering(t *testing.T) {
	bad, _ := core.ParseDate("??")
	recs := []core.Record{
		{Amount: brl(5), Date: core.NewDate(2024, 10, 1)},
		{Amount: brl(7), Date: core.NewDate(2023, 12, 31)},
		{Amount: brl(3), Date: core.NewDate(2024, 2, 1)},
		{Amount: brl(1), Date: core.NewDate(2024, 10, 30)},
		{Amount: brl(9), Date: bad},
	}
	got := MonthlySeries(recs, KindRevenue)
	want := []MonthPoint{
		{Key: "2023-12", Label: "Dezembro/23", Value: 700},
		{Key: "2024-02", Label: "Fevereiro/24", Value: 300},
		{Key: "2024-10", Label: "Outubro/24", Value: 600},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Key <= got[i-1].Key {
			t.Fatalf("keys not strictly increasing: %+v", got)
		}
	}
}

func TestLastMonthsWrapsYear(t *testing.T) {
	now := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	recs := []core.Record{
		{Date: core.NewDate(2023, 9, 1)},
		{Date: core.NewDate(2023, 11, 5)},
		{Date: core.NewDate(2024, 2, 1)},
		{Date: core.NewDate(2024, 2, 28)},
		{Date: core.NewDate(2024, 3, 1)},
	}
	got := LastMonths(recs, KindCount, 6, now)
	wantKeys := []string{"2023-09", "2023-10", "2023-11", "2023-12", "2024-01", "2024-02"}
	wantVals := []int64{1, 0, 1, 0, 0, 2}
	if len(got) != len(wantKeys) {
		t.Fatalf("expected %d months, got %d", len(wantKeys), len(got))
	}
	for i := range got {
		if got[i].Key != wantKeys[i] || got[i].Value != wantVals[i] {
			t.Fatalf("month %d: expected %s=%d, got %s=%d", i, wantKeys[i], wantVals[i], got[i].Key, got[i].Value)
		}
	}
	if got[0].Label != "Setembro/23" {
		t.Fatalf("unexpected label %q", got[0].Label)
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		v, total int64
		want     int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{3, 3, 100},
	}
	for _, tc := range cases {
		if got := Percentage(tc.v, tc.total); got != tc.want {
			t.Errorf("Percentage(%d,%d): expected %d, got %d", tc.v, tc.total, tc.want, got)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	d := Build(nil, 0, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if d.Summary != (Summary{}) || d.PaidPercent != 0 {
		t.Fatalf("expected zeroed dashboard, got %+v", d)
	}
	if len(d.TopServices) != 0 || len(d.Revenue) != 0 || len(d.Monthly) != 0 {
		t.Fatalf("expected empty rankings, got %+v", d)
	}
	if len(d.Recent) != RecentWindow {
		t.Fatalf("recent window must always have %d months", RecentWindow)
	}
	for _, p := range d.Recent {
		if p.Value != 0 {
			t.Fatalf("expected zero-filled window, got %+v", d.Recent)
		}
	}

	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"topServices":[]`, `"revenueByService":[]`, `"monthly":[]`, `"services":[]`, `"years":[]`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("expected %s in %s", key, raw)
		}
	}
}

func TestYears(t *testing.T) {
	bad, _ := core.ParseDate("ontem")
	recs := []core.Record{
		{Date: core.NewDate(2023, 5, 1)},
		{Date: core.NewDate(2024, 1, 10)},
		{Date: bad},
		{Date: core.NewDate(2022, 12, 31)},
		{Date: core.NewDate(2024, 7, 2)},
	}
	if got, want := Years(recs), []int{2024, 2023, 2022}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := Build(recs, 6, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)).Years; len(got) != 3 {
		t.Fatalf("dashboard years: %v", got)
	}
}
