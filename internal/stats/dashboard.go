package stats

import (
	"time"

	"cadastro/internal/core"
)

// RecentWindow is the number of months in the activity chart.
const RecentWindow = 6

// Dashboard bundles every view derived from one record subset.
type Dashboard struct {
	Summary     Summary          `json:"summary"`
	Payments    Payments         `json:"payments"`
	PaidPercent int              `json:"paidPercent"`
	TopServices []ServiceCount   `json:"topServices"`
	Revenue     []ServiceRevenue `json:"revenueByService"`
	Monthly     []MonthPoint     `json:"monthly"`
	Recent      []MonthPoint     `json:"recent"`
	Services    []string         `json:"services"`
	Years       []int            `json:"years"`
}

// Build computes the dashboard for recs. now anchors the recent-months
// window.
func Build(recs []core.Record, topN int, now time.Time) Dashboard {
	if topN <= 0 {
		topN = DefaultTopN
	}
	s := Summarize(recs)
	return Dashboard{
		Summary:     s,
		Payments:    PaymentBreakdown(recs),
		PaidPercent: Percentage(int64(s.PaidCount), int64(s.Count)),
		TopServices: TopServicesByCount(recs, topN),
		Revenue:     RevenueByService(recs, topN),
		Monthly:     MonthlySeries(recs, KindCount),
		Recent:      LastMonths(recs, KindCount, RecentWindow, now),
		Services:    Services(recs),
		Years:       Years(recs),
	}
}
