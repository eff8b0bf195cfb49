// Package stats computes the derived views shown on the dashboard and
// statistics pages. Every function takes the record subset to aggregate
// and never mutates it.
package stats

import (
	"math"

	"cadastro/internal/core"
)

// DefaultTopN is how many services the ranking charts show.
const DefaultTopN = 6

type Summary struct {
	Count        int        `json:"count"`
	PaidCount    int        `json:"paidCount"`
	PendingCount int        `json:"pendingCount"`
	TotalAmount  core.Money `json:"totalAmount"`
}

type Payments struct {
	PaidCount     int        `json:"paidCount"`
	PendingCount  int        `json:"pendingCount"`
	PaidAmount    core.Money `json:"paidAmount"`
	PendingAmount core.Money `json:"pendingAmount"`
}

// Summarize counts records by payment status and sums every amount.
func Summarize(recs []core.Record) Summary {
	var s Summary
	for _, r := range recs {
		s.Count++
		if r.Paid {
			s.PaidCount++
		} else {
			s.PendingCount++
		}
		s.TotalAmount = s.TotalAmount.Add(r.Amount)
	}
	return s
}

// PaymentBreakdown splits counts and amounts by payment status.
func PaymentBreakdown(recs []core.Record) Payments {
	var p Payments
	for _, r := range recs {
		if r.Paid {
			p.PaidCount++
			p.PaidAmount = p.PaidAmount.Add(r.Amount)
		} else {
			p.PendingCount++
			p.PendingAmount = p.PendingAmount.Add(r.Amount)
		}
	}
	return p
}

// Percentage returns round(100*value/total), or 0 when total is 0.
func Percentage(value, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(value) * 100 / float64(total)))
}
