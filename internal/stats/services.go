package stats

import (
	"slices"

	"cadastro/internal/core"
)

type ServiceCount struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

type ServiceRevenue struct {
	Service string     `json:"service"`
	Amount  core.Money `json:"amount"`
}

// TopServicesByCount groups by service, orders by count descending and
// keeps the first n. Ties keep first-encountered order. n <= 0 keeps all.
func TopServicesByCount(recs []core.Record, n int) []ServiceCount {
	out := []ServiceCount{}
	pos := map[string]int{}
	for _, r := range recs {
		if r.Service == "" {
			continue
		}
		i, ok := pos[r.Service]
		if !ok {
			i = len(out)
			pos[r.Service] = i
			out = append(out, ServiceCount{Service: r.Service})
		}
		out[i].Count++
	}
	slices.SortStableFunc(out, func(a, b ServiceCount) int {
		return b.Count - a.Count
	})
	return truncate(out, n)
}

// RevenueByService sums amounts per service, ordered by amount descending
// and truncated to n. Zero amounts contribute nothing and never create an
// entry on their own.
func RevenueByService(recs []core.Record, n int) []ServiceRevenue {
	out := []ServiceRevenue{}
	pos := map[string]int{}
	for _, r := range recs {
		if r.Service == "" || r.Amount.Cents <= 0 {
			continue
		}
		i, ok := pos[r.Service]
		if !ok {
			i = len(out)
			pos[r.Service] = i
			out = append(out, ServiceRevenue{Service: r.Service})
		}
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	slices.SortStableFunc(out, func(a, b ServiceRevenue) int {
		switch {
		case a.Amount.Cents > b.Amount.Cents:
			return -1
		case a.Amount.Cents < b.Amount.Cents:
			return 1
		}
		return 0
	})
	return truncate(out, n)
}

// Services lists the distinct services in first-encountered order, for
// the service filter.
func Services(recs []core.Record) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, r := range recs {
		if r.Service == "" {
			continue
		}
		if _, ok := seen[r.Service]; ok {
			continue
		}
		seen[r.Service] = struct{}{}
		out = append(out, r.Service)
	}
	return out
}

// Years lists the distinct years of the valid record dates, newest first,
// for the year filter.
func Years(recs []core.Record) []int {
	out := []int{}
	seen := map[int]struct{}{}
	for _, r := range recs {
		if !r.Date.Valid() {
			continue
		}
		y := r.Date.Year()
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	slices.SortFunc(out, func(a, b int) int { return b - a })
	return out
}

func truncate[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
