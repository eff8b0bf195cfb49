package stats

import (
	"fmt"
	"slices"
	"time"

	"cadastro/internal/core"
)

// Kind selects what a monthly series measures.
type Kind string

const (
	KindCount   Kind = "count"
	KindRevenue Kind = "revenue"
)

func (k Kind) IsValid() bool {
	return k == KindCount || k == KindRevenue
}

var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthPoint is one bucket of a monthly series. Value is a record count
// for KindCount and cents for KindRevenue.
type MonthPoint struct {
	Key   string `json:"key"`   // YYYY-MM
	Label string `json:"label"` // Janeiro/24
	Value int64  `json:"value"`
}

type monthKey struct {
	year  int
	month int
}

func (k monthKey) key() string {
	return fmt.Sprintf("%04d-%02d", k.year, k.month)
}

// MonthLabel returns the localized month name followed by the two-digit
// year, e.g. "Março/24".
func MonthLabel(year, month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return fmt.Sprintf("%s/%02d", monthNames[month-1], year%100)
}

func measure(r core.Record, kind Kind) int64 {
	if kind == KindRevenue {
		return r.Amount.Cents
	}
	return 1
}

// MonthlySeries buckets records by calendar month and returns the buckets
// in ascending key order. Records with an unparseable date are skipped.
func MonthlySeries(recs []core.Record, kind Kind) []MonthPoint {
	buckets := map[monthKey]int64{}
	for _, r := range recs {
		if !r.Date.Valid() {
			continue
		}
		k := monthKey{r.Date.Year(), r.Date.Month()}
		buckets[k] += measure(r, kind)
	}
	out := make([]MonthPoint, 0, len(buckets))
	for k, v := range buckets {
		out = append(out, MonthPoint{Key: k.key(), Label: MonthLabel(k.year, k.month), Value: v})
	}
	slices.SortFunc(out, func(a, b MonthPoint) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return out
}

// LastMonths returns a window of n consecutive months ending with the
// month of now, oldest first. Months without records are present with a
// zero value.
func LastMonths(recs []core.Record, kind Kind, n int, now time.Time) []MonthPoint {
	if n <= 0 {
		return nil
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	out := make([]MonthPoint, n)
	index := map[monthKey]int{}
	for i := range n {
		m := first.AddDate(0, i, 0)
		k := monthKey{m.Year(), int(m.Month())}
		index[k] = i
		out[i] = MonthPoint{Key: k.key(), Label: MonthLabel(k.year, k.month)}
	}
	for _, r := range recs {
		if !r.Date.Valid() {
			continue
		}
		if i, ok := index[monthKey{r.Date.Year(), r.Date.Month()}]; ok {
			out[i].Value += measure(r, kind)
		}
	}
	return out
}
