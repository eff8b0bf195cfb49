// Package filter narrows a record collection by the criteria the table
// view exposes. Every function here is pure.
package filter

import (
	"strings"

	"cadastro/internal/core"
)

// Criteria are combined with AND. Zero values mean "not set".
type Criteria struct {
	NameContains string
	Paid         *bool
	Service      string
	Month        int // 1-12
	Year         int
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return strings.TrimSpace(c.NameContains) == "" &&
		c.Paid == nil &&
		c.Service == "" &&
		c.Month == 0 &&
		c.Year == 0
}

func (c Criteria) hasDate() bool {
	return c.Month != 0 || c.Year != 0
}

// Match reports whether r satisfies every set criterion. Records with an
// unparseable date never match a month or year criterion.
func (c Criteria) Match(r core.Record) bool {
	if needle := strings.TrimSpace(c.NameContains); needle != "" {
		if !strings.Contains(strings.ToLower(r.Name), strings.ToLower(needle)) {
			return false
		}
	}
	if c.Paid != nil && r.Paid != *c.Paid {
		return false
	}
	if c.Service != "" && r.Service != c.Service {
		return false
	}
	if c.hasDate() {
		if !r.Date.Valid() {
			return false
		}
		if c.Month != 0 && r.Date.Month() != c.Month {
			return false
		}
		if c.Year != 0 && r.Date.Year() != c.Year {
			return false
		}
	}
	return true
}

// Apply returns the records matching c, in input order.
func Apply(recs []core.Record, c Criteria) []core.Record {
	out := make([]core.Record, 0, len(recs))
	for _, r := range recs {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
