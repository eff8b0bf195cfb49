// Package records holds the in-memory record collection that every view,
// report and backup is derived from.
//
// A Store has no locking of its own. The owner (services.RecordService)
// serialises access so there is exactly one writer at a time.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"cadastro/internal/core"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("duplicate record id")
)

type Store struct {
	items []core.Record
}

// New returns a store holding a copy of recs.
func New(recs []core.Record) *Store {
	return &Store{items: slices.Clone(recs)}
}

// Decode parses the persisted blob: a JSON array of records. An empty blob
// is an empty collection.
func Decode(raw []byte) ([]core.Record, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var recs []core.Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return recs, nil
}

// Encode serialises the collection for persistence. An empty store
// encodes as [] rather than null.
func (s *Store) Encode() ([]byte, error) {
	items := s.items
	if items == nil {
		items = []core.Record{}
	}
	return json.Marshal(items)
}

func (s *Store) Len() int {
	return len(s.items)
}

// All returns a copy of every record in insertion order.
func (s *Store) All() []core.Record {
	return slices.Clone(s.items)
}

func (s *Store) Get(id string) (core.Record, bool) {
	i := s.index(id)
	if i < 0 {
		return core.Record{}, false
	}
	return s.items[i], true
}

// Add appends a record whose id is not yet in use.
func (s *Store) Add(r core.Record) error {
	if r.ID == "" {
		return core.ErrEmptyID
	}
	if s.index(r.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
	}
	s.items = append(s.items, r)
	return nil
}

// Update replaces the record with the same id, keeping its position.
func (s *Store) Update(r core.Record) error {
	i := s.index(r.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	s.items[i] = r
	return nil
}

// Remove deletes the record with the given id and returns it.
func (s *Store) Remove(id string) (core.Record, error) {
	i := s.index(id)
	if i < 0 {
		return core.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	return r, nil
}

// ReplaceAll swaps the whole collection and returns the previous one so
// the caller can roll back.
func (s *Store) ReplaceAll(recs []core.Record) []core.Record {
	prev := s.items
	s.items = slices.Clone(recs)
	return prev
}

// History returns every record of the same customer as id: records that
// share its non-empty tax id or its non-empty email. A record with neither
// has only itself as history. Results are ordered by date, newest first.
func (s *Store) History(id string) ([]core.Record, error) {
	ref, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var out []core.Record
	for _, r := range s.items {
		if r.ID == ref.ID || SameCustomer(ref, r) {
			out = append(out, r)
		}
	}
	SortByDateDesc(out)
	return out, nil
}

// SameCustomer reports whether two records belong to the same customer:
// equal TaxID or equal email, compared exactly. Empty identifiers never
// match.
func SameCustomer(a, b core.Record) bool {
	if a.TaxID != "" && a.TaxID == b.TaxID {
		return true
	}
	return a.Email != "" && a.Email == b.Email
}

// SortByDateDesc orders records newest first. Records with unparseable
// dates go last. The sort is stable.
func SortByDateDesc(recs []core.Record) {
	slices.SortStableFunc(recs, func(a, b core.Record) int {
		return b.Date.Compare(a.Date)
	})
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.items, func(r core.Record) bool { return r.ID == id })
}
