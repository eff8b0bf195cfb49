// Package backup creates and validates backup documents.
//
// A document is the whole record collection plus metadata:
//
//	{"data": [...], "metadata": {"versao": "1.0", "dataBackup": "...", "quantidadeRegistros": n}}
//
// Documents are always built from the full store, never from a filtered
// view.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cadastro/internal/core"
)

// Version is written to every document this package creates.
const Version = "1.0"

var (
	ErrEmptyDataset      = errors.New("empty dataset")
	ErrMalformedDocument = errors.New("malformed backup document")
	ErrInvalidSchema     = errors.New("invalid backup schema")
	ErrMissingSelection  = errors.New("no backup file selected")
)

type Metadata struct {
	Version     string    `json:"versao"`
	CreatedAt   time.Time `json:"dataBackup"`
	RecordCount int       `json:"quantidadeRegistros"`
}

type Document struct {
	Records  []core.Record `json:"data"`
	Metadata Metadata      `json:"metadata"`
}

// Create builds a document from every record in recs.
func Create(recs []core.Record, now time.Time) (Document, error) {
	if len(recs) == 0 {
		return Document{}, ErrEmptyDataset
	}
	return Document{
		Records: recs,
		Metadata: Metadata{
			Version:     Version,
			CreatedAt:   now.UTC(),
			RecordCount: len(recs),
		},
	}, nil
}

// Encode serialises the document as indented JSON.
func Encode(doc Document) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return b, nil
}

// FileName returns the download name for a backup taken at now.
func FileName(owner string, now time.Time) string {
	return fmt.Sprintf("backup-clientes-%s-%s.json", owner, now.Format("2006-01-02"))
}

// RecordError describes one rejected record of a restore payload.
type RecordError struct {
	Index int
	ID    string
	Err   error
}

func (e *RecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record %d (%s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrInvalidSchema, e.Err}
}

// Validate parses raw and returns its records when the document is
// acceptable for restore.
//
// raw must be a JSON object whose "data" member is an array. Every record
// must carry an id, a name, a service and a parseable date, with no
// negative amount and no repeated id. All offending records are reported
// together. When metadata is present its record count must agree with the
// array length.
func Validate(raw []byte) ([]core.Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, ErrMalformedDocument
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return nil, fmt.Errorf("%w: document must be an object", ErrInvalidSchema)
	}

	data, ok := top["data"]
	if !ok || len(data) == 0 || data[0] != '[' {
		if _, legacy := top["clientes"]; legacy {
			return nil, fmt.Errorf("%w: unsupported \"clientes\" layout, expected \"data\"", ErrInvalidSchema)
		}
		return nil, fmt.Errorf("%w: \"data\" must be an array", ErrInvalidSchema)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	recs := make([]core.Record, 0, len(items))
	seen := make(map[string]int, len(items))
	var errs []error
	for i, item := range items {
		var r core.Record
		if err := json.Unmarshal(item, &r); err != nil {
			errs = append(errs, &RecordError{Index: i, Err: err})
			continue
		}
		if err := checkRecord(r); err != nil {
			errs = append(errs, &RecordError{Index: i, ID: r.ID, Err: err})
			continue
		}
		if first, dup := seen[r.ID]; dup {
			errs = append(errs, &RecordError{Index: i, ID: r.ID, Err: fmt.Errorf("id already used by record %d", first)})
			continue
		}
		seen[r.ID] = i
		recs = append(recs, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if meta, ok := top["metadata"]; ok && string(meta) != "null" {
		var m struct {
			RecordCount *int `json:"quantidadeRegistros"`
		}
		if err := json.Unmarshal(meta, &m); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidSchema, err)
		}
		if m.RecordCount != nil && *m.RecordCount != len(recs) {
			return nil, fmt.Errorf("%w: metadata declares %d records, found %d", ErrInvalidSchema, *m.RecordCount, len(recs))
		}
	}

	return recs, nil
}

func checkRecord(r core.Record) error {
	if r.ID == "" {
		return core.ErrEmptyID
	}
	return r.Validate()
}
