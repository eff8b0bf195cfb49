// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// table filters from the query string, record bodies in JSON or form
// encoding, and backup uploads.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cadastro/internal/backup"
	"cadastro/internal/core"
	"cadastro/internal/filter"
)

var (
	errBodyTooLarge   = errors.New("request body too large")
	errInvalidFilter  = errors.New("invalid filter")
	errUnreadableBody = errors.New("unreadable request body")
)

// ParseCriteria reads the table filter from the query string: nome
// (substring), pago (true/false, sim/nao), servico, mes (1-12) and ano.
// Empty parameters are ignored.
func ParseCriteria(query url.Values) (filter.Criteria, error) {
	c := filter.Criteria{
		NameContains: sanitizeInput(query.Get("nome")),
		Service:      sanitizeInput(query.Get("servico")),
	}

	if v := strings.TrimSpace(query.Get("pago")); v != "" {
		paid, err := parsePaid(v)
		if err != nil {
			return filter.Criteria{}, fmt.Errorf("%w: pago=%q", errInvalidFilter, v)
		}
		c.Paid = &paid
	}
	if v := strings.TrimSpace(query.Get("mes")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return filter.Criteria{}, fmt.Errorf("%w: mes=%q", errInvalidFilter, v)
		}
		c.Month = m
	}
	if v := strings.TrimSpace(query.Get("ano")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return filter.Criteria{}, fmt.Errorf("%w: ano=%q", errInvalidFilter, v)
		}
		c.Year = y
	}
	return c, nil
}

func parsePaid(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "sim", "pago", "on":
		return true, nil
	case "nao", "não", "pendente":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	err         error
}

// NewRequestBodyParser reads at most limit bytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request, limit int64) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = readLimited(w, r, limit)
	return p
}

// Record decodes the body into a record. JSON uses the persisted field
// names; forms use the same names as keys. Amount and date problems are
// left for record validation to report.
func (p *RequestBodyParser) Record() (core.Record, error) {
	if p.err != nil {
		return core.Record{}, p.err
	}
	if p.IsJSON() {
		var rec core.Record
		if err := json.Unmarshal(p.body, &rec); err != nil {
			return core.Record{}, fmt.Errorf("%w: %v", errUnreadableBody, err)
		}
		return rec, nil
	}

	form, err := url.ParseQuery(string(p.body))
	if err != nil {
		return core.Record{}, fmt.Errorf("%w: %v", errUnreadableBody, err)
	}
	amount, err := core.ParseAmount(form.Get("valor"))
	if err != nil {
		amount = core.Money{Cents: -1}
	}
	date, _ := core.ParseDate(form.Get("data"))
	paid, _ := parsePaid(strings.TrimSpace(form.Get("pago")))

	return core.Record{
		Name:    sanitizeInput(form.Get("nome")),
		Email:   sanitizeInput(form.Get("email")),
		TaxID:   sanitizeInput(form.Get("cpf")),
		Service: sanitizeInput(form.Get("servico")),
		Date:    date,
		Amount:  amount,
		Paid:    paid,
		Notes:   sanitizeInput(form.Get("observacoes")),
	}, nil
}

// IsJSON reports whether the body should be decoded as JSON.
func (p *RequestBodyParser) IsJSON() bool {
	if mt, _, err := mime.ParseMediaType(p.contentType); err == nil {
		return mt == "application/json"
	}
	trimmed := strings.TrimSpace(string(p.body))
	return strings.HasPrefix(trimmed, "{")
}

// ReadUpload returns the backup document sent either as the raw request
// body or as the "file" field of a multipart form. An empty selection
// maps to backup.ErrMissingSelection.
func ReadUpload(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		raw, err := readLimited(w, r, limit)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return nil, backup.ErrMissingSelection
		}
		return raw, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errUnreadableBody, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, backup.ErrMissingSelection
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnreadableBody, err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnreadableBody, err)
	}
	if len(raw) == 0 {
		return nil, backup.ErrMissingSelection
	}
	return raw, nil
}

func readLimited(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errUnreadableBody, err)
	}
	return body, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
