package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date at UTC midnight. A value that could not be
	// parsed keeps its original text so it survives a load/save cycle.
	Date struct {
		time.Time
		raw string
	}

	// Record is one customer appointment. JSON keys follow the persisted
	// and backup format.
	Record struct {
		ID           string    `json:"id"`
		Name         string    `json:"nome"`
		Email        string    `json:"email"`
		TaxID        string    `json:"cpf"`
		Service      string    `json:"servico"`
		Date         Date      `json:"data"`
		Amount       Money     `json:"valor"`
		Paid         bool      `json:"pago"`
		Notes        string    `json:"observacoes"`
		RegisteredAt time.Time `json:"dataRegistro,omitzero"`
	}
)

var (
	ErrEmptyID       = errors.New("empty id")
	ErrEmptyName     = errors.New("empty name")
	ErrNameTooLong   = errors.New("name too long (max 200 characters)")
	ErrEmptyService  = errors.New("empty service")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD. A full RFC 3339 timestamp is accepted and
// truncated to its calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDate(t.Year(), int(t.Month()), t.Day()), nil
	}
	return Date{raw: s}, ErrInvalidDate
}

// Valid reports whether the date was parsed into a calendar date.
func (d Date) Valid() bool {
	return !d.Time.IsZero()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) String() string {
	if !d.Valid() {
		return d.raw
	}
	return d.Format(dateLayout)
}

// BR formats the date as dd/mm/yyyy, or returns the original text when
// the date is not valid.
func (d Date) BR() string {
	if !d.Valid() {
		return d.raw
	}
	return d.Format("02/01/2006")
}

// Compare orders valid dates chronologically and places invalid dates
// before every valid one.
func (d Date) Compare(o Date) int {
	switch {
	case !d.Valid() && !o.Valid():
		return 0
	case !d.Valid():
		return -1
	case !o.Valid():
		return 1
	}
	return d.Time.Compare(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Not a string: keep the literal so it is reported, not lost.
		*d = Date{raw: string(data)}
		return nil
	}
	parsed, _ := ParseDate(s)
	*d = parsed
	return nil
}

// Normalize trims surrounding whitespace from the free-text fields.
func (r Record) Normalize() Record {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.TaxID = strings.TrimSpace(r.TaxID)
	r.Service = strings.TrimSpace(r.Service)
	r.Notes = strings.TrimSpace(r.Notes)
	return r
}

// Pending reports whether the record is still awaiting payment.
func (r Record) Pending() bool {
	return !r.Paid
}

// Validate checks the user-supplied fields. The id is assigned by the
// store and is checked separately where records come from outside.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return ErrNameTooLong
	}
	if strings.TrimSpace(r.Service) == "" {
		return ErrEmptyService
	}
	if !r.Date.Valid() {
		return ErrInvalidDate
	}
	return r.Amount.Validate()
}
