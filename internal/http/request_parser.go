package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const maxBodyBytes = 64 << 10

// templateRequest is the JSON body of a template creation. Dates are
// YYYY-MM-DD; amount is a positive decimal string ("12.50" or "12,50").
type templateRequest struct {
	Kind            string `json:"kind"`
	Frequency       string `json:"frequency"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	AutoMaterialize *bool  `json:"autoMaterialize"`
	Description     string `json:"description"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Category        string `json:"category"`

	DueDate       string `json:"dueDate"`
	BillFrequency string `json:"billFrequency"`
	LastPaidDate  string `json:"lastPaidDate"`
}

// instanceRequest is the JSON body of a manual instance.
type instanceRequest struct {
	OccurrenceDate string `json:"occurrenceDate"`
}

func (req instanceRequest) date() (core.Date, error) {
	d, err := core.ParseDate(req.OccurrenceDate)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: occurrenceDate: %w", services.ErrInvalidInput, err)
	}
	return d, nil
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

// decodeJSON reads a size-limited JSON body into dst, rejecting unknown
// fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body too large", services.ErrInvalidInput)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", services.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON: %v", services.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", services.ErrInvalidInput)
	}
	return nil
}

// toTemplate converts the request into a core template. Field-level checks
// beyond parsing are left to the template service.
func (req templateRequest) toTemplate() (core.Template, error) {
	t := core.Template{
		Kind:            core.EntryKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Frequency:       core.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency))),
		BillFrequency:   core.Frequency(strings.ToLower(strings.TrimSpace(req.BillFrequency))),
		AutoMaterialize: req.AutoMaterialize == nil || *req.AutoMaterialize,
		Description:     sanitizeInput(req.Description),
		Currency:        sanitizeInput(req.Currency),
		Category:        sanitizeInput(req.Category),
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Template{}, fmt.Errorf("%w: amount %q: %w", services.ErrInvalidInput, req.Amount, err)
	}
	t.Amount = amount

	dates := []struct {
		name  string
		value string
		dst   *core.Date
	}{
		{"startDate", req.StartDate, &t.StartDate},
		{"endDate", req.EndDate, &t.EndDate},
		{"dueDate", req.DueDate, &t.DueDate},
		{"lastPaidDate", req.LastPaidDate, &t.LastPaidDate},
	}
	for _, d := range dates {
		parsed, err := core.ParseDate(d.value)
		if err != nil {
			return core.Template{}, fmt.Errorf("%w: %s: %w", services.ErrInvalidInput, d.name, err)
		}
		*d.dst = parsed
	}
	return t, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// userIDFrom returns the trimmed {userID} path segment.
func userIDFrom(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("userID"))
}
