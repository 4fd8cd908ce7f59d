package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindTransaction EntryKind = "transaction"
	KindBill        EntryKind = "bill"
)

const (
	BillStatusPending BillStatus = "pending"
	BillStatusPaid    BillStatus = "paid"
	BillStatusOverdue BillStatus = "overdue"
)

// DateLayout is the storage and wire format of every Date.
const DateLayout = "2006-01-02"

type (
	EntryKind  string
	BillStatus string

	// Date is a calendar day. The wrapped time is always midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Template is a recurring definition owned by a single user.
	Template struct {
		ID              string
		UserID          string
		Kind            EntryKind
		Frequency       Frequency
		StartDate       Date
		EndDate         Date // zero when open-ended
		Active          bool
		AutoMaterialize bool
		Description     string
		Amount          Money
		Currency        string
		Category        string

		// Bill kind only.
		DueDate       Date
		BillFrequency Frequency
		LastPaidDate  Date
		Status        BillStatus

		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Instance is one materialized occurrence. Template fields are copied at
	// creation time; later template edits never reach existing instances.
	Instance struct {
		ID             string
		UserID         string
		TemplateID     string
		Kind           EntryKind
		OccurrenceDate Date
		Description    string
		Amount         Money
		Currency       string
		Category       string

		// Bill kind only.
		DueDate     Date
		NextDueDate Date
		Status      BillStatus

		CreatedAt time.Time
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyUser         = errors.New("empty user id")
	ErrInvalidKind       = errors.New("invalid entry kind")
	ErrMissingStartDate  = errors.New("missing start date")
	ErrMissingDueDate    = errors.New("missing due date")
	ErrEndBeforeStart    = errors.New("end date must not be before start date")
	ErrDuplicateInstance = errors.New("instance already materialized")
	ErrNotFound          = errors.New("not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// DaysUntil returns the number of calendar days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.Sub(d.Time).Hours() / 24)
}

// MinDate returns the earlier of a and b, ignoring zero values.
func MinDate(a, b Date) Date {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k EntryKind) IsValid() bool {
	return k == KindTransaction || k == KindBill
}

// IsBill reports whether the template carries a due-date chain.
func (t Template) IsBill() bool {
	return t.Kind == KindBill
}

// ScheduleFrequency is the frequency that drives occurrence dates. Bills
// step with their bill frequency so both chains stay in lockstep.
func (t Template) ScheduleFrequency() Frequency {
	if t.IsBill() && t.BillFrequency != "" {
		return t.BillFrequency
	}
	return t.Frequency
}

// HasEnded reports whether the template's end date is on or before today.
func (t Template) HasEnded(today Date) bool {
	return !t.EndDate.IsZero() && !t.EndDate.After(today)
}

func (t Template) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if !t.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	if t.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	if err := t.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate) {
		return ErrEndBeforeStart
	}
	if _, err := GetStepper(t.ScheduleFrequency()); err != nil {
		if t.IsBill() && t.BillFrequency != "" {
			return fmt.Errorf("bill frequency: %w", err)
		}
		return err
	}
	if t.IsBill() {
		if t.DueDate.IsZero() {
			return ErrMissingDueDate
		}
		// A bill stepping on its bill frequency may leave Frequency unset.
		if t.BillFrequency != "" && t.Frequency != "" {
			if _, err := GetStepper(t.Frequency); err != nil {
				return fmt.Errorf("frequency: %w", err)
			}
		}
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return t.Amount.Validate()
}

// NewInstance snapshots the template's current fields for one occurrence.
func NewInstance(t Template, occurrence Date) Instance {
	inst := Instance{
		UserID:         t.UserID,
		TemplateID:     t.ID,
		Kind:           t.Kind,
		OccurrenceDate: occurrence,
		Description:    t.Description,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Category:       t.Category,
	}
	if t.IsBill() {
		inst.Status = BillStatusPending
	}
	return inst
}
