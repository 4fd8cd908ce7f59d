// This file implements the Strategy Pattern for calendar stepping.
// Each frequency has its own stepper that knows how to move an anchor date
// forward by n periods.

package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
	OneTime   Frequency = "one-time"
)

type Frequency string

var ErrUnknownFrequency = errors.New("unknown frequency")

// Stepper moves an anchor date by n periods of one frequency.
// Advance must be anchored: Advance(a, 3) is computed from a, never by
// stepping a clamped intermediate, so Jan 31 stays on month-end days.
type Stepper interface {
	Advance(anchor Date, n int) Date
}

// DayStepper steps by a fixed number of days.
type DayStepper struct {
	Days int
}

func (s DayStepper) Advance(anchor Date, n int) Date {
	return Date{Time: anchor.AddDate(0, 0, s.Days*n)}
}

// MonthStepper steps by whole months, clamping to the last valid day.
type MonthStepper struct {
	Months int
}

func (s MonthStepper) Advance(anchor Date, n int) Date {
	return addMonthsClamped(anchor, s.Months*n)
}

// FixedStepper never advances.
type FixedStepper struct{}

func (FixedStepper) Advance(anchor Date, _ int) Date {
	return anchor
}

// steppers maps frequencies to their corresponding strategies.
var steppers = map[Frequency]Stepper{
	Daily:     DayStepper{Days: 1},
	Weekly:    DayStepper{Days: 7},
	Monthly:   MonthStepper{Months: 1},
	Quarterly: MonthStepper{Months: 3},
	Yearly:    MonthStepper{Months: 12},
	OneTime:   FixedStepper{},
}

// GetStepper returns the stepper for a frequency.
// Returns an error if the frequency is not supported.
func GetStepper(f Frequency) (Stepper, error) {
	s, ok := steppers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, f)
	}
	return s, nil
}

// IsValid reports whether f has a registered stepper.
func (f Frequency) IsValid() bool {
	_, ok := steppers[f]
	return ok
}

// Step returns the date one period after d.
func Step(d Date, f Frequency) (Date, error) {
	return AddPeriods(d, f, 1)
}

// AddPeriods returns anchor moved by n periods of f. Negative n steps back.
func AddPeriods(anchor Date, f Frequency, n int) (Date, error) {
	s, err := GetStepper(f)
	if err != nil {
		return Date{}, err
	}
	return s.Advance(anchor, n), nil
}

// PeriodIndex returns the largest n such that AddPeriods(anchor, f, n) <= d,
// or -1 when d is before the anchor. For one-time it is 0 from the anchor on.
func PeriodIndex(anchor, d Date, f Frequency) (int, error) {
	s, err := GetStepper(f)
	if err != nil {
		return 0, err
	}
	if d.Before(anchor) {
		return -1, nil
	}

	var n int
	switch st := s.(type) {
	case DayStepper:
		n = anchor.DaysUntil(d) / st.Days
	case MonthStepper:
		ay, am, _ := anchor.Date()
		dy, dm, _ := d.Date()
		n = ((dy-ay)*12 + int(dm-am)) / st.Months
	default:
		return 0, nil
	}

	for n > 0 && s.Advance(anchor, n).After(d) {
		n--
	}
	for !s.Advance(anchor, n+1).After(d) {
		n++
	}
	return n, nil
}

func addMonthsClamped(d Date, months int) Date {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date{Time: time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
