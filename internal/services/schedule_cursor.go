package services

import (
	"fintrack/internal/core"
)

// ScheduleCursor is where generation resumes for one template. It is always
// derived from persisted instances, never carried between runs.
type ScheduleCursor struct {
	Anchor    core.Date
	Frequency core.Frequency

	// LastDate is the newest materialized occurrence, or one period before
	// the anchor when nothing has been materialized yet.
	LastDate     core.Date
	HasInstances bool

	// NextIndex is the period index of FirstCandidate counted from Anchor.
	NextIndex      int
	FirstCandidate core.Date

	// Boundary is the last date that may be generated: today, or the end
	// date when that comes first.
	Boundary core.Date
}

// NewScheduleCursor derives the cursor of t given its instances and today's
// date in the owner's calendar.
func NewScheduleCursor(t core.Template, instances []core.Instance, today core.Date) (ScheduleCursor, error) {
	freq := t.ScheduleFrequency()
	if t.StartDate.IsZero() {
		return ScheduleCursor{}, &ValidationError{TemplateID: t.ID, Err: core.ErrMissingStartDate}
	}
	if !freq.IsValid() {
		return ScheduleCursor{}, &ValidationError{TemplateID: t.ID, Err: core.ErrUnknownFrequency}
	}

	c := ScheduleCursor{
		Anchor:    t.StartDate,
		Frequency: freq,
		Boundary:  core.MinDate(today, t.EndDate),
	}

	for _, inst := range instances {
		if !c.HasInstances || inst.OccurrenceDate.After(c.LastDate) {
			c.LastDate = inst.OccurrenceDate
			c.HasInstances = true
		}
	}

	if c.HasInstances {
		idx, err := core.PeriodIndex(c.Anchor, c.LastDate, freq)
		if err != nil {
			return ScheduleCursor{}, &ValidationError{TemplateID: t.ID, Err: err}
		}
		c.NextIndex = idx + 1
	} else {
		prev, err := core.AddPeriods(c.Anchor, freq, -1)
		if err != nil {
			return ScheduleCursor{}, &ValidationError{TemplateID: t.ID, Err: err}
		}
		c.LastDate = prev
	}

	first, err := core.AddPeriods(c.Anchor, freq, c.NextIndex)
	if err != nil {
		return ScheduleCursor{}, &ValidationError{TemplateID: t.ID, Err: err}
	}
	c.FirstCandidate = first
	return c, nil
}

// OneTime reports whether the schedule has a single occurrence.
func (c ScheduleCursor) OneTime() bool {
	return c.Frequency == core.OneTime
}

// Exhausted reports whether this run has nothing to generate.
func (c ScheduleCursor) Exhausted() bool {
	if c.OneTime() && c.HasInstances {
		return true
	}
	return c.FirstCandidate.After(c.Boundary)
}
