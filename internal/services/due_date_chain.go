package services

import (
	"fintrack/internal/core"
)

// DueDateChain keeps a bill's due date in lockstep with its occurrence
// date. Both advance by the same frequency from their own anchors, so the
// Nth occurrence is due Frequency*N after the template's initial due date.
type DueDateChain struct {
	Initial      core.Date
	Frequency    core.Frequency
	LastPaidDate core.Date
}

// NewDueDateChain returns the chain of a bill template, or nil for any
// other kind.
func NewDueDateChain(t core.Template) *DueDateChain {
	if !t.IsBill() {
		return nil
	}
	return &DueDateChain{
		Initial:      t.DueDate,
		Frequency:    t.ScheduleFrequency(),
		LastPaidDate: t.LastPaidDate,
	}
}

// DueDate returns the due date of the occurrence with the given index.
func (c *DueDateChain) DueDate(index int) (core.Date, error) {
	return core.AddPeriods(c.Initial, c.Frequency, index)
}

// NextDueDate previews the due date that follows the given occurrence. It is
// zero for one-time bills.
func (c *DueDateChain) NextDueDate(index int) (core.Date, error) {
	if c.Frequency == core.OneTime {
		return core.Date{}, nil
	}
	return core.AddPeriods(c.Initial, c.Frequency, index+1)
}

// Apply stamps inst with its due date, the next-due preview and an initial
// status relative to today.
func (c *DueDateChain) Apply(inst *core.Instance, index int, today core.Date) error {
	due, err := c.DueDate(index)
	if err != nil {
		return err
	}
	next, err := c.NextDueDate(index)
	if err != nil {
		return err
	}

	inst.DueDate = due
	inst.NextDueDate = next
	inst.Status = c.status(due, today)
	return nil
}

func (c *DueDateChain) status(due, today core.Date) core.BillStatus {
	switch {
	case !c.LastPaidDate.IsZero() && !due.After(c.LastPaidDate):
		return core.BillStatusPaid
	case due.Before(today):
		return core.BillStatusOverdue
	default:
		return core.BillStatusPending
	}
}
