package services

import (
	"fmt"

	"fintrack/internal/core"
)

// DefaultMaxSteps bounds how many candidates one run may produce for a
// single template.
const DefaultMaxSteps = 365

// Candidate is one occurrence waiting to be materialized.
type Candidate struct {
	Index int
	Date  core.Date
}

// CatchUpGenerator yields every missing occurrence between a cursor and its
// boundary, in order. Use it like bufio.Scanner:
//
//	for gen.Next() {
//		c := gen.Candidate()
//	}
//	if err := gen.Err(); err != nil { ... }
type CatchUpGenerator struct {
	cursor   ScheduleCursor
	maxSteps int

	next  int
	steps int
	prev  core.Date
	cur   Candidate
	err   error
	done  bool
}

func NewCatchUpGenerator(cursor ScheduleCursor, maxSteps int) *CatchUpGenerator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &CatchUpGenerator{
		cursor:   cursor,
		maxSteps: maxSteps,
		next:     cursor.NextIndex,
		prev:     cursor.LastDate,
	}
}

// Next advances to the next candidate. It returns false when the boundary is
// passed or an error stops generation.
func (g *CatchUpGenerator) Next() bool {
	if g.done || g.err != nil {
		return false
	}
	if g.cursor.Exhausted() || (g.cursor.OneTime() && g.steps > 0) {
		g.done = true
		return false
	}

	d, err := core.AddPeriods(g.cursor.Anchor, g.cursor.Frequency, g.next)
	if err != nil {
		g.err = err
		return false
	}
	if d.After(g.cursor.Boundary) {
		g.done = true
		return false
	}
	if g.steps >= g.maxSteps {
		g.err = fmt.Errorf("%w: %d steps, next pending occurrence %s", ErrIterationCap, g.maxSteps, d)
		return false
	}
	if g.steps > 0 && !d.After(g.prev) {
		g.err = fmt.Errorf("%w: %s after %s (%s)", ErrNoProgress, d, g.prev, g.cursor.Frequency)
		return false
	}

	g.cur = Candidate{Index: g.next, Date: d}
	g.prev = d
	g.next++
	g.steps++
	return true
}

// Candidate returns the candidate produced by the last successful Next.
func (g *CatchUpGenerator) Candidate() Candidate {
	return g.cur
}

// Err returns the error that stopped generation, if any.
func (g *CatchUpGenerator) Err() error {
	return g.err
}

// Steps returns how many candidates have been produced.
func (g *CatchUpGenerator) Steps() int {
	return g.steps
}
