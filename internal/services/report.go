package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fintrack/internal/core"
)

// ScopeAll is the report scope of a sweep over every user.
const ScopeAll = "all"

// TemplateResult is the outcome of processing one template in a sweep.
type TemplateResult struct {
	TemplateID     string         `json:"templateId"`
	UserID         string         `json:"userId"`
	Kind           core.EntryKind `json:"kind"`
	Created        int            `json:"created"`
	Skipped        int            `json:"skipped"`
	Deactivated    bool           `json:"deactivated"`
	Boundary       string         `json:"boundary,omitempty"`
	LastOccurrence string         `json:"lastOccurrence,omitempty"`
	Error          string         `json:"error,omitempty"`
	ErrorType      string         `json:"errorType,omitempty"`

	err error
}

// Err returns the error that stopped this template, if any.
func (r TemplateResult) Err() error { return r.err }

func (r *TemplateResult) fail(err error) {
	r.err = err
	r.Error = err.Error()
	r.ErrorType = errorType(err)
}

// TemplateError identifies a template that failed during a sweep.
type TemplateError struct {
	TemplateID string `json:"templateId"`
	UserID     string `json:"userId"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

// UserSummary aggregates a sweep's results for one user.
type UserSummary struct {
	UserID      string `json:"userId"`
	Templates   int    `json:"templates"`
	Created     int    `json:"created"`
	Skipped     int    `json:"skipped"`
	Deactivated int    `json:"deactivated"`
	Errors      int    `json:"errors"`
}

// SweepReport is the aggregate result of one sweep.
type SweepReport struct {
	Scope                string           `json:"scope"`
	StartedAt            time.Time        `json:"startedAt"`
	DurationMs           int64            `json:"durationMs"`
	TemplatesProcessed   int              `json:"templatesProcessed"`
	InstancesCreated     int              `json:"instancesCreated"`
	InstancesSkipped     int              `json:"instancesSkipped"`
	TemplatesDeactivated int              `json:"templatesDeactivated"`
	ErrorCount           int              `json:"errorCount"`
	Errors               []TemplateError  `json:"errors"`
	Templates            []TemplateResult `json:"templates"`
	Users                []UserSummary    `json:"users"`
}

func newSweepReport(scope string, startedAt time.Time, results []TemplateResult) SweepReport {
	sort.Slice(results, func(i, j int) bool {
		if results[i].UserID != results[j].UserID {
			return results[i].UserID < results[j].UserID
		}
		return results[i].TemplateID < results[j].TemplateID
	})

	report := SweepReport{
		Scope:     scope,
		StartedAt: startedAt,
		Errors:    []TemplateError{},
		Templates: results,
		Users:     []UserSummary{},
	}

	byUser := make(map[string]int)
	for _, r := range results {
		report.TemplatesProcessed++
		report.InstancesCreated += r.Created
		report.InstancesSkipped += r.Skipped

		idx, ok := byUser[r.UserID]
		if !ok {
			idx = len(report.Users)
			byUser[r.UserID] = idx
			report.Users = append(report.Users, UserSummary{UserID: r.UserID})
		}
		u := &report.Users[idx]
		u.Templates++
		u.Created += r.Created
		u.Skipped += r.Skipped

		if r.Deactivated {
			report.TemplatesDeactivated++
			u.Deactivated++
		}
		if r.err != nil {
			report.ErrorCount++
			u.Errors++
			report.Errors = append(report.Errors, TemplateError{
				TemplateID: r.TemplateID,
				UserID:     r.UserID,
				Type:       r.ErrorType,
				Message:    r.Error,
			})
		}
	}
	return report
}

// GenerateResult is returned to a user who triggers generation on demand.
type GenerateResult struct {
	CreatedCount int    `json:"createdCount"`
	Message      string `json:"message"`
}

func newGenerateResult(report SweepReport) GenerateResult {
	var b strings.Builder
	switch report.InstancesCreated {
	case 0:
		b.WriteString("No new recurring entries were due")
	case 1:
		b.WriteString("Generated 1 recurring entry")
	default:
		fmt.Fprintf(&b, "Generated %d recurring entries", report.InstancesCreated)
	}

	if report.ErrorCount > 0 {
		fmt.Fprintf(&b, "; %d of %d templates could not be processed:", report.ErrorCount, report.TemplatesProcessed)
		for _, e := range report.Errors {
			fmt.Fprintf(&b, " [%s] %s;", e.TemplateID, e.Message)
		}
		return GenerateResult{CreatedCount: report.InstancesCreated, Message: strings.TrimSuffix(b.String(), ";")}
	}
	return GenerateResult{CreatedCount: report.InstancesCreated, Message: b.String()}
}
