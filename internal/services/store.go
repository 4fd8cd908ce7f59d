package services

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// RecurringStore is the persistence the engine consumes. UpsertInstance
// must enforce the (template, occurrence date, user) key itself.
type RecurringStore interface {
	// ListActiveTemplates lists active auto-materializing templates. An
	// empty userID means every user.
	ListActiveTemplates(ctx context.Context, userID string) ([]core.Template, error)
	// ListInstances returns a template's instances, newest first.
	ListInstances(ctx context.Context, templateID string) ([]core.Instance, error)
	UpsertInstance(ctx context.Context, inst core.Instance) (created bool, err error)
	SetTemplateActive(ctx context.Context, templateID string, active bool) error
}

// TimezoneSource resolves the IANA timezone a user's calendar day is
// computed in. An empty name means the user has none configured.
type TimezoneSource interface {
	UserTimezone(ctx context.Context, userID string) (string, error)
}

// InstancePublisher is told about every newly created instance.
type InstancePublisher interface {
	PublishInstanceCreated(ctx context.Context, inst core.Instance) error
}

// Metrics receives engine counters. A nil Metrics is valid.
type Metrics interface {
	InstanceCreated(kind string)
	TemplateFailed(errorType string)
	SweepCompleted(scope string, duration time.Duration, processed, created, skipped, deactivated, failed int)
}
