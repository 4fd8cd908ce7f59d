package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	"github.com/google/uuid"
)

// TemplateRepository is the storage behind user-facing template operations.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t *core.Template) error
	GetTemplate(ctx context.Context, id string) (core.Template, error)
	ListTemplates(ctx context.Context, userID string) ([]core.Template, error)
	DeleteTemplate(ctx context.Context, userID, id string) error
	ListInstances(ctx context.Context, templateID string) ([]core.Instance, error)
	DeleteInstance(ctx context.Context, userID, id string) error
	UpdateTemplate(ctx context.Context, t core.Template) error
	InsertInstance(ctx context.Context, inst *core.Instance) error
	SetUserTimezone(ctx context.Context, userID, timezone string) error
}

// TimezoneInvalidator drops cached timezone state for a user.
type TimezoneInvalidator interface {
	Forget(userID string)
}

// TemplateService validates and stores user-owned templates.
type TemplateService struct {
	repo   TemplateRepository
	zones  TimezoneInvalidator
	clock  Clock
	logger *applog.Logger
}

// TemplateOption configures optional collaborators of a TemplateService.
type TemplateOption func(*TemplateService)

// WithTemplateClock sets the clock used to derive the status of manually
// added bill instances. Without it the UTC calendar day is used.
func WithTemplateClock(c Clock) TemplateOption {
	return func(s *TemplateService) { s.clock = c }
}

func NewTemplateService(repo TemplateRepository, zones TimezoneInvalidator, logger *applog.Logger, opts ...TemplateOption) *TemplateService {
	if logger == nil {
		logger = applog.Default()
	}
	s := &TemplateService{repo: repo, zones: zones, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTemplate validates t and stores it for userID. New templates are
// active; bills start in the pending state.
func (s *TemplateService) CreateTemplate(ctx context.Context, userID string, t core.Template) (core.Template, error) {
	t.ID = ""
	t.UserID = strings.TrimSpace(userID)
	t.Active = true
	if t.Kind == "" {
		t.Kind = core.KindTransaction
	}
	if err := normalizeTemplate(&t); err != nil {
		return core.Template{}, err
	}
	if err := s.repo.CreateTemplate(ctx, &t); err != nil {
		return core.Template{}, fmt.Errorf("create template: %w", err)
	}

	s.logger.InfoContext(ctx, "Recurring template created",
		applog.FieldTemplateID, t.ID,
		applog.FieldUserID, t.UserID,
		applog.FieldKind, t.Kind,
		applog.FieldFrequency, t.ScheduleFrequency())
	return t, nil
}

// UpdateTemplate replaces the editable fields of a template owned by
// userID. The kind cannot change. Existing instances are snapshots and keep
// their values; generation resumes after the newest one. An edit
// reactivates the template, and the next run deactivates it again if its
// schedule is already exhausted.
func (s *TemplateService) UpdateTemplate(ctx context.Context, userID, id string, t core.Template) (core.Template, error) {
	cur, err := s.ownedTemplate(ctx, userID, id)
	if err != nil {
		return core.Template{}, err
	}
	if t.Kind == "" {
		t.Kind = cur.Kind
	}
	if t.Kind != cur.Kind {
		return core.Template{}, fmt.Errorf("%w: kind cannot change from %s to %s", ErrInvalidInput, cur.Kind, t.Kind)
	}

	t.ID, t.UserID, t.CreatedAt = cur.ID, cur.UserID, cur.CreatedAt
	t.Active = true
	if t.IsBill() && t.Status == "" {
		t.Status = cur.Status
	}
	if err := normalizeTemplate(&t); err != nil {
		return core.Template{}, err
	}
	if err := s.repo.UpdateTemplate(ctx, t); err != nil {
		return core.Template{}, fmt.Errorf("update template: %w", err)
	}

	s.logger.InfoContext(ctx, "Recurring template updated",
		applog.FieldTemplateID, t.ID,
		applog.FieldUserID, t.UserID,
		applog.FieldFrequency, t.ScheduleFrequency())
	return s.repo.GetTemplate(ctx, id)
}

// CreateInstance adds a manual instance of a template on date, typically to
// restore a deleted occurrence. The date must fall inside the template's
// schedule window and not after its newest instance: generation resumes
// after the newest instance, so a later manual date would skip occurrences.
// A date that already has an instance is rejected with
// core.ErrDuplicateInstance. Bills get the due date of the period the date
// falls in.
func (s *TemplateService) CreateInstance(ctx context.Context, userID, templateID string, date core.Date) (core.Instance, error) {
	t, err := s.ownedTemplate(ctx, userID, templateID)
	if err != nil {
		return core.Instance{}, err
	}
	if date.IsZero() {
		return core.Instance{}, fmt.Errorf("%w: occurrence date is required", ErrInvalidInput)
	}
	if date.Before(t.StartDate) || (!t.EndDate.IsZero() && date.After(t.EndDate)) {
		return core.Instance{}, fmt.Errorf("%w: %s is outside the template schedule", ErrInvalidInput, date)
	}
	existing, err := s.repo.ListInstances(ctx, t.ID)
	if err != nil {
		return core.Instance{}, fmt.Errorf("list instances: %w", err)
	}
	if len(existing) == 0 || date.After(existing[0].OccurrenceDate) {
		return core.Instance{}, fmt.Errorf("%w: %s is after the newest generated instance; run generation first",
			ErrInvalidInput, date)
	}

	inst := core.NewInstance(t, date)
	inst.ID = uuid.NewString()
	inst.CreatedAt = time.Now().UTC()

	if chain := NewDueDateChain(t); chain != nil {
		idx, err := core.PeriodIndex(t.StartDate, date, t.ScheduleFrequency())
		if err != nil {
			return core.Instance{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if err := chain.Apply(&inst, idx, s.today(ctx, t.UserID)); err != nil {
			return core.Instance{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	if err := s.repo.InsertInstance(ctx, &inst); err != nil {
		return core.Instance{}, err
	}

	s.logger.InfoContext(ctx, "Manual instance created",
		applog.FieldInstanceID, inst.ID,
		applog.FieldTemplateID, t.ID,
		applog.FieldUserID, t.UserID,
		applog.FieldOccurrenceDate, inst.OccurrenceDate.String())
	return inst, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context, userID string) ([]core.Template, error) {
	return s.repo.ListTemplates(ctx, userID)
}

// DeleteTemplate removes a template and every instance it produced.
func (s *TemplateService) DeleteTemplate(ctx context.Context, userID, id string) error {
	return s.repo.DeleteTemplate(ctx, userID, id)
}

// ListInstances returns the instances of a template owned by userID.
func (s *TemplateService) ListInstances(ctx context.Context, userID, templateID string) ([]core.Instance, error) {
	if _, err := s.ownedTemplate(ctx, userID, templateID); err != nil {
		return nil, err
	}
	return s.repo.ListInstances(ctx, templateID)
}

// DeleteInstance removes one instance. Its template keeps generating; the
// deleted date comes back only if it was the newest one.
func (s *TemplateService) DeleteInstance(ctx context.Context, userID, id string) error {
	return s.repo.DeleteInstance(ctx, userID, id)
}

// SetTimezone stores the IANA timezone used to compute userID's today.
func (s *TemplateService) SetTimezone(ctx context.Context, userID, timezone string) error {
	timezone = strings.TrimSpace(timezone)
	if _, err := time.LoadLocation(timezone); err != nil || timezone == "" {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, timezone)
	}
	if err := s.repo.SetUserTimezone(ctx, userID, timezone); err != nil {
		return err
	}
	if s.zones != nil {
		s.zones.Forget(userID)
	}

	s.logger.InfoContext(ctx, "User timezone updated",
		applog.FieldUserID, userID,
		"timezone", timezone)
	return nil
}

func (s *TemplateService) ownedTemplate(ctx context.Context, userID, id string) (core.Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return core.Template{}, err
	}
	if t.UserID != strings.TrimSpace(userID) {
		return core.Template{}, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *TemplateService) today(ctx context.Context, userID string) core.Date {
	if s.clock != nil {
		if d, err := s.clock.Today(ctx, userID); err == nil {
			return d
		}
	}
	return core.DateOf(time.Now().UTC())
}

// normalizeTemplate trims user text, clears bill-only fields on
// transactions and validates the result.
func normalizeTemplate(t *core.Template) error {
	t.Description = strings.TrimSpace(t.Description)
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	if t.IsBill() {
		if t.Status == "" {
			t.Status = core.BillStatusPending
		}
	} else {
		t.DueDate, t.BillFrequency, t.LastPaidDate, t.Status = core.Date{}, "", core.Date{}, ""
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
