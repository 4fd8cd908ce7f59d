package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	"golang.org/x/sync/errgroup"
)

// Sweep states, logged as the orchestrator moves through a run.
const (
	StateIdle        = "idle"
	StateScanning    = "scanning"
	StatePerTemplate = "per_template"
	StateAggregating = "aggregating"
)

// ProcessorConfig tunes a RecurringProcessor.
type ProcessorConfig struct {
	Workers    int
	MaxSteps   int
	RetryDelay time.Duration
}

// Option configures optional collaborators of a RecurringProcessor.
type Option func(*RecurringProcessor)

// WithPublisher publishes every created instance. Publish failures are
// logged and never fail generation.
func WithPublisher(p InstancePublisher) Option {
	return func(rp *RecurringProcessor) { rp.publisher = p }
}

func WithMetrics(m Metrics) Option {
	return func(rp *RecurringProcessor) { rp.metrics = m }
}

func WithLogger(l *applog.Logger) Option {
	return func(rp *RecurringProcessor) { rp.logger = l }
}

// RecurringProcessor materializes instances of recurring templates. It keeps
// no state between sweeps: every run recomputes each template's cursor from
// storage, so full and per-user sweeps may overlap freely.
type RecurringProcessor struct {
	store        RecurringStore
	clock        Clock
	materializer *Materializer
	publisher    InstancePublisher
	metrics      Metrics
	logger       *applog.Logger

	workers    int
	maxSteps   int
	retryDelay time.Duration
}

// NewRecurringProcessor creates a new recurring template processor
func NewRecurringProcessor(store RecurringStore, clock Clock, cfg ProcessorConfig, opts ...Option) *RecurringProcessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}

	p := &RecurringProcessor{
		store:        store,
		clock:        clock,
		materializer: NewMaterializer(store, cfg.RetryDelay),
		workers:      cfg.Workers,
		maxSteps:     cfg.MaxSteps,
		retryDelay:   cfg.RetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = applog.Default().WithComponent(applog.ComponentRecurring)
	}
	return p
}

// SweepAll processes the active templates of every user. It is the entry
// point of the periodic trigger.
func (p *RecurringProcessor) SweepAll(ctx context.Context) (SweepReport, error) {
	return p.sweep(ctx, "")
}

// SweepUser processes the active templates of one user.
func (p *RecurringProcessor) SweepUser(ctx context.Context, userID string) (SweepReport, error) {
	if strings.TrimSpace(userID) == "" {
		return SweepReport{}, core.ErrEmptyUser
	}
	return p.sweep(ctx, userID)
}

// GenerateForUser runs an on-demand sweep for userID. Templates that fail
// are described in the message; only a failure of the whole sweep is
// returned as an error.
func (p *RecurringProcessor) GenerateForUser(ctx context.Context, userID string) (GenerateResult, error) {
	report, err := p.SweepUser(ctx, userID)
	if err != nil {
		return GenerateResult{}, err
	}
	return newGenerateResult(report), nil
}

func (p *RecurringProcessor) sweep(ctx context.Context, userID string) (SweepReport, error) {
	if p.store == nil || p.clock == nil {
		return SweepReport{}, fmt.Errorf("processor not properly initialized")
	}

	scope := userID
	if scope == "" {
		scope = ScopeAll
	}
	started := time.Now()
	logger := p.logger.With(applog.FieldScope, scope)

	logger.DebugContext(ctx, "Sweep state", applog.FieldState, StateScanning)
	templates, err := retry(ctx, p.retryDelay, func(ctx context.Context) ([]core.Template, error) {
		return p.store.ListActiveTemplates(ctx, userID)
	})
	if err != nil {
		serr := &StorageError{Op: applog.OpListTpl, Err: err}
		logger.ErrorContext(ctx, "Sweep aborted: cannot list templates",
			applog.FieldError, serr,
			"error_type", applog.ErrorTypeStorage)
		logger.DebugContext(ctx, "Sweep state", applog.FieldState, StateIdle)
		return SweepReport{Scope: scope, StartedAt: started}, serr
	}

	logger.DebugContext(ctx, "Sweep state", applog.FieldState, StatePerTemplate, "templates", len(templates))

	var (
		mu      sync.Mutex
		results = make([]TemplateResult, 0, len(templates))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, t := range templates {
		g.Go(func() error {
			res := p.processTemplate(gctx, t)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.DebugContext(ctx, "Sweep state", applog.FieldState, StateAggregating)
	report := newSweepReport(scope, started, results)
	elapsed := time.Since(started)
	report.DurationMs = elapsed.Milliseconds()

	if p.metrics != nil {
		p.metrics.SweepCompleted(scope, elapsed, report.TemplatesProcessed, report.InstancesCreated,
			report.InstancesSkipped, report.TemplatesDeactivated, report.ErrorCount)
	}

	logger.InfoContext(ctx, "Recurring sweep complete",
		"templates", report.TemplatesProcessed,
		applog.FieldCreated, report.InstancesCreated,
		applog.FieldSkipped, report.InstancesSkipped,
		"deactivated", report.TemplatesDeactivated,
		applog.FieldErrors, report.ErrorCount,
		applog.FieldDuration, report.DurationMs)
	logger.DebugContext(ctx, "Sweep state", applog.FieldState, StateIdle)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sweep interrupted: %w", err)
	}
	return report, nil
}

// processTemplate runs the cursor, generator, materializer pipeline for one
// template. It never panics the batch: every failure ends up in the result.
func (p *RecurringProcessor) processTemplate(ctx context.Context, t core.Template) (res TemplateResult) {
	res = TemplateResult{TemplateID: t.ID, UserID: t.UserID, Kind: t.Kind}
	logger := p.logger.With(applog.FieldTemplateID, t.ID, applog.FieldUserID, t.UserID)

	defer func() {
		if r := recover(); r != nil {
			res.fail(fmt.Errorf("template %s: panic: %v", t.ID, r))
		}
		if res.err != nil {
			logger.ErrorContext(ctx, "Failed to process recurring template",
				applog.FieldError, res.err,
				"error_type", res.ErrorType,
				applog.FieldCreated, res.Created)
			if p.metrics != nil {
				p.metrics.TemplateFailed(res.ErrorType)
			}
		}
	}()

	if err := t.Validate(); err != nil {
		res.fail(&ValidationError{TemplateID: t.ID, Err: err})
		return res
	}

	today, err := retry(ctx, p.retryDelay, func(ctx context.Context) (core.Date, error) {
		return p.clock.Today(ctx, t.UserID)
	})
	if err != nil {
		res.fail(asStorageError(err, applog.OpToday, t.ID))
		return res
	}

	instances, err := retry(ctx, p.retryDelay, func(ctx context.Context) ([]core.Instance, error) {
		return p.store.ListInstances(ctx, t.ID)
	})
	if err != nil {
		res.fail(asStorageError(err, applog.OpListInst, t.ID))
		return res
	}

	cursor, err := NewScheduleCursor(t, instances, today)
	if err != nil {
		res.fail(err)
		return res
	}
	res.Boundary = cursor.Boundary.String()

	chain := NewDueDateChain(t)
	gen := NewCatchUpGenerator(cursor, p.maxSteps)
	for gen.Next() {
		c := gen.Candidate()
		inst, created, err := p.materializer.Materialize(ctx, t, c, chain, today)
		if err != nil {
			// Stop here so the sequence stays gap-free; the next run resumes.
			res.fail(err)
			return res
		}
		res.LastOccurrence = c.Date.String()
		if !created {
			res.Skipped++
			continue
		}

		res.Created++
		logger.DebugContext(ctx, "Materialized recurring instance",
			applog.FieldInstanceID, inst.ID,
			applog.FieldOccurrenceDate, inst.OccurrenceDate.String(),
			applog.FieldDueDate, inst.DueDate.String(),
			applog.FieldAmountCents, inst.Amount.Cents)
		if p.metrics != nil {
			p.metrics.InstanceCreated(string(inst.Kind))
		}
		p.publish(ctx, logger, inst)
	}
	if err := gen.Err(); err != nil {
		res.fail(fmt.Errorf("template %s: %w", t.ID, err))
		return res
	}

	materialized := cursor.HasInstances || res.Created+res.Skipped > 0
	if t.HasEnded(today) || (cursor.OneTime() && materialized) {
		_, err := retry(ctx, p.retryDelay, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.store.SetTemplateActive(ctx, t.ID, false)
		})
		if err != nil {
			res.fail(asStorageError(err, applog.OpDeactivate, t.ID))
			return res
		}
		res.Deactivated = true
		logger.InfoContext(ctx, "Recurring template deactivated",
			applog.FieldOperation, applog.OpDeactivate,
			applog.FieldBoundary, res.Boundary)
	}

	if res.Created > 0 {
		logger.InfoContext(ctx, "Created instances from recurring template",
			applog.FieldKind, t.Kind,
			applog.FieldFrequency, cursor.Frequency,
			applog.FieldCreated, res.Created,
			applog.FieldSkipped, res.Skipped,
			applog.FieldBoundary, res.Boundary)
	}
	return res
}

func (p *RecurringProcessor) publish(ctx context.Context, logger *applog.Logger, inst core.Instance) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishInstanceCreated(ctx, inst); err != nil {
		logger.WarnContext(ctx, "Failed to publish instance created event",
			applog.FieldInstanceID, inst.ID,
			applog.FieldError, err)
	}
}

func asStorageError(err error, op, templateID string) error {
	var se *StorageError
	if errors.As(err, &se) {
		if se.TemplateID == "" {
			se.TemplateID = templateID
		}
		return se
	}
	return &StorageError{Op: op, TemplateID: templateID, Err: err}
}
