package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"

	"golang.org/x/time/rate"
)

// InstanceGetter loads a materialized instance by id.
type InstanceGetter interface {
	GetInstance(ctx context.Context, id string) (core.Instance, error)
}

// Redeliveries arrive within minutes of the first attempt; a day of ids is
// far more than the broker ever replays.
const (
	exportedCacheSize = 10000
	exportedCacheTTL  = 24 * time.Hour
)

// ExportWorker copies newly created instances to the external ledger.
type ExportWorker struct {
	store   InstanceGetter
	ledger  sheets.LedgerWriter
	limiter *rate.Limiter
	logger  *applog.Logger

	// exported maps instance id to ledger ref for rows already appended.
	exported *cache.LRUCache[string]
}

// NewExportWorker creates a worker. A nil limiter means appends are not
// throttled.
func NewExportWorker(store InstanceGetter, ledger sheets.LedgerWriter, limiter *rate.Limiter, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.Default().WithComponent(applog.ComponentWorker)
	}
	return &ExportWorker{
		store:   store,
		ledger:  ledger,
		limiter: limiter,
		logger:  logger,

		exported: cache.NewLRUCache[string](exportedCacheSize, exportedCacheTTL),
	}
}

// Exported returns the cache of already exported instance ids so its
// expired entries can be evicted by a cache.Manager.
func (w *ExportWorker) Exported() *cache.LRUCache[string] {
	return w.exported
}

// HandleInstanceCreated processes a single instance created message from AMQP.
// Messages whose instance no longer exists, or belongs to another user, are
// dropped; anything else that fails is retried by the broker. A redelivered
// message for an instance this worker already exported is acknowledged
// without a second append.
func (w *ExportWorker) HandleInstanceCreated(ctx context.Context, msg *amqp.InstanceCreatedMessage) error {
	logger := w.logger.With(
		applog.FieldInstanceID, msg.InstanceID,
		applog.FieldTemplateID, msg.TemplateID,
		applog.FieldUserID, msg.UserID)

	if ref, ok := w.exported.Get(msg.InstanceID); ok {
		logger.DebugContext(ctx, "Instance already exported, skipping redelivery",
			"ledger_ref", ref)
		return nil
	}

	logger.DebugContext(ctx, "Processing instance created message",
		applog.FieldOccurrenceDate, msg.OccurrenceDate)

	inst, err := w.store.GetInstance(ctx, msg.InstanceID)
	if errors.Is(err, core.ErrNotFound) {
		logger.WarnContext(ctx, "Instance no longer exists, skipping export")
		return fmt.Errorf("instance %s: %w", msg.InstanceID, amqp.ErrDrop)
	}
	if err != nil {
		return fmt.Errorf("get instance from storage: %w", err)
	}
	if msg.UserID != "" && inst.UserID != msg.UserID {
		logger.WarnContext(ctx, "Instance owner does not match message, skipping export",
			"owner", inst.UserID)
		return fmt.Errorf("instance %s owner mismatch: %w", msg.InstanceID, amqp.ErrDrop)
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for ledger quota: %w", err)
		}
	}

	ref, err := w.ledger.AppendInstance(ctx, inst)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to append instance to ledger",
			applog.FieldOperation, applog.OpExport,
			applog.FieldError, err)
		return fmt.Errorf("append to ledger: %w", err)
	}
	w.exported.Set(inst.ID, ref)

	logger.InfoContext(ctx, "Exported instance to ledger",
		applog.FieldOperation, applog.OpExport,
		"ledger_ref", ref,
		applog.FieldKind, inst.Kind,
		applog.FieldAmountCents, inst.Amount.Cents)
	return nil
}
