package services

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	"github.com/google/uuid"
)

// Materializer turns candidates into stored instances. Writes go through
// UpsertInstance, so a duplicate attempt is reported as not created rather
// than as an error.
type Materializer struct {
	store      RecurringStore
	retryDelay time.Duration
	now        func() time.Time
}

func NewMaterializer(store RecurringStore, retryDelay time.Duration) *Materializer {
	return &Materializer{store: store, retryDelay: retryDelay, now: time.Now}
}

// Materialize stores the instance of t for candidate c. chain is nil for
// non-bill templates. It reports whether a new instance was created.
func (m *Materializer) Materialize(ctx context.Context, t core.Template, c Candidate, chain *DueDateChain, today core.Date) (core.Instance, bool, error) {
	inst := core.NewInstance(t, c.Date)
	inst.ID = uuid.NewString()
	inst.CreatedAt = m.now().UTC()

	if chain != nil {
		if err := chain.Apply(&inst, c.Index, today); err != nil {
			return core.Instance{}, false, &ValidationError{TemplateID: t.ID, Err: err}
		}
	}

	created, err := retry(ctx, m.retryDelay, func(ctx context.Context) (bool, error) {
		return m.store.UpsertInstance(ctx, inst)
	})
	if errors.Is(err, core.ErrDuplicateInstance) {
		return inst, false, nil
	}
	if err != nil {
		return core.Instance{}, false, &StorageError{Op: applog.OpMaterialize, TemplateID: t.ID, Err: err}
	}
	return inst, created, nil
}
