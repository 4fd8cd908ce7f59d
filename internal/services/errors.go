package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

var (
	// ErrIterationCap means a single run produced more candidates than the
	// configured step limit. Work done before the cap is kept.
	ErrIterationCap = errors.New("iteration cap reached")

	// ErrNoProgress means a frequency step returned a date that is not
	// after the previous one.
	ErrNoProgress = errors.New("frequency step did not advance")

	// ErrInvalidInput wraps rejected user input.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError marks a template that cannot be processed as stored.
// It is fatal for that template only.
type ValidationError struct {
	TemplateID string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template %s is invalid: %v", e.TemplateID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError wraps a failed store round-trip after its retry.
type StorageError struct {
	Op         string
	TemplateID string
	Err        error
}

func (e *StorageError) Error() string {
	if e.TemplateID == "" {
		return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s failed for template %s: %v", e.Op, e.TemplateID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// errorType maps an engine error to its log category.
func errorType(err error) string {
	var (
		ve *ValidationError
		se *StorageError
	)
	switch {
	case errors.As(err, &ve):
		return applog.ErrorTypeValidation
	case errors.As(err, &se):
		return applog.ErrorTypeStorage
	case errors.Is(err, ErrIterationCap), errors.Is(err, ErrNoProgress):
		return applog.ErrorTypeCap
	default:
		return applog.ErrorTypeInternal
	}
}

// retry runs fn and, on failure, once more after delay. Duplicate-instance
// and not-found results are final and never retried.
func retry[T any](ctx context.Context, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || errors.Is(err, core.ErrDuplicateInstance) || errors.Is(err, core.ErrNotFound) {
		return v, err
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return fn(ctx)
}
