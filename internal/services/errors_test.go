package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ValidationError{TemplateID: "t", Err: core.ErrMissingStartDate}, applog.ErrorTypeValidation},
		{fmt.Errorf("wrapped: %w", &StorageError{Op: "upsert", Err: errTransient}), applog.ErrorTypeStorage},
		{fmt.Errorf("template t: %w", ErrIterationCap), applog.ErrorTypeCap},
		{ErrNoProgress, applog.ErrorTypeCap},
		{errors.New("boom"), applog.ErrorTypeInternal},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds on second attempt", func(t *testing.T) {
		calls := 0
		v, err := retry(context.Background(), time.Millisecond, func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, errTransient
			}
			return 42, nil
		})
		if err != nil || v != 42 || calls != 2 {
			t.Fatalf("retry() = %d, %v after %d calls", v, err, calls)
		}
	})

	t.Run("gives up after one retry", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), 0, func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
		if !errors.Is(err, errTransient) || calls != 2 {
			t.Fatalf("retry() error = %v after %d calls", err, calls)
		}
	})

	t.Run("duplicate is final", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), 0, func(context.Context) (bool, error) {
			calls++
			return false, core.ErrDuplicateInstance
		})
		if !errors.Is(err, core.ErrDuplicateInstance) || calls != 1 {
			t.Fatalf("retry() error = %v after %d calls", err, calls)
		}
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, err := retry(ctx, time.Hour, func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
		if !errors.Is(err, context.Canceled) || calls != 1 {
			t.Fatalf("retry() error = %v after %d calls", err, calls)
		}
	})
}
