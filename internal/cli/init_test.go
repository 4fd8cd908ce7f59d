package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

func TestRunCleanupCompletes(t *testing.T) {
	called := false
	RunCleanup(applog.Discard(), time.Second, func(context.Context) { called = true })
	if !called {
		t.Fatal("cleanup was not called")
	}
}

func TestRunCleanupTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	RunCleanup(applog.Discard(), 20*time.Millisecond, func(ctx context.Context) {
		select {
		case <-release:
		case <-time.After(time.Second):
		}
	})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("RunCleanup did not honor the timeout: %v", elapsed)
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(applog.Discard())
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}

func TestNewEngineGenerates(t *testing.T) {
	sqliteRepo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer sqliteRepo.Close()

	stores := []struct {
		name  string
		store backend.Store
	}{
		{"memory", memory.New()},
		{"sqlite", sqliteRepo},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := &config.Config{
				DataBackend:       tt.name,
				RecurringWorkers:  2,
				RecurringMaxSteps: 10,
				DefaultTimezone:   "UTC",
			}
			today := core.DateOf(time.Now().UTC())
			tpl := core.Template{
				UserID:          "u1",
				Kind:            core.KindTransaction,
				Frequency:       core.Daily,
				StartDate:       today,
				AutoMaterialize: true,
				Active:          true,
				Description:     "Coffee",
				Amount:          core.Money{Cents: 150},
			}
			if err := tt.store.CreateTemplate(ctx, &tpl); err != nil {
				t.Fatalf("CreateTemplate() error = %v", err)
			}

			engine := NewEngine(ctx, cfg, tt.store, nil, metrics.New(), applog.Discard())
			defer engine.Stop()

			res, err := engine.Processor.GenerateForUser(ctx, "u1")
			if err != nil {
				t.Fatalf("GenerateForUser() error = %v", err)
			}
			if res.CreatedCount < 1 {
				t.Fatalf("CreatedCount = %d, want at least 1 (%s)", res.CreatedCount, res.Message)
			}
			instances, err := tt.store.ListInstances(ctx, tpl.ID)
			if err != nil || len(instances) != res.CreatedCount {
				t.Fatalf("stored instances = %d, %v; want %d", len(instances), err, res.CreatedCount)
			}
		})
	}
}
