package cli

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
)

const (
	locationCacheSize = 1024
	locationCacheTTL  = 15 * time.Minute
)

// Engine is the recurring processor together with the clock and cache
// housekeeping it depends on.
type Engine struct {
	Processor *services.RecurringProcessor
	Clock     *services.ZoneClock
	caches    *cache.Manager
}

// NewEngine wires the recurring processor over store. publisher and
// recorder may be nil.
func NewEngine(ctx context.Context, cfg *config.Config, store backend.Store, publisher *amqp.Client, recorder *metrics.Recorder, logger *applog.Logger) *Engine {
	locations := cache.NewLRUCache[*time.Location](locationCacheSize, locationCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(locations)
	caches.StartCleanup(ctx, locationCacheTTL)

	clock := services.NewZoneClock(store, cfg.Location(), locations, logger.WithComponent(applog.ComponentRecurring))

	opts := []services.Option{
		services.WithLogger(logger.WithComponent(applog.ComponentRecurring)),
	}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}
	if recorder != nil {
		opts = append(opts, services.WithMetrics(recorder))
	}

	proc := services.NewRecurringProcessor(store, clock, services.ProcessorConfig{
		Workers:    cfg.RecurringWorkers,
		MaxSteps:   cfg.RecurringMaxSteps,
		RetryDelay: cfg.RecurringRetryDelay,
	}, opts...)

	return &Engine{Processor: proc, Clock: clock, caches: caches}
}

// Stop ends the cache cleanup loop.
func (e *Engine) Stop() {
	e.caches.Stop()
}
