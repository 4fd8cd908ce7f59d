package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"

	"github.com/robfig/cron/v3"
)

const metricsAddr = ":9091"

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentScheduler)
	logger.Info("Starting recurring-worker",
		"schedule", cfg.RecurringSchedule,
		"workers", cfg.RecurringWorkers,
		"max_steps", cfg.RecurringMaxSteps)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	factory, bcfg, backendRes := cli.InitBackend(ctx, logger, cfg)
	publisher := factory.CreatePublisher(ctx, bcfg)

	recorder := metrics.New()
	engine := cli.NewEngine(ctx, cfg, backendRes.Store, publisher, recorder, logger)

	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           recorder.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("Metrics server stopped", applog.FieldError, err)
		}
	}()

	sweep := func() {
		report, err := engine.Processor.SweepAll(ctx)
		if err != nil {
			logger.Error("Recurring sweep failed", applog.FieldError, err)
			return
		}
		logger.Info("Recurring sweep finished",
			applog.FieldCreated, report.InstancesCreated,
			applog.FieldErrors, report.ErrorCount,
			applog.FieldDuration, report.DurationMs)
	}

	scheduler := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := scheduler.AddFunc(cfg.RecurringSchedule, sweep); err != nil {
		logger.Error("Invalid recurring schedule", applog.FieldError, err, "schedule", cfg.RecurringSchedule)
		os.Exit(1)
	}

	logger.Info("Running initial recurring sweep")
	sweep()

	scheduler.Start()
	<-ctx.Done()

	cli.RunCleanup(logger, 30*time.Second, func(shutdownCtx context.Context) {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
		}
		_ = metricsSrv.Shutdown(shutdownCtx)
		engine.Stop()
		if publisher != nil {
			_ = publisher.Close()
		}
		if err := backendRes.Cleanup(); err != nil {
			logger.Warn("Failed to close store", applog.FieldError, err)
		}
	})
}
