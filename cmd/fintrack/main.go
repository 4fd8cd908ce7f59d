package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)
	logger.Info("Starting fintrack", "backend", cfg.DataBackend, "port", cfg.Port)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	factory, bcfg, backendRes := cli.InitBackend(ctx, logger, cfg)
	publisher := factory.CreatePublisher(ctx, bcfg)

	recorder := metrics.New()
	engine := cli.NewEngine(ctx, cfg, backendRes.Store, publisher, recorder, logger)
	templates := services.NewTemplateService(backendRes.Store, engine.Clock,
		logger.WithComponent(applog.ComponentRecurring),
		services.WithTemplateClock(engine.Clock))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Recurring: engine.Processor,
		Templates: templates,
		Ready:     backendRes.Store,
		Metrics:   recorder.Handler(),
		Observer:  recorder,
		Logger:    logger.WithComponent(applog.ComponentHTTP),
	}, apphttp.Options{OnDemandPerMinute: cfg.OnDemandRatePerMinute})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("HTTP server failed", applog.FieldError, err)
	}

	cli.RunCleanup(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", applog.FieldError, err)
		}
		engine.Stop()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", applog.FieldError, err)
			}
		}
		if err := backendRes.Cleanup(); err != nil {
			logger.Warn("Failed to close store", applog.FieldError, err)
		}
	})
}
