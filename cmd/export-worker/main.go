package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/worker"

	"golang.org/x/time/rate"
)

// Sheets API write quota is 60 requests per minute per user.
const ledgerWritesPerSecond = 1

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting export-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for export-worker")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	_, _, backendRes := cli.InitBackend(ctx, logger, cfg)

	var ledger sheets.LedgerWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		ledger = memory.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to an in-memory ledger")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	exporter := worker.NewExportWorker(backendRes.Store, ledger,
		rate.NewLimiter(rate.Limit(ledgerWritesPerSecond), 5),
		logger.WithComponent(applog.ComponentWorker))

	caches := cache.NewManager(logger)
	caches.Register(exporter.Exported())
	caches.StartCleanup(ctx, time.Hour)

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- amqpClient.ConsumeInstanceCreated(ctx, exporter.HandleInstanceCreated)
	}()

	select {
	case <-ctx.Done():
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}
	cancel()

	cli.RunCleanup(logger, 30*time.Second, func(context.Context) {
		caches.Stop()
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
		if err := backendRes.Cleanup(); err != nil {
			logger.Warn("Failed to close store", applog.FieldError, err)
		}
	})
}
