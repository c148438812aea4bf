package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerspace/internal/amqp"
	"ledgerspace/internal/blob"
	"ledgerspace/internal/cli"
	"ledgerspace/internal/config"
	"ledgerspace/internal/log"
	"ledgerspace/internal/services"
	"ledgerspace/internal/sheets"
	gsheet "ledgerspace/internal/sheets/google"
	"ledgerspace/internal/sheets/memory"
	"ledgerspace/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting ledgerspace-worker", log.FieldOperation, log.OpStartup)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	// The worker only reads snapshots; the CLI owns writes.
	repo, blobs, err := cli.OpenRepository(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open snapshot repository", log.FieldError, err, log.FieldDriver, cfg.BlobDriver)
		os.Exit(1)
	}

	var exporter sheets.LedgerExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background(), logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			_ = blob.Close(blobs)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = memory.New(cfg.GoogleSheetPrefix)
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		_ = blob.Close(blobs)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(repo, exporter, logger)
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.ExportInterval,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
		if err := blob.Close(blobs); err != nil {
			logger.Warn("Failed to close blob store", log.FieldError, err)
		}
	})

	logger.Info("Performing startup export...")
	if err := syncWorker.StartupSync(ctx); err != nil {
		// the periodic export retries
		logger.Error("Startup export failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeWithRetry(gctx, syncWorker.HandleStateChanged)
	})
	g.Go(func() error {
		return processor.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
