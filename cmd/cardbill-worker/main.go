package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cardbill/internal/amqp"
	"cardbill/internal/cli"
	"cardbill/internal/config"
	"cardbill/internal/log"
	ports "cardbill/internal/sheets"
	gsheet "cardbill/internal/sheets/google"
	memsheet "cardbill/internal/sheets/memory"
	"cardbill/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting cardbill-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	b := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := b.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	writer, err := newSheetWriter(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	syncWorker := worker.NewSyncWorker(b.Store, writer, logger)

	scheduler, err := worker.NewReconcileScheduler(cfg.ReconcileSchedule, b.Purchases, logger,
		worker.WithRunTimeout(cfg.ReconcileTimeout),
		worker.WithAfterRun(func(ctx context.Context) error {
			return syncWorker.StartupSyncCheck(ctx, time.Now())
		}))
	if err != nil {
		logger.Error("Failed to create reconcile scheduler", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx, time.Now()); err != nil {
		// Not fatal: the next event or reconciliation catches up.
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	if b.Events != nil {
		g.Go(func() error {
			return b.Events.ConsumeInvoiceEvents(gctx, func(ctx context.Context, msg *amqp.InvoiceRefreshedMessage) error {
				return syncWorker.HandleInvoiceMessage(ctx, msg)
			})
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP client available")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}

// newSheetWriter returns the Google Sheets client, or an in-process sheet
// when no spreadsheet is configured.
func newSheetWriter(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.InvoiceWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		InvoicesSheet:   cfg.GoogleInvoicesSheet,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
