package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"mahal/internal/amqp"
	"mahal/internal/backend"
	"mahal/internal/cli"
	"mahal/internal/log"
	"mahal/internal/sheets"
	gsheet "mahal/internal/sheets/google"
	memledger "mahal/internal/sheets/memory"
	"mahal/internal/worker"
)

const consumerPrefetch = 1

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting mahal-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	// The worker reads what the API wrote, so both must share a database.
	if backend.BackendType(cfg.DataBackend) != backend.SQLiteBackend {
		logger.Error("mahal-worker needs DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	startCtx := context.Background()
	beCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid data backend config", err, "backend", cfg.DataBackend)
	}
	be, err := backend.NewFactory(logger).CreateBackend(startCtx, beCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize data backend", err, "path", cfg.SQLiteDBPath)
	}

	var ledger sheets.Ledger
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(startCtx, cfg.GoogleSpreadsheetID, cfg.GoogleLedgerSheetName)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		ledger = client
		logger.Info("Google Sheets ledger initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleLedgerSheetName)
	} else {
		ledger = memledger.New()
		logger.Info("GOOGLE_SPREADSHEET_ID not set, using in-memory ledger")
	}

	syncWorker := worker.NewSyncWorker(be.Gateway, ledger, cfg.Normalizer(), cfg.SyncBatchSize)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
	} else {
		logger.Info("AMQP_URL not set, relying on periodic reconciliation only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	// Catch up on anything missed while the worker was down.
	if _, err := syncWorker.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", "error", err, log.FieldOperation, log.OpReconcile)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeWithReconnect(gctx, consumerPrefetch, syncWorker.HandleMessage)
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := syncWorker.Reconcile(gctx); err != nil {
					logger.Error("Periodic reconcile failed", "error", err, log.FieldOperation, log.OpReconcile)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Worker stopped", err)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
