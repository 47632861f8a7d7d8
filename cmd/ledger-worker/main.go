package main

import (
	"context"
	"errors"
	"os"
	"time"

	"moneymanager/internal/amqp"
	"moneymanager/internal/cli"
	"moneymanager/internal/config"
	applog "moneymanager/internal/log"
	gsheet "moneymanager/internal/sheets/google"
	"moneymanager/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker, os.Stdout)
	logger.Info("Starting ledger-worker")

	cfg := cli.MustLoadConfig(logger, (*config.Config).ValidateWorker)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	root, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger, err := gsheet.New(root, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(root, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, ledger, cfg.SyncBatchSize, logger)

	ctx, done := cli.GracefulShutdown(root, logger, shutdownTimeout, func(context.Context) {
		logger.Info("Shutting down worker...")
		syncWorker.Stop()
	})

	// Entries recorded while the worker was down, or whose publish failed.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := syncWorker.Start(ctx, cfg.SyncInterval); err != nil {
		logger.Error("Failed to start sync sweep", "error", err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeJournalSync(ctx, syncWorker.HandleMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
