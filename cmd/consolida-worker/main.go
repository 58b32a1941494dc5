package main

import (
	"context"
	"errors"
	"os"
	"time"

	"consolida/internal/amqp"
	"consolida/internal/cli"
	"consolida/internal/config"
	"consolida/internal/log"
	"consolida/internal/services"
	gsheet "consolida/internal/sheets/google"
	"consolida/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)
	cfg = cli.LoadAndValidateConfig(logger)

	logger.Info("Starting consolida-worker", "db", cfg.SQLiteDBPath)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	creds, err := cfg.ServiceAccountJSON()
	if err != nil {
		logger.Error("Google credentials unavailable", log.FieldError, err)
		os.Exit(1)
	}
	target, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		AccountsSheet:   cfg.AccountsSheetName,
		CredentialsJSON: creds,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(repo, target, logger)
	processor := services.NewSyncProcessor(repo, syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	}, logger)

	// The broker is optional; without it the poller alone drains pending work.
	var client *amqp.Client
	if cfg.AMQPURL != "" {
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Warn("AMQP_URL not set, relying on polling only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := processor.Stop(stopCtx); err != nil {
			logger.Warn("Sync processor stop error", log.FieldError, err)
		}
		if client != nil {
			if err := client.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Warn("SQLite close error", log.FieldError, err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	if client != nil {
		go func() {
			err := client.ConsumeSync(ctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption stopped", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
