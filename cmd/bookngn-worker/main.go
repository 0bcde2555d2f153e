package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bookngn/internal/amqp"
	"bookngn/internal/backend"
	"bookngn/internal/cli"
	applog "bookngn/internal/log"
	"bookngn/internal/services"
	"bookngn/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting bookngn-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid sync backend configuration", "error", err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger.Logger).CreateMirror(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create remote mirror", "error", err, "backend", cfg.SyncBackend)
		os.Exit(1)
	}
	if mirror.Mirror == nil {
		logger.Info("Remote mirror disabled, nothing to sync", "backend", cfg.SyncBackend)
		return
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	processor := services.NewSyncProcessor(repo, mirror.Mirror, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   cfg.SyncMaxRetries,
		CleanupAge:   cfg.CleanupAge,
	})
	syncWorker := worker.NewSyncWorker(processor, worker.Schedule{Cleanup: cfg.CleanupSchedule})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on queue polling", "error", err)
			amqpClient = nil
		}
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := syncWorker.Stop(shutdownCtx); err != nil {
			logger.Error("Sync worker shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
		if err := mirror.Close(); err != nil {
			logger.Error("Failed to close remote mirror", "error", err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close SQLite repository", "error", err)
		}
	})

	// Items queued while the worker was down
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", "error", err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeSyncRequests(ctx, syncWorker.HandleSyncRequested)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	logger.Info("Worker running",
		"backend", cfg.SyncBackend,
		"sync_interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize,
		"amqp", amqpClient != nil)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
