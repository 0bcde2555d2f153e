package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"bookngn/internal/amqp"
	"bookngn/internal/auth"
	"bookngn/internal/backend"
	"bookngn/internal/cache"
	"bookngn/internal/cli"
	"bookngn/internal/config"
	apphttp "bookngn/internal/http"
	applog "bookngn/internal/log"
	"bookngn/internal/services"
	"bookngn/internal/storage"
	"bookngn/internal/tax"
)

const (
	shutdownTimeout  = 30 * time.Second
	taxCacheSize     = 1000
	cacheSweepPeriod = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateServerConfig(logger)

	rules, err := cli.LoadTaxRules(cfg.TaxRulesFile)
	if err != nil {
		logger.Error("Failed to load tax rules", "error", err, "path", cfg.TaxRulesFile)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	ready := []apphttp.ReadinessCheck{{Name: "sqlite", Check: repo.Ping}}

	// Tax results: Redis when configured so every replica shares one cache
	var (
		taxCache    cache.Cache[services.TaxReport]
		redisClient *redis.Client
		cacheMgr    = cache.NewManager()
	)
	if cfg.RedisAddr != "" {
		redisClient = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisDB)
		rc := cache.NewRedisCache[services.TaxReport](redisClient, "bookngn", cfg.TaxCacheTTL)
		taxCache = rc
		ready = append(ready, apphttp.ReadinessCheck{Name: "redis", Check: rc.Ping})
		logger.Info("Using Redis tax cache", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	} else {
		lru := cache.NewLRUCache[services.TaxReport](taxCacheSize, cfg.TaxCacheTTL)
		cacheMgr.Register(lru)
		cacheMgr.StartCleanup(cacheSweepPeriod)
		taxCache = lru
	}

	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The queue poller still picks the change up; only the nudge is lost
			logger.Warn("AMQP unavailable, relying on queue polling", "error", err)
		} else {
			publisher = amqpClient
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	taxService := services.NewTaxService(repo, tax.NewEngine(rules), taxCache)
	ledger := services.NewLedgerService(repo, publisher, taxService)
	reports := services.NewReportService(repo, taxService)

	processor, mirror := newSyncProcessor(logger, cfg, repo)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   ledger,
		Tax:      taxService,
		Reports:  reports,
		Sync:     processor,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Ready:    ready,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if processor.IsRunning() {
			if err := processor.Stop(shutdownCtx); err != nil {
				logger.Error("Sync processor shutdown error", "error", err)
			}
		}
		if err := mirror.Close(); err != nil {
			logger.Error("Failed to close remote mirror", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Error("Failed to close Redis client", "error", err)
			}
		}
		cacheMgr.Stop()
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close SQLite repository", "error", err)
		}
	})

	if cfg.SyncInProcess && mirror.Mirror != nil {
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start sync processor", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Starting bookngn server",
		"port", cfg.Port,
		"sync_backend", cfg.SyncBackend,
		"sync_in_process", cfg.SyncInProcess,
		"tax_rules", rulesSource(cfg))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// newSyncProcessor builds the processor behind /api/sync. It only pushes to the
// remote mirror when SYNC_IN_PROCESS is set; otherwise the worker owns the queue
// and the server uses the processor for stats and retries alone.
func newSyncProcessor(logger *applog.Logger, cfg *config.Config, repo *storage.SQLiteRepository) (*services.SyncProcessor, *backend.Result) {
	procCfg := services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   cfg.SyncMaxRetries,
		CleanupAge:   cfg.CleanupAge,
	}
	if !cfg.SyncInProcess {
		return services.NewSyncProcessor(repo, nil, procCfg), &backend.Result{}
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid sync backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateMirror(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create remote mirror", "error", err, "backend", cfg.SyncBackend)
		os.Exit(1)
	}
	return services.NewSyncProcessor(repo, result.Mirror, procCfg), result
}

func rulesSource(cfg *config.Config) string {
	if cfg.TaxRulesFile == "" {
		return "embedded"
	}
	return cfg.TaxRulesFile
}
