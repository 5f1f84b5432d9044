// Command worker processes uploaded drawings queued by the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/blob"
	"github.com/dharsanguruparan/QCBoard/internal/config"
	"github.com/dharsanguruparan/QCBoard/internal/database"
	"github.com/dharsanguruparan/QCBoard/internal/drawings"
	"github.com/dharsanguruparan/QCBoard/internal/logging"
	"github.com/dharsanguruparan/QCBoard/internal/repository"
	"github.com/dharsanguruparan/QCBoard/internal/s3storage"
	"github.com/dharsanguruparan/QCBoard/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.DatabaseURL == "" || !cfg.UseRedis() {
		return errors.New("worker needs DATABASE_URL and REDIS_ADDR")
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	var blobs blob.Store
	if cfg.UseS3() {
		store, err := s3storage.New(cfg)
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		blobs = store
	} else {
		// Only works when the server shares QCBOARD_DATA_DIR with this host.
		if blobs, err = blob.NewLocal(cfg.DataDir); err != nil {
			return err
		}
	}

	svc := drawings.NewService(repository.NewStores(pool), blobs, cfg.MaxFileSize, logger.Named("drawings"))
	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.ProcessingPool,
		Logger:      logger.Named("asynq").Sugar(),
	})
	processor := worker.NewProcessor(svc, logger.Named("worker"))

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()
	logger.Info("worker started", zap.Int("concurrency", cfg.ProcessingPool))
	return server.Run(processor.Handler())
}
