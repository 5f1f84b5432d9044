// Command server runs the QCBoard HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/QCBoard/internal/api"
	"github.com/dharsanguruparan/QCBoard/internal/blob"
	"github.com/dharsanguruparan/QCBoard/internal/config"
	"github.com/dharsanguruparan/QCBoard/internal/database"
	"github.com/dharsanguruparan/QCBoard/internal/drawings"
	"github.com/dharsanguruparan/QCBoard/internal/logging"
	"github.com/dharsanguruparan/QCBoard/internal/processing"
	"github.com/dharsanguruparan/QCBoard/internal/procore"
	"github.com/dharsanguruparan/QCBoard/internal/queue"
	"github.com/dharsanguruparan/QCBoard/internal/repository"
	"github.com/dharsanguruparan/QCBoard/internal/s3storage"
	"github.com/dharsanguruparan/QCBoard/internal/signing"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
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
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	stores := storage.NewMemoryStores()
	var conns procore.ConnectionStore = procore.NewMemoryConnections()
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		stores = repository.NewStores(pool)
		conns = repository.NewConnections(pool)
		logger.Info("using postgres storage")
	} else {
		logger.Info("using in-memory storage")
	}

	if cfg.SeedFile != "" {
		seed, err := storage.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, stores); err != nil {
			return err
		}
		logger.Info("seed applied", zap.String("file", cfg.SeedFile), zap.Any("counts", seed.Counts()))
	}

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	var states procore.StateStore = procore.NewMemoryStateStore(procore.StateTTL)
	if cfg.UseRedis() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		states = procore.NewRedisStateStore(rdb, procore.StateTTL)
	}
	pc := procore.NewService(procore.Config{
		ClientID:     cfg.ProcoreClientID,
		ClientSecret: cfg.ProcoreClientSecret,
		RedirectURI:  cfg.ProcoreRedirectURI,
		LoginURL:     cfg.ProcoreLoginURL,
		APIURL:       cfg.ProcoreAPIURL,
		FrontendURL:  cfg.FrontendURL,
		Timeout:      cfg.ProcoreTimeout,
	}, states, conns, stores, logger.Named("procore"))

	svc := drawings.NewService(stores, blobs, cfg.MaxFileSize, logger.Named("drawings"))
	// The asynq worker is a separate process, so it can only see drawings
	// that live in Postgres.
	if cfg.UseRedis() && cfg.DatabaseURL != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		svc.UseDispatcher(queue.Dispatcher{Client: client})
		logger.Info("drawing processing via asynq")
	} else {
		workers := processing.New(svc.Process, cfg.ProcessingPool, logger.Named("processing"))
		workers.Start(ctx)
		defer workers.Wait()
		svc.UseDispatcher(workers)
		logger.Info("drawing processing in-process", zap.Int("workers", cfg.ProcessingPool))
	}

	srv := api.New(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Stores:   stores,
		Procore:  pc,
		Drawings: svc,
		Signer:   signing.NewSigner(cfg.SigningSecret),
	})
	return srv.Run(ctx)
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if !cfg.UseS3() {
		return blob.NewLocal(cfg.DataDir)
	}
	store, err := s3storage.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
