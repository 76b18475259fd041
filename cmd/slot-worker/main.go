package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/logger"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
	"github.com/hackgods/clinic-slot-booking/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logr, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	logr.Info("slot-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Int("horizon_days", cfg.GenerationHorizon),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logr.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logr.Info("connected to Postgres")

	rdb := redisclient.NewClient(redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err := redisclient.Ping(rootCtx, rdb); err != nil {
		logr.Warn("redis unreachable, starting degraded", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	} else {
		logr.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logr.Warn("error closing redis", zap.Error(err))
		}
	}()

	store := scheduling.NewPgStore(pgPool)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
	gen := scheduling.NewGenerator(store, locker, logr.Named("generator"), nil)

	// Run once at startup
	runOnce(rootCtx, logr, gen, cfg.GenerationHorizon)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logr.Info("shutdown signal received, stopping slot worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, logr, gen, cfg.GenerationHorizon)
		}
	}
}

func runOnce(ctx context.Context, logr *zap.Logger, gen *scheduling.Generator, horizon int) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	created, err := gen.GenerateHorizon(runCtx, start, horizon)
	if err != nil {
		logr.Error("generation run finished with errors",
			zap.Int("created", created),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	logr.Info("generation run complete",
		zap.Int("created", created),
		zap.Duration("took", time.Since(start)),
	)
}
