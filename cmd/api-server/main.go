package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/api"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/logger"
	"github.com/hackgods/clinic-slot-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
	"github.com/hackgods/clinic-slot-booking/internal/scheduling"
)

var version = "dev"

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

	logr.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
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

	migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migrateCtx, pgPool)
	cancelMigrate()
	if err != nil {
		logr.Fatal("schema migration error", zap.Error(err))
	}

	// Connect Redis
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

	collector := metrics.NewCollector("api-server")

	store := scheduling.NewPgStore(pgPool)
	directory := redisclient.NewCachedDirectory(rdb, scheduling.NewPgDirectory(pgPool), cfg.DirectoryCacheTTL, logr)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)

	registry := scheduling.NewRegistry(store, directory, logr.Named("registry"), collector)
	generator := scheduling.NewGenerator(store, locker, logr.Named("generator"), collector)
	booking := scheduling.NewBookingEngine(store, directory, locker, logr.Named("booking"), collector)

	router := api.NewRouter(api.RouterConfig{
		Schedules: registry,
		Slots:     generator,
		Booking:   booking,
		Health:    api.NewHealthHandler(pgPool, rdb, cfg.Env, version),
		Metrics:   collector,
		Logger:    logr.Named("http"),
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logr.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logr.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}

	logr.Info("api-server stopped")
}
