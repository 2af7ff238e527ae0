package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/api"
	"github.com/hackgods/dental-clinic-api/internal/booking"
	"github.com/hackgods/dental-clinic-api/internal/clinic"
	"github.com/hackgods/dental-clinic-api/internal/config"
	"github.com/hackgods/dental-clinic-api/internal/db"
	"github.com/hackgods/dental-clinic-api/internal/logger"
	redisclient "github.com/hackgods/dental-clinic-api/internal/redis"
	"github.com/hackgods/dental-clinic-api/internal/validation"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Error("api-server exited", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, zlog *zap.Logger) error {
	zlog.Info("api-server starting",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("clinic_timezone", cfg.ClinicLocation.String()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN,
		db.WithMaxConns(cfg.PostgresMaxConns),
		db.WithQueryLogger(zlog.Named("postgres"), cfg.SlowQueryThreshold),
	)
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer pgPool.Close()
	zlog.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zlog.Warn("error closing redis", zap.Error(err))
		}
	}()
	zlog.Info("connected to Redis")

	repo := clinic.NewPgRepository(pgPool, cfg.ClinicLocation)
	validator := validation.New(validation.Stores{
		Patients:     repo,
		Doctors:      repo,
		Appointments: repo,
		Billing:      repo,
		Treatments:   repo,
	},
		validation.WithLocation(cfg.ClinicLocation),
		validation.WithLogger(zlog.Named("validation")),
	)
	locker := redisclient.NewRedisLocker(rdb, cfg.BookingLockTTL, zlog.Named("lock"))
	svc := booking.NewService(validator, repo, locker, zlog.Named("booking"))

	router := api.NewRouter(api.RouterConfig{
		Validator:          validator,
		Booking:            svc,
		Logger:             zlog.Named("http"),
		Location:           cfg.ClinicLocation,
		PostgresPing:       pgPool.Ping,
		RedisPing:          func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Env:                cfg.Env,
		Version:            version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var serveErr error
	select {
	case <-rootCtx.Done():
		zlog.Info("shutdown signal received")
	case serveErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	zlog.Info("api-server stopped")
	return nil
}
