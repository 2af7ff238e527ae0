package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
	"github.com/hackgods/dental-clinic-api/internal/config"
	"github.com/hackgods/dental-clinic-api/internal/db"
	"github.com/hackgods/dental-clinic-api/internal/logger"
	"github.com/hackgods/dental-clinic-api/internal/notification"
)

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
		zlog.Error("notification-worker exited", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, zlog *zap.Logger) error {
	zlog.Info("notification-worker starting",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.NotificationInterval),
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

	var publisher notification.Publisher = notification.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq connection: %w", err)
		}
		defer func() {
			if err := conn.Close(); err != nil {
				zlog.Warn("error closing rabbitmq", zap.Error(err))
			}
		}()

		amqpPub, err := notification.NewAMQPPublisher(conn, cfg.NotificationQueue, zlog.Named("publisher"))
		if err != nil {
			return fmt.Errorf("rabbitmq publisher: %w", err)
		}
		defer func() { _ = amqpPub.Close() }()

		publisher = amqpPub
		zlog.Info("connected to RabbitMQ", zap.String("queue", cfg.NotificationQueue))
	} else {
		zlog.Info("RABBITMQ_URL not set, notifications are stored but not published")
	}

	repo := clinic.NewPgRepository(pgPool, cfg.ClinicLocation)
	gen := notification.NewGenerator(repo, publisher, zlog.Named("notification"),
		notification.WithLocation(cfg.ClinicLocation),
		notification.WithExpiryWindow(cfg.SupplyExpiryWindow),
	)

	runOnce(rootCtx, gen, zlog)

	ticker := time.NewTicker(cfg.NotificationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			zlog.Info("shutdown signal received, stopping notification worker")
			return nil
		case <-ticker.C:
			runOnce(rootCtx, gen, zlog)
		}
	}
}

func runOnce(ctx context.Context, gen *notification.Generator, zlog *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	summary, err := gen.Run(runCtx)
	if err != nil {
		zlog.Error("notification run failed", zap.Error(err), zap.Int("created", summary.Created))
		return
	}
	zlog.Info("notification run finished", zap.Duration("took", time.Since(start)))
}
