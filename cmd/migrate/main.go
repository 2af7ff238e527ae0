package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/config"
	"github.com/hackgods/dental-clinic-api/internal/db"
	"github.com/hackgods/dental-clinic-api/internal/logger"
)

const usage = `usage: migrate [-steps N] up|down|version`

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	switch flag.Arg(0) {
	case "up":
		if err := db.MigrateUp(cfg.PostgresDSN); err != nil {
			zlog.Fatal("migration failed", zap.Error(err))
		}
	case "down":
		if err := db.MigrateDown(cfg.PostgresDSN, *steps); err != nil {
			zlog.Fatal("rollback failed", zap.Error(err))
		}
	case "version":
	default:
		flag.Usage()
		os.Exit(2)
	}

	version, dirty, err := db.MigrationVersion(cfg.PostgresDSN)
	if err != nil {
		zlog.Fatal("read schema version", zap.Error(err))
	}
	zlog.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
