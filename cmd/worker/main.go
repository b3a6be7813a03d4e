package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acumant/ai-portal/internal/database"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/acumant/ai-portal/internal/tasks"
	"github.com/acumant/ai-portal/pkg/config"
	"github.com/acumant/ai-portal/pkg/queue"
	"github.com/acumant/ai-portal/pkg/util"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, "portal-worker")
	slog.SetDefault(logger)

	logger.Info("starting portal worker", "concurrency", cfg.Worker.Concurrency)

	// The worker always needs the database: it persists audit events and
	// checks the edge tables.
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	asynqLogger := queue.NewLogger(logger)
	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, asynqLogger)

	handler := tasks.NewHandler(db, entitlement.NewGormStore(db), logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	var scheduler *asynq.Scheduler
	if cfg.Worker.IntegrityCheckCron != "" {
		task, err := tasks.NewIntegrityCheckTask(tasks.IntegrityCheckPayload{TriggeredBy: "scheduler"})
		if err != nil {
			logger.Error("failed to build integrity check task", "error", err)
			os.Exit(1)
		}

		scheduler = queue.NewScheduler(&cfg.Redis, asynqLogger)
		entryID, err := scheduler.Register(cfg.Worker.IntegrityCheckCron, task)
		if err != nil {
			logger.Error("failed to schedule integrity check", "error", err)
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		next, err := util.NextCronTime(cfg.Worker.IntegrityCheckCron, time.Now())
		if err != nil {
			logger.Error("failed to compute next integrity check", "error", err)
			os.Exit(1)
		}
		logger.Info("scheduled integrity check",
			"cron", cfg.Worker.IntegrityCheckCron,
			"entry_id", entryID,
			"next_run", next,
		)
	}

	if err := srv.Start(mux); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info("worker stopped")
}
