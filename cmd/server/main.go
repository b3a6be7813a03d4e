package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acumant/ai-portal/internal/api"
	"github.com/acumant/ai-portal/internal/api/middleware"
	"github.com/acumant/ai-portal/internal/audit"
	"github.com/acumant/ai-portal/internal/auth"
	"github.com/acumant/ai-portal/internal/database"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/acumant/ai-portal/pkg/config"
	"github.com/acumant/ai-portal/pkg/crypto"
	"github.com/acumant/ai-portal/pkg/queue"
	"github.com/acumant/ai-portal/pkg/storage"
	"github.com/acumant/ai-portal/pkg/util"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, "portal-api")
	slog.SetDefault(logger)

	logger.Info("starting portal server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
		"store", cfg.Store.Driver,
	)

	ctx := context.Background()

	// Entitlement store
	var (
		db    *gorm.DB
		store entitlement.Store
	)
	if cfg.Store.IsMemory() {
		store = entitlement.NewMemoryStore()
		logger.Warn("using in-memory store, changes are lost on restart")
	} else {
		db, err = database.Connect(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		store = entitlement.NewGormStore(db)
	}

	if cfg.Store.IsMemory() || cfg.Store.SeedOnStart {
		hash, err := crypto.HashPassword(cfg.Store.SeedPassword)
		if err != nil {
			logger.Error("failed to hash seed password", "error", err)
			os.Exit(1)
		}
		seeded, err := entitlement.ReferenceFixture().ApplyIfEmpty(ctx, store, hash)
		if err != nil {
			logger.Error("failed to seed reference data", "error", err)
			os.Exit(1)
		}
		if seeded {
			logger.Info("seeded reference data")
		} else {
			logger.Info("store already populated, skipping seed")
		}
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("failed to connect to Redis, audit events will only be logged", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	var (
		asynqClient *asynq.Client
		inspector   *asynq.Inspector
	)
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		inspector = queue.NewInspector(&cfg.Redis)
	}

	sealer, err := crypto.NewSealer(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create sealer", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - tool API keys will be lost on restart")
	}

	opts := entitlement.Options{
		Logger: logger,
		Sealer: sealer,
		Audit:  audit.NewPublisher(asynqClient, logger),
	}
	if cfg.Storage.Enabled() {
		logos, err := storage.NewS3(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Error("failed to configure object storage", "error", err)
			os.Exit(1)
		}
		opts.Logos = logos
	} else {
		logger.Warn("S3_BUCKET not set, logo uploads are disabled")
	}

	entitlements := entitlement.NewService(store, opts)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(store, jwtService)

	routerCfg := api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Entitlements:   entitlements,
		Metrics:        middleware.NewMetrics(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitWin:   cfg.RateLimit.Window(),
		TrustProxy:     cfg.RateLimit.TrustProxy,
		SecureCookies:  cfg.Server.CookieSecure,
	}
	if inspector != nil {
		routerCfg.Queue = inspector
	}
	router := api.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	router.Close()

	if asynqClient != nil {
		asynqClient.Close()
	}
	if inspector != nil {
		inspector.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Info("server stopped")
}
