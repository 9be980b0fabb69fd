package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"insightflow/api/cache"
	"insightflow/api/config"
	"insightflow/api/database"
	"insightflow/api/handlers"
	"insightflow/api/logger"
	"insightflow/api/middleware"
	"insightflow/api/observability"
	"insightflow/api/services"
	"insightflow/api/store"
)

func main() {
	appLogger, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	cfg := config.Load(appLogger)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Event store ---
	var dbClient *database.DBClient
	switch cfg.DBDriver {
	case "postgres":
		dbClient, err = database.NewPostgresDB(cfg.DatabaseURL, appLogger)
	case "sqlite":
		dbClient, err = database.NewSQLiteDB(cfg.SQLitePath, appLogger)
	default:
		appLogger.Fatal("Unsupported DB_DRIVER", "driver", cfg.DBDriver)
	}
	if err != nil {
		appLogger.Fatal("Failed to initialize event store database", "driver", cfg.DBDriver, "error", err)
	}
	defer dbClient.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := dbClient.Migrate(migrateCtx, time.Now()); err != nil {
		cancelMigrate()
		appLogger.Fatal("Failed to migrate event store", "error", err)
	}
	cancelMigrate()

	eventStore := store.NewEventStore(dbClient)

	// --- Metrics cache ---
	var metricsCache cache.Cache
	if cfg.RedisAddr != "" {
		rdb, err := database.NewRedisClient(cfg, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize Redis", "error", err)
		}
		defer rdb.Close()
		metricsCache = cache.NewRedisCache(rdb, "insightflow:")
	} else {
		appLogger.Info("REDIS_ADDR not set, using in-process metrics cache")
		metricsCache = cache.NewMemoryCache(time.Now)
	}

	obs := observability.NewMetrics(cfg.TimingBufferSize)

	// --- ClickHouse archive (optional) ---
	var sink services.EventSink
	var archiver *services.EventArchiver
	if cfg.ClickHouseHost != "" {
		chClient, err := database.NewClickHouseDB(cfg, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize ClickHouse", "error", err)
		}
		defer chClient.Close()

		archiveStore := store.NewArchiveStore(chClient, appLogger)
		ensureCtx, cancelEnsure := context.WithTimeout(context.Background(), 15*time.Second)
		if err := archiveStore.EnsureTable(ensureCtx); err != nil {
			cancelEnsure()
			appLogger.Fatal("Failed to prepare ClickHouse archive table", "error", err)
		}
		cancelEnsure()

		archiver = services.NewEventArchiver(archiveStore, cfg.ArchiveBatchSize, cfg.ArchiveFlush, obs, appLogger)
		archiver.Start()
		sink = archiver
	}

	// --- Insight generator (optional) ---
	var generator services.TextGenerator
	if cfg.OpenAIKey != "" {
		generator = services.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, appLogger)
	} else {
		appLogger.Info("OPENAI_API_KEY not set, insights will use canned answers")
	}

	// --- Services ---
	tracking := services.NewTrackingService(eventStore, metricsCache, sink, cfg.ConfirmationPath, time.Now, appLogger)
	metricsSvc := services.NewMetricsService(eventStore, metricsCache, cfg.CacheTTL, time.Now, obs, appLogger)
	jobs := services.NewJobsService(eventStore, metricsCache, cfg.ChurnWindow, cfg.ConfirmationPath, time.Now, obs, appLogger)
	insights := services.NewInsightService(metricsSvc, generator, appLogger)

	adminAuth := middleware.AdminAuth{JWTSecret: cfg.JWTSecret, APIKeyHash: cfg.AdminAPIKeyHash}
	if !adminAuth.Configured() {
		appLogger.Warn("No operator credentials configured, cron and cache routes are open")
	}

	r := handlers.NewRouter(handlers.RouterConfig{
		Tracking:       handlers.NewTrackingHandlers(tracking, appLogger),
		Metrics:        handlers.NewMetricsHandlers(metricsSvc, appLogger),
		Admin:          handlers.NewAdminHandlers(jobs, metricsSvc, appLogger),
		Insights:       handlers.NewInsightHandlers(insights, appLogger),
		System:         handlers.NewSystemHandlers(obs, time.Now),
		AdminAuth:      adminAuth,
		AllowedOrigins: cfg.AllowedOrigins,
		Observability:  obs,
		Log:            appLogger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("InsightFlow API starting", "port", cfg.Port, "db_driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("API server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}
	if archiver != nil {
		if err := archiver.Close(ctx); err != nil {
			appLogger.Error("Archive flush did not finish", "error", err)
		}
	}

	appLogger.Info("Server exiting.")
}
