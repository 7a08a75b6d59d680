package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"apartment-locator/internal/clientimport"
	"apartment-locator/internal/config"
	"apartment-locator/internal/database"
	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/handlers"
	"apartment-locator/internal/logger"
	"apartment-locator/internal/models"
	"apartment-locator/internal/ratelimit"
	"apartment-locator/internal/scheduler"
	"apartment-locator/internal/search"
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "config/config.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", configPath, err)
	}

	zapLogger, err := logger.New(
		getEnvOrConfig(appConfig.Logging.Level, "LOG_LEVEL", "info"),
		getEnvOrConfig(appConfig.Logging.Format, "LOG_FORMAT", "json"),
		appConfig.Logging.ServiceName,
	)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zapLogger.Info("configuration loaded", zap.String("path", configPath))

	store, ownership, closeDB, err := openStore(appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer closeDB()

	service := edits.NewService(store, ownership, zapLogger)

	// Conflict review index and its periodic sync
	var searcher handlers.ConflictSearcher
	var appScheduler *scheduler.Scheduler
	if appConfig.Search.Enabled {
		meili := appConfig.Search.Meilisearch
		index := search.NewConflictIndex(
			getEnvOrConfig(meili.Host, "MEILISEARCH_HOST", "http://meilisearch:7700"),
			getEnvOrConfig(meili.APIKey, "MEILISEARCH_KEY", ""),
			meili.Index,
			service,
			zapLogger,
		)
		if err := index.InitIndex(); err != nil {
			zapLogger.Warn("failed to initialize conflict index", zap.Error(err))
		}
		searcher = index

		appScheduler = scheduler.NewScheduler(index, appConfig.Scheduler, zapLogger)
		if err := appScheduler.Start(); err != nil {
			zapLogger.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer appScheduler.Stop()
	} else {
		zapLogger.Info("conflict search disabled")
	}

	refreshWorker := scheduler.NewRefreshWorker(service, 64, zapLogger)
	refreshWorker.Start()
	defer refreshWorker.Stop()

	rateLimiter := ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)
	zapLogger.Info("rate limiter initialized",
		zap.Int("per_minute", appConfig.RateLimit.RequestsPerMinute),
		zap.Int("per_hour", appConfig.RateLimit.RequestsPerHour),
		zap.Bool("enabled", appConfig.RateLimit.Enabled))

	importer := clientimport.NewImporter(appConfig.Import, zapLogger)

	// Setup Gin router
	if appConfig.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID())
	if appConfig.Logging.LogRequests {
		r.Use(handlers.RequestLogger(zapLogger))
	}

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     appConfig.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", handlers.HeaderUserID, handlers.HeaderRequestID},
		ExposeHeaders:    []string{handlers.HeaderRequestID},
		AllowCredentials: true,
	}))

	handlers.RegisterRoutes(r, handlers.Routes{
		Edits:   handlers.NewEditHandler(service, refreshWorker, rateLimiter, zapLogger),
		Admin:   handlers.NewAdminHandler(service, searcher, appScheduler, zapLogger),
		Clients: handlers.NewClientHandler(importer, appConfig.Import.MaxUploadBytes(), zapLogger),
		Limiter: rateLimiter,
	})

	port := getEnvOrConfig(appConfig.Server.Port, "PORT", "8084")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
	}
}

// openStore connects the configured backend and returns the edit store, the
// tenant directory and a close function.
func openStore(cfg *config.Config, zapLogger *zap.Logger) (edits.Store, edits.Ownership, func(), error) {
	dbType := getEnvOrConfig(cfg.Database.Type, "DB_TYPE", "mysql")

	switch dbType {
	case "mysql":
		mysqlCfg := cfg.Database.MySQL
		port, err := strconv.Atoi(getEnvOrConfig(portString(mysqlCfg.Port), "DB_PORT", "3306"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		gormDB, err := database.NewMySQL(
			getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
			port,
			getEnvOrConfig(mysqlCfg.User, "DB_USER", "locator_user"),
			getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", ""),
			getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "locator_db"),
			cfg.Database.LogLevel,
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		return migrated(gormDB, zapLogger, "mysql")

	case "postgres":
		pgCfg := cfg.Database.Postgres
		port, err := strconv.Atoi(getEnvOrConfig(portString(pgCfg.Port), "DB_PORT", "5432"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		gormDB, err := database.NewPostgres(
			getEnvOrConfig(pgCfg.Host, "DB_HOST", "db"),
			port,
			getEnvOrConfig(pgCfg.User, "DB_USER", "locator_user"),
			getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", ""),
			getEnvOrConfig(pgCfg.Database, "DB_NAME", "locator_db"),
			getEnvOrConfig(pgCfg.SSLMode, "DB_SSLMODE", "disable"),
			cfg.Database.LogLevel,
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return migrated(gormDB, zapLogger, "postgres")

	case "memory":
		ownership, err := seedOwnership(cfg.Database.Memory)
		if err != nil {
			return nil, nil, nil, err
		}
		zapLogger.Warn("using in-memory store; edits are lost on restart",
			zap.Int("owners", len(cfg.Database.Memory.Owners)),
			zap.Int("members", len(cfg.Database.Memory.Members)))
		return database.NewMemoryStore(), ownership, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unsupported database type %q", dbType)
}

func migrated(gormDB *database.GormDB, zapLogger *zap.Logger, dbType string) (edits.Store, edits.Ownership, func(), error) {
	if err := gormDB.InitSchema(); err != nil {
		_ = gormDB.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	zapLogger.Info("database ready", zap.String("type", dbType))
	closeDB := func() {
		if err := gormDB.Close(); err != nil {
			zapLogger.Warn("failed to close database", zap.Error(err))
		}
	}
	return gormDB.Store(), gormDB.Ownership(), closeDB, nil
}

func seedOwnership(cfg config.MemoryConfig) (*database.StaticOwnership, error) {
	ctx := context.Background()
	own := database.NewStaticOwnership()
	for _, o := range cfg.Owners {
		targetType := fields.TargetType(o.TargetType)
		if !targetType.IsValid() {
			return nil, fmt.Errorf("memory owner %q: unknown target type %q", o.TargetID, o.TargetType)
		}
		if err := own.AssignEntity(ctx, models.EntityOwner{TargetType: targetType, TargetID: o.TargetID, TenantID: o.TenantID}); err != nil {
			return nil, err
		}
	}
	for _, m := range cfg.Members {
		if err := own.AddMember(ctx, models.TenantMember{UserID: m.UserID, TenantID: m.TenantID, Role: m.Role}); err != nil {
			return nil, err
		}
	}
	return own, nil
}

func portString(port int) string {
	if port > 0 {
		return strconv.Itoa(port)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}
