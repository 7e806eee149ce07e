package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"scriba_backend/database"
	"scriba_backend/internal/auth"
	"scriba_backend/internal/config"
	"scriba_backend/internal/handlers"
	"scriba_backend/internal/logger"
	"scriba_backend/internal/middleware"
	"scriba_backend/internal/models"
	"scriba_backend/internal/openai"
	"scriba_backend/internal/routes"
	"scriba_backend/internal/services"
	"scriba_backend/internal/storage"
	"scriba_backend/internal/validator"
	"scriba_backend/internal/workers"
	"scriba_backend/pkg/apperrors"
)

// Run boots the whole application: config, database, storage, the job
// engine, HTTP routing and the quota sweep, then serves until interrupted.
func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("logger initialized", "env", cfg.Server.Env)

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("failed to get *sql.DB from GORM", "error", err)
	}
	if err := sqlDB.Ping(); err != nil {
		logger.Fatal("database unavailable", "error", err)
	}
	logger.Info("database connected")

	if err := database.Migrate(gormDB); err != nil {
		logger.Fatal("failed to migrate schema", "error", err)
	}
	if err := seedFirstAdmin(gormDB, cfg); err != nil {
		logger.Fatal("failed to seed first admin user", "error", err)
	}

	container, router := SetupRouter(cfg, gormDB)

	container.Runner.Start()

	quotaWorker := workers.NewQuotaWorker(container.QuotaService)
	if err := quotaWorker.Start(); err != nil {
		logger.Fatal("failed to schedule quota sweep", "error", err)
	}

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: address, Handler: router}

	go func() {
		logger.Info("server starting", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server startup error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	quotaWorker.Stop()
	if err := container.Runner.Shutdown(ctx); err != nil {
		logger.Error("job runner shutdown failed", "error", err)
	}
}

// SetupRouter assembles the service container and the gin engine. Exposed
// separately so tests can build a router against their own database.
func SetupRouter(cfg *config.Config, gormDB *gorm.DB) (*services.ServiceContainer, *gin.Engine) {
	store, err := storage.NewStorage(storage.Config{
		Type:       cfg.Storage.Type,
		BasePath:   cfg.Storage.BasePath,
		BaseURL:    cfg.Storage.BaseURL,
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Endpoint:   cfg.Storage.Endpoint,
		UseSSL:     cfg.Storage.UseSSL,
		PublicRead: cfg.Storage.PublicRead,
	})
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	logger.Info("storage initialized", "type", cfg.Storage.Type)

	container := services.NewServiceContainer(gormDB, cfg, store, openai.NewClient)
	appHandlers := initializeHandlers(container)

	router := initializeGinRouter(cfg, gormDB)
	routes.RegisterRoutes(router, appHandlers)
	return container, router
}

func initializeHandlers(container *services.ServiceContainer) *handlers.AppHandlers {
	base := handlers.NewBaseHandler(validator.New())

	return &handlers.AppHandlers{
		AuthHandler:          handlers.NewAuthHandler(base, container.AuthService),
		UserHandler:          handlers.NewUserHandler(base, container.UserService),
		PlanHandler:          handlers.NewPlanHandler(base, container.PlanService),
		TranscriptionHandler: handlers.NewTranscriptionHandler(base, container.TranscriptionService),
		AgentHandler:         handlers.NewAgentHandler(base, container.AgentService),
		AssistantHandler:     handlers.NewAssistantHandler(base, container.AssistantService),
	}
}

func initializeGinRouter(cfg *config.Config, gormDB *gorm.DB) *gin.Engine {
	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(gormDB))
	return router
}

// seedFirstAdmin creates the bootstrap admin account when configured and
// missing. Idempotent across restarts.
func seedFirstAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.FirstAdminEmail == "" || cfg.FirstAdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", cfg.FirstAdminEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.FirstAdminPassword)
	if err != nil {
		return apperrors.InternalError(err)
	}

	admin := &models.User{
		Name:         "Administrator",
		Email:        cfg.FirstAdminEmail,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	logger.Info("first admin user created", "email", cfg.FirstAdminEmail)
	return nil
}
