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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/trainsmart-io/trainsmart-api/api/swagger"
	"github.com/trainsmart-io/trainsmart-api/internal/handler"
	internalmiddleware "github.com/trainsmart-io/trainsmart-api/internal/middleware"
	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/notify"
	"github.com/trainsmart-io/trainsmart-api/internal/repository"
	"github.com/trainsmart-io/trainsmart-api/internal/service"
	"github.com/trainsmart-io/trainsmart-api/pkg/cache"
	"github.com/trainsmart-io/trainsmart-api/pkg/config"
	"github.com/trainsmart-io/trainsmart-api/pkg/database"
	"github.com/trainsmart-io/trainsmart-api/pkg/logger"
	corsmiddleware "github.com/trainsmart-io/trainsmart-api/pkg/middleware/cors"
	reqidmiddleware "github.com/trainsmart-io/trainsmart-api/pkg/middleware/requestid"
	"github.com/trainsmart-io/trainsmart-api/pkg/storage"
)

// @title TrainSmart API
// @version 1.0.0
// @description Corporate training management backend
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	materialFiles, err := storage.NewLocalStorage(cfg.Materials.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare material storage", "error", err)
	}
	reportFiles, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
	}
	materialSigner := storage.NewSignedURLSigner(cfg.Materials.SignedURLSecret, cfg.Materials.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsService := service.NewMetricsService()

	var sender notify.Sender
	switch cfg.Email.Provider {
	case "sendgrid":
		sender = notify.NewSendgridSender(cfg.Email.APIKey, cfg.Email.FromName, cfg.Email.FromEmail)
	default:
		sender = notify.NewConsoleSender(logr)
	}

	notificationService := service.NewNotificationService(sender, auditRepo, logr, service.NotificationConfig{
		Enabled:    cfg.Notifications.Enabled,
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}).WithMetrics(metricsService)

	authService := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "trainsmart-api",
		Audience:           []string{"trainsmart"},
	})
	userService := service.NewUserService(userRepo, notificationService, auditRepo, validate, logr)
	moduleService := service.NewModuleService(moduleRepo, materialFiles, auditRepo, validate, logr)
	dashboardService := service.NewDashboardService(assignmentRepo, reportRepo, cacheRepo, logr, service.DashboardConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	}).WithMetrics(metricsService)
	assignmentService := service.NewAssignmentService(
		assignmentRepo, moduleRepo, userRepo, materialSigner, notificationService, auditRepo, validate, logr,
	).WithMetrics(metricsService).WithDashboards(dashboardService)
	reportService := service.NewReportService(reportRepo, reportFiles, reportSigner, auditRepo, validate, logr, service.ReportConfig{
		StorageDir: cfg.Reports.StorageDir,
	})

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	moduleHandler := handler.NewModuleHandler(moduleService, cfg.Materials.MaxFileSizeByte)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	reportHandler := handler.NewReportHandler(reportService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)
	downloadHandler := handler.NewDownloadHandler(
		handler.DownloadSource{Signer: materialSigner, Files: materialFiles},
		handler.DownloadSource{Signer: reportSigner, Files: reportFiles},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)
	defer notificationService.Stop()

	if cfg.Reports.Enabled {
		go cleanupExpiredReports(ctx, reportFiles, cfg.Reports, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Metrics)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/downloads/:token",
		internalmiddleware.Audit(auditRepo, models.AuditActionFileDownload, "download"),
		downloadHandler.Download)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authSession := auth.Group("", internalmiddleware.JWT(authService))
	authSession.POST("/logout", authHandler.Logout)
	authSession.POST("/change-password", authHandler.ChangePassword)
	authSession.GET("/me", authHandler.Me)

	secured := api.Group("", internalmiddleware.JWT(authService))

	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)
	managerUp := internalmiddleware.RequireRoles(models.RoleManager, models.RoleAdmin)
	supervisorUp := internalmiddleware.RequireRoles(models.RoleSupervisor, models.RoleManager, models.RoleAdmin)

	users := secured.Group("/users")
	users.POST("", managerUp, userHandler.Create)
	users.GET("", managerUp, userHandler.List)
	users.GET("/:id", internalmiddleware.RBAC("SELF", string(models.RoleManager), string(models.RoleAdmin)), userHandler.Get)
	users.PUT("/:id", managerUp, userHandler.Update)
	users.POST("/:id/reset-password", managerUp, userHandler.ResetPassword)
	users.DELETE("/:id", adminOnly, userHandler.Deactivate)

	modules := secured.Group("/modules")
	modules.GET("", moduleHandler.List)
	modules.GET("/:id", moduleHandler.Get)
	modules.POST("", managerUp, moduleHandler.Create)
	modules.POST("/:id/republish", managerUp, moduleHandler.Republish)
	modules.DELETE("/:id", managerUp, moduleHandler.Deactivate)

	assignments := secured.Group("/assignments")
	assignments.POST("", managerUp, assignmentHandler.Create)
	assignments.GET("", assignmentHandler.List)
	assignments.GET("/:id", assignmentHandler.Get)
	assignments.GET("/:id/material", assignmentHandler.OpenMaterial)
	assignments.POST("/:id/complete", assignmentHandler.MarkComplete)
	assignments.POST("/:id/signoff", assignmentHandler.SignOff)

	if cfg.Reports.Enabled {
		reports := secured.Group("/reports", supervisorUp)
		reports.GET("/compliance", reportHandler.Compliance)
		reports.GET("/trend", reportHandler.Trend)
		reports.POST("/export", reportHandler.Export)
	}

	if cfg.Dashboard.Enabled {
		secured.GET("/dashboard", dashboardHandler.Summary)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis client", "error", err)
	}
}

// cleanupExpiredReports removes exported files once their download links can
// no longer be valid.
func cleanupExpiredReports(ctx context.Context, files *storage.LocalStorage, cfg config.ReportsConfig, logr *zap.Logger) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := files.CleanupOlderThan(cfg.SignedURLTTL)
			if err != nil {
				logr.Sugar().Warnw("report cleanup failed", "error", err)
				continue
			}
			if len(deleted) > 0 {
				logr.Sugar().Infow("expired reports removed", "count", len(deleted))
			}
		}
	}
}
