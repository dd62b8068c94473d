package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/office-memo-api/api/swagger"
	"github.com/noah-isme/office-memo-api/internal/handler"
	"github.com/noah-isme/office-memo-api/internal/middleware"
	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/internal/repository"
	"github.com/noah-isme/office-memo-api/internal/service"
	"github.com/noah-isme/office-memo-api/pkg/cache"
	"github.com/noah-isme/office-memo-api/pkg/config"
	"github.com/noah-isme/office-memo-api/pkg/database"
	"github.com/noah-isme/office-memo-api/pkg/jobs"
	"github.com/noah-isme/office-memo-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/office-memo-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/office-memo-api/pkg/middleware/requestid"
	"github.com/noah-isme/office-memo-api/pkg/storage"
)

// @title Office Memo API
// @version 1.0.0
// @description Memo drafting, two-stage approval workflow and document generation.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to ensure schema", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, document cache disabled", zap.Error(err))
	}

	catalog, err := config.LoadTemplateCatalog(cfg.Memos.TemplateCatalogPath)
	if err != nil {
		logr.Fatal("failed to load template catalog", zap.Error(err))
	}
	attachments, err := storage.NewLocalStorage(cfg.Memos.AttachmentsDir)
	if err != nil {
		logr.Fatal("failed to prepare attachment storage", zap.Error(err))
	}
	documents, err := storage.NewLocalStorage(cfg.Memos.DocumentsDir)
	if err != nil {
		logr.Fatal("failed to prepare document storage", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()

	memoRepo := repository.NewMemoRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logger.Component(logr, "cache"))
	defer cacheRepo.Close() //nolint:errcheck

	authSvc := service.NewAuthService(userRepo, logger.Component(logr, "auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Memos.DocumentCacheTTL, logger.Component(logr, "cache"), cfg.Memos.DocumentCacheEnabled && cacheRepo.Enabled())
	engine := service.NewWorkflowEngine(memoRepo, metricsSvc, logger.Component(logr, "workflow"))
	renderer := service.NewDocumentRenderer(catalog, metricsSvc)

	opts := []service.MemoServiceOption{
		service.WithDocumentCache(cacheSvc),
		service.WithMemoMetrics(metricsSvc),
		service.WithDownloadSigner(storage.NewSignedURLSigner(cfg.Memos.SignedURLSecret, cfg.Memos.SignedURLTTL)),
	}
	if cfg.Memos.ArchiveEnabled {
		archiver := service.NewDocumentArchiver(memoRepo, renderer, documents, metricsSvc, logger.Component(logr, "archiver"))
		archiveQueue := jobs.NewQueue(service.ArchiveJobType, archiver.Handle, jobs.QueueConfig{
			Workers:    cfg.Memos.ArchiveWorkers,
			MaxRetries: cfg.Memos.ArchiveRetries,
			RetryDelay: 2 * time.Second,
			Logger:     logger.Component(logr, "jobs"),
		})
		archiveQueue.Start(ctx)
		defer archiveQueue.Stop()
		opts = append(opts, service.WithArchiveQueue(archiveQueue))
	}

	memoSvc := service.NewMemoService(memoRepo, engine, renderer, attachments, validator.New(), logger.Component(logr, "memos"), service.MemoServiceConfig{
		MaxFileSize:     cfg.Memos.MaxFileSizeBytes,
		MaxFiles:        cfg.Memos.MaxFilesPerRequest,
		AllowedMIMEs:    cfg.Memos.AllowedMIMEs,
		RetryOnConflict: cfg.Memos.RetryOnConflict,
		APIPrefix:       cfg.APIPrefix,
	}, opts...)

	memoHandler := handler.NewMemoHandler(memoSvc, cfg.Memos.MaxFileSizeBytes)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
		"database": db.PingContext,
		"redis":    cacheRepo.Ping,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Memos.MaxFileSizeBytes

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(authSvc))
	memos := api.Group("/memos")
	{
		memos.POST("", memoHandler.Create)
		memos.GET("", memoHandler.List)
		memos.GET("/pending/desk-head", middleware.RBAC(models.RoleDeskHead, models.RoleAdmin), memoHandler.PendingDeskHead)
		memos.GET("/pending/leo", middleware.RBAC(models.RoleLEO, models.RoleAdmin), memoHandler.PendingLEO)
		memos.GET("/:id", memoHandler.Get)
		memos.PUT("/:id", memoHandler.Update)
		memos.DELETE("/:id", memoHandler.Delete)
		memos.DELETE("/:id/attachments/:fileName", memoHandler.DeleteAttachment)
		memos.GET("/:id/attachments/:fileName/download", memoHandler.DownloadAttachment)
		memos.POST("/:id/submit", memoHandler.Submit)
		memos.POST("/:id/desk-head-action", memoHandler.DeskHeadAction)
		memos.POST("/:id/leo-action", memoHandler.LEOAction)
		memos.GET("/:id/history", memoHandler.History)
		memos.GET("/:id/history/export", memoHandler.ExportHistory)
		memos.GET("/:id/document", memoHandler.Document)
		memos.GET("/:id/document/html", memoHandler.DocumentHTML)
		memos.GET("/:id/document/pdf", memoHandler.DocumentPDF)
		memos.GET("/:id/document/preview", memoHandler.Preview)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
