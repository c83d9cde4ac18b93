package main

import (
	"context"
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

	_ "github.com/noah-isme/learning-journey-api/api/swagger"
	"github.com/noah-isme/learning-journey-api/internal/handler"
	"github.com/noah-isme/learning-journey-api/internal/middleware"
	"github.com/noah-isme/learning-journey-api/internal/repository"
	"github.com/noah-isme/learning-journey-api/internal/router"
	"github.com/noah-isme/learning-journey-api/internal/service"
	"github.com/noah-isme/learning-journey-api/pkg/cache"
	"github.com/noah-isme/learning-journey-api/pkg/config"
	"github.com/noah-isme/learning-journey-api/pkg/database"
	"github.com/noah-isme/learning-journey-api/pkg/export"
	"github.com/noah-isme/learning-journey-api/pkg/generation"
	"github.com/noah-isme/learning-journey-api/pkg/jobs"
	"github.com/noah-isme/learning-journey-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/learning-journey-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/learning-journey-api/pkg/middleware/requestid"
	"github.com/noah-isme/learning-journey-api/pkg/storage"
)

// @title Learning Journey API
// @version 1.0.0
// @description Classroom record keeping and Learning Journey report generation
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Insights.CacheTTL, logr, cfg.Insights.CacheEnabled && redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "learning-journey-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, userRepo, userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, validate, logr)
	insightSvc := service.NewInsightService(recordRepo, studentRepo, cacheSvc, cfg.Insights.CacheTTL, logr)
	recordSvc := service.NewRecordService(recordRepo, studentRepo, userRepo, insightSvc, validate, logr)

	var generator generation.Generator
	if cfg.Generation.Enabled {
		gen, err := generation.NewOpenAIGenerator(generation.Config{
			APIKey:      cfg.Generation.APIKey,
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
			Logger:      logr,
		})
		if err != nil {
			logr.Sugar().Warnw("delegated generation disabled", "error", err)
		} else {
			generator = gen
		}
	}

	journeySvc := service.NewJourneyService(recordRepo, studentRepo, generator, metricsSvc, userRepo, logr, service.JourneyConfig{
		Enabled: cfg.Generation.Enabled && generator != nil,
		Timeout: cfg.Generation.Timeout,
	})

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(journeySvc, recordRepo, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := service.NewExportWorker(exportJobRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	queue.Start()
	defer queue.Stop()

	exportJobSvc := service.NewExportJobService(exportJobRepo, studentRepo, queue, exportSvc, logr, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		MaxRetries:      cfg.Exports.WorkerRetries,
	})
	exportJobSvc.RecoverPendingJobs(ctx)
	exportJobSvc.StartCleanup(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	router.Register(r, cfg, router.Dependencies{
		Auth:     handler.NewAuthHandler(authSvc),
		Users:    handler.NewUserHandler(userSvc),
		Classes:  handler.NewClassHandler(classSvc),
		Students: handler.NewStudentHandler(studentSvc),
		Records:  handler.NewRecordHandler(recordSvc),
		Insights: handler.NewInsightHandler(insightSvc),
		Journeys: handler.NewJourneyHandler(journeySvc),
		Exports:  handler.NewExportHandler(exportJobSvc),
		Metrics:  handler.NewMetricsHandler(metricsSvc),
		JWT:      middleware.JWT(authSvc),
		Audit: func(action, resource string) gin.HandlerFunc {
			return middleware.Audit(userRepo, action, resource)
		},
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
