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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/od-approval-api/api/swagger"
	"github.com/noah-isme/od-approval-api/internal/dto"
	"github.com/noah-isme/od-approval-api/internal/handler"
	internalmiddleware "github.com/noah-isme/od-approval-api/internal/middleware"
	"github.com/noah-isme/od-approval-api/internal/models"
	"github.com/noah-isme/od-approval-api/internal/repository"
	"github.com/noah-isme/od-approval-api/internal/service"
	"github.com/noah-isme/od-approval-api/pkg/cache"
	"github.com/noah-isme/od-approval-api/pkg/config"
	"github.com/noah-isme/od-approval-api/pkg/database"
	"github.com/noah-isme/od-approval-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/od-approval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/od-approval-api/pkg/middleware/requestid"
)

// @title OD Approval API
// @version 1.0.0
// @description On-duty application workflow: submission, two-tier review, rosters and exports.
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, roster cache disabled", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := dto.NewValidator()

	applications := repository.NewApplicationRepository(db)
	notifications := repository.NewNotificationRepository(db)
	audits := repository.NewAuditRepository(db)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		repo := repository.NewCacheRepository(redisClient, "od", logr)
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
		checks["redis"] = repo.Ping
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Roster.CacheTTL, logr, cfg.Roster.CacheEnabled)

	var publisher service.EventPublisher
	if kp := service.NewKafkaPublisher(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic); kp != nil {
		publisher = kp
	}
	notifier := service.NewNotificationService(notifications, publisher, metrics, logr, service.NotificationQueueConfig{
		Enabled:    cfg.Notifications.Enabled,
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	})

	coordinator := service.NewBatchCoordinator(applications,
		service.WithBatchNotifier(notifier),
		service.WithBatchAudit(audits),
		service.WithBatchCache(cacheSvc),
		service.WithBatchMetrics(metrics),
		service.WithBatchLogger(logr),
		service.WithBatchLimits(cfg.Workflow.BatchConcurrency, cfg.Workflow.BatchMaxItems),
	)
	applicationSvc := service.NewApplicationService(applications, coordinator, validate, logr,
		service.WithApplicationAudit(audits),
		service.WithApplicationCache(cacheSvc),
	)
	rosterSvc := service.NewRosterService(applications, cacheSvc, cfg.Roster.CacheTTL, metrics, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	}, logr)

	router := newRouter(cfg, logr, metrics, tokenSvc, routeHandlers{
		applications:  handler.NewApplicationHandler(applicationSvc),
		roster:        handler.NewRosterHandler(rosterSvc),
		notifications: handler.NewNotificationHandler(notifier),
		ops:           handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	notifier.Start(gctx)

	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		notifier.Stop()
		return err
	})

	return g.Wait()
}

type routeHandlers struct {
	applications  *handler.ApplicationHandler
	roster        *handler.RosterHandler
	notifications *handler.NotificationHandler
	ops           *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, tokens internalmiddleware.TokenValidator, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", h.ops.Health)
	r.GET("/ready", h.ops.Ready)
	r.GET("/metrics", h.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))

	student := internalmiddleware.RequireRoles(models.RoleStudent)
	reviewers := internalmiddleware.Reviewers()

	od := api.Group("/od-applications")
	od.POST("", student, h.applications.Submit)
	od.GET("/mine", student, h.applications.Mine)
	od.GET("/stats", student, h.applications.Stats)
	od.GET("/pending/faculty", internalmiddleware.RequireRoles(models.RoleStaff), h.applications.PendingFaculty)
	od.GET("/pending/hod", internalmiddleware.RequireRoles(models.RoleHOD), h.applications.PendingHOD)
	od.POST("/batch", reviewers, h.applications.Batch)
	od.GET("/:id", h.applications.Get)
	od.POST("/:id/cancel", student, h.applications.Cancel)
	od.POST("/:id/transitions", reviewers, h.applications.Transition)

	roster := api.Group("/roster", reviewers)
	roster.GET("", h.roster.Roster)
	roster.GET("/export", h.roster.Export)

	inbox := api.Group("/notifications")
	inbox.GET("", h.notifications.List)
	inbox.GET("/unread-count", h.notifications.UnreadCount)
	inbox.POST("/read-all", h.notifications.MarkAllRead)
	inbox.POST("/:id/read", h.notifications.MarkRead)

	return r
}
