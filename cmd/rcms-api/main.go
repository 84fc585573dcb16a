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

	_ "github.com/ssn-coe/rcms-api/api/swagger"
	"github.com/ssn-coe/rcms-api/internal/handler"
	"github.com/ssn-coe/rcms-api/internal/middleware"
	"github.com/ssn-coe/rcms-api/internal/notify"
	"github.com/ssn-coe/rcms-api/internal/repository"
	"github.com/ssn-coe/rcms-api/internal/service"
	"github.com/ssn-coe/rcms-api/pkg/cache"
	"github.com/ssn-coe/rcms-api/pkg/config"
	"github.com/ssn-coe/rcms-api/pkg/database"
	"github.com/ssn-coe/rcms-api/pkg/logger"
	"github.com/ssn-coe/rcms-api/pkg/mail"
	corsmiddleware "github.com/ssn-coe/rcms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ssn-coe/rcms-api/pkg/middleware/requestid"
	"github.com/ssn-coe/rcms-api/pkg/storage"
)

const notificationRetention = 90 * 24 * time.Hour

// @title RCMS API
// @version 1.0.0
// @description Regulatory compliance management for circulars, submissions and reviews
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.AllowedExts, cfg.Uploads.MaxFileSizeBytes)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	mailer := mail.NewSMTPMailer(cfg.Mail, logr)
	dispatcher := mail.NewDispatcher(mailer, cfg.Mail, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	userRepo := repository.NewUserRepository(db)
	circularRepo := repository.NewCircularRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewChatRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	router := notify.NewRouter(userRepo, cfg.FrontendURL)
	otp := service.NewOTPStore(cfg.OTP.Length, cfg.OTP.TTL, nil)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, activityRepo, notificationRepo, router, otp, dispatcher, nil, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      "rcms-api",
	})
	userService := service.NewUserService(userRepo, activityRepo, nil, logr)
	circularService := service.NewCircularService(circularRepo, submissionRepo, statsRepo, router, dispatcher, activityRepo, cacheRepo, nil, logr)
	submissionService := service.NewSubmissionService(submissionRepo, circularRepo, userRepo, router, dispatcher, activityRepo, cacheRepo, nil, logr)
	notificationService := service.NewNotificationService(notificationRepo, logr)
	chatService := service.NewChatService(chatRepo, userRepo, router, dispatcher, nil, logr)
	dashboardService := service.NewDashboardService(statsRepo, circularRepo, submissionRepo, activityRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	reportService := service.NewReportService(statsRepo, logr)
	fileService := service.NewFileService(store, signer, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Users:         handler.NewUserHandler(userService),
		Circulars:     handler.NewCircularHandler(circularService, fileService),
		Submissions:   handler.NewSubmissionHandler(submissionService, fileService),
		Notifications: handler.NewNotificationHandler(notificationService),
		Chat:          handler.NewChatHandler(chatService, fileService),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Reports:       handler.NewReportHandler(reportService),
		Files:         handler.NewFileHandler(fileService),
	}, authService)

	go runSweeps(ctx, logr, metricsService, circularRepo, notificationRepo, cacheRepo, cfg.Circulars.ExpirySweepInterval)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

// runSweeps expires overdue circulars and prunes old notifications on
// a fixed cadence until ctx is cancelled.
func runSweeps(
	ctx context.Context,
	logr *zap.Logger,
	metrics *service.MetricsService,
	circulars *repository.CircularRepository,
	notifications *repository.NotificationRepository,
	cacheRepo *repository.CacheRepository,
	interval time.Duration,
) {
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
			expired, err := circulars.ExpireOverdue(ctx, time.Now().UTC())
			if err != nil {
				logr.Warn("circular expiry sweep failed", zap.Error(err))
			} else {
				metrics.ObserveSweep("circular_expiry", expired)
				if expired > 0 {
					logr.Info("expired overdue circulars", zap.Int64("count", expired))
					if err := cacheRepo.DeleteByPattern(ctx, "dashboard:*"); err != nil {
						logr.Warn("failed to invalidate dashboard cache", zap.Error(err))
					}
				}
			}

			pruned, err := notifications.DeleteOlderThan(ctx, time.Now().UTC().Add(-notificationRetention))
			if err != nil {
				logr.Warn("notification retention sweep failed", zap.Error(err))
			} else {
				metrics.ObserveSweep("notification_retention", pruned)
			}
		}
	}
}
