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

	_ "github.com/studyconnect/studyconnect-api/api/swagger"
	"github.com/studyconnect/studyconnect-api/internal/events"
	"github.com/studyconnect/studyconnect-api/internal/handler"
	"github.com/studyconnect/studyconnect-api/internal/mailer"
	"github.com/studyconnect/studyconnect-api/internal/middleware"
	"github.com/studyconnect/studyconnect-api/internal/models"
	"github.com/studyconnect/studyconnect-api/internal/repository"
	"github.com/studyconnect/studyconnect-api/internal/service"
	"github.com/studyconnect/studyconnect-api/pkg/cache"
	"github.com/studyconnect/studyconnect-api/pkg/config"
	"github.com/studyconnect/studyconnect-api/pkg/database"
	"github.com/studyconnect/studyconnect-api/pkg/logger"
	corsmiddleware "github.com/studyconnect/studyconnect-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studyconnect/studyconnect-api/pkg/middleware/requestid"
)

// @title StudyConnect API
// @version 1.0.0
// @description Tutoring marketplace backend
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	validate := validator.New()

	bus := events.NewBus(cfg.Notifications.BufferSize, logr)
	defer bus.Close()

	var mail mailer.Mailer
	switch cfg.Mail.Backend {
	case "sendgrid":
		mail = mailer.NewSendgridMailer(cfg.Mail)
	default:
		mail = mailer.NewConsoleMailer(cfg.Mail, logr)
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metricsSvc, cfg.Requests.ListCacheTTL, logr, redisClient != nil,
	)

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	postRepo := repository.NewStudyPostRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:      cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	requestSvc := service.NewRequestService(requestRepo, userRepo, cacheSvc, bus, metricsSvc, validate, logr, service.RequestListOptions{
		DefaultPageSize:   cfg.Requests.DefaultPageSize,
		MaxPageSize:       cfg.Requests.MaxPageSize,
		StrictTransitions: cfg.Requests.StrictTransitions,
	})
	postSvc := service.NewStudyPostService(postRepo, validate, logr)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, bus, validate, logr)
	notificationSvc := service.NewNotificationService(bus, mail, userRepo, metricsSvc, logr, service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		SubjectTag: cfg.Mail.SubjectTag,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := notificationSvc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("notification pipeline stopped", zap.Error(err))
		}
	}()

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	postHandler := handler.NewStudyPostHandler(postSvc)
	feedbackHandler := handler.NewFeedbackHandler(feedbackSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(authSvc)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.GET("/auth/me", auth, authHandler.Me)

		users := api.Group("/users", auth)
		{
			users.PUT("/me", userHandler.UpdateProfile)
			users.GET("/tutors", adminOnly, userHandler.Tutors)
			users.GET("", adminOnly, userHandler.List)
			users.GET("/:id", adminOnly, userHandler.Get)
		}

		requests := api.Group("/requests")
		{
			// Fixed-segment routes must precede the :id wildcard.
			requests.GET("/my-requests", auth, requestHandler.Mine)
			requests.GET("/tutor/assigned", auth, requestHandler.Assigned)
			requests.GET("/tutor/available", auth, requestHandler.Available)
			requests.GET("/subject/:subject", requestHandler.BySubject)
			requests.GET("", requestHandler.List)
			requests.POST("", auth, requestHandler.Create)
			requests.GET("/:id", requestHandler.Get)
			requests.PUT("/:id/status", auth, requestHandler.UpdateStatus)
			requests.PUT("/:id/assign-tutor", auth, requestHandler.AssignTutor)
			requests.PUT("/:id", auth, requestHandler.Update)
			requests.DELETE("/:id", auth, requestHandler.Delete)
		}

		posts := api.Group("/posts")
		{
			posts.GET("", postHandler.List)
			posts.POST("", auth, postHandler.Create)
			posts.GET("/:id", postHandler.Get)
			posts.POST("/:id/answers", auth, postHandler.Answer)
			posts.POST("/:id/vote", auth, postHandler.Vote)
			posts.DELETE("/:id", auth, postHandler.Delete)
		}

		feedback := api.Group("/feedback")
		{
			feedback.POST("", feedbackHandler.Create)
			feedback.GET("", feedbackHandler.List)
			feedback.GET("/:id", feedbackHandler.Get)
			feedback.PUT("/:id", auth, adminOnly, feedbackHandler.Update)
			feedback.DELETE("/:id", auth, adminOnly, feedbackHandler.Delete)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
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
