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
	"go.uber.org/zap"

	_ "github.com/slotwise/booking-api/api/swagger"
	"github.com/slotwise/booking-api/internal/handler"
	"github.com/slotwise/booking-api/internal/middleware"
	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/internal/repository"
	"github.com/slotwise/booking-api/internal/service"
	"github.com/slotwise/booking-api/pkg/cache"
	"github.com/slotwise/booking-api/pkg/config"
	"github.com/slotwise/booking-api/pkg/database"
	"github.com/slotwise/booking-api/pkg/jobs"
	"github.com/slotwise/booking-api/pkg/logger"
	corsmiddleware "github.com/slotwise/booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/slotwise/booking-api/pkg/middleware/requestid"
)

// @title Booking API
// @version 1.0.0
// @description Provider schedules, slot generation, availability and exclusive reservations
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, availability caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	windowRepo := repository.NewScheduleWindowRepository(db)
	slotRepo := repository.NewTimeSlotRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	notifications := service.NewNotificationService(cfg.Notifications.Enabled, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	identitySvc := service.NewIdentityService(cfg.Identity)
	scheduleSvc := service.NewScheduleService(windowRepo, validate, logr)
	generatorSvc := service.NewSlotGeneratorService(windowRepo, slotRepo, metricsSvc, cfg.Booking.MaxRangeDays, logr)
	availabilitySvc := service.NewAvailabilityService(slotRepo, cacheRepo, notifications, metricsSvc, cfg.Availability.CacheTTL, logr)
	bookingSvc := service.NewBookingService(bookingRepo, cacheRepo, notifications, metricsSvc, cfg.Booking.HoldTTL, validate, logr)
	exportSvc := service.NewExportService(bookingRepo, nil, nil, logr)

	windowHandler := handler.NewScheduleWindowHandler(scheduleSvc)
	slotHandler := handler.NewSlotHandler(generatorSvc, availabilitySvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
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

	r.GET("/providers/:id/availability", slotHandler.Availability)

	auth := r.Group("/", middleware.JWT(identitySvc))

	provider := auth.Group("/", middleware.RequireRoles(models.RoleProvider))
	provider.POST("/windows", windowHandler.Create)
	provider.GET("/windows", windowHandler.List)
	provider.DELETE("/windows/:id", windowHandler.Deactivate)
	provider.POST("/providers/:id/slots/generate", slotHandler.Generate)
	if cfg.Exports.Enabled {
		provider.GET("/providers/:id/day-sheet", exportHandler.DaySheet)
	}

	auth.POST("/bookings", bookingHandler.Reserve)
	auth.POST("/bookings/hold", bookingHandler.Hold)
	auth.POST("/bookings/:id/confirm", bookingHandler.Confirm)
	auth.GET("/bookings", bookingHandler.List)
	auth.GET("/bookings/:id", bookingHandler.Get)
	auth.DELETE("/bookings/:id", bookingHandler.Cancel)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down", zap.Duration("grace", 10*time.Second))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
