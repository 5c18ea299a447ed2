package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lifehub/reminder-engine/internal/config"
	healthHandler "github.com/lifehub/reminder-engine/internal/handler/health"
	notificationHandler "github.com/lifehub/reminder-engine/internal/handler/notification"
	tokenHandler "github.com/lifehub/reminder-engine/internal/handler/token"
	"github.com/lifehub/reminder-engine/internal/middleware"
	"github.com/lifehub/reminder-engine/internal/repository/postgres"
	"github.com/lifehub/reminder-engine/internal/router"
	notificationService "github.com/lifehub/reminder-engine/internal/service/notification"
	tokenService "github.com/lifehub/reminder-engine/internal/service/token"
	"github.com/lifehub/reminder-engine/pkg/auth"
	"github.com/lifehub/reminder-engine/pkg/logger"
	"github.com/lifehub/reminder-engine/pkg/messaging"
	redisBroker "github.com/lifehub/reminder-engine/pkg/messaging/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{Level: logger.ParseLevel(cfg.Logging.Level)})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	var broker messaging.Broker
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &log.ZL)
		if err != nil {
			log.Fatal(err, "failed to connect to redis")
		}

		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal(err, "invalid redis URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	deliveryLogRepo := postgres.NewDeliveryLogRepository(base)
	interactionRepo := postgres.NewInteractionRepository(base)
	typeRepo := postgres.NewNotificationTypeRepository(base)
	pushTokenRepo := postgres.NewPushTokenRepository(base)

	notificationSvc := notificationService.NewService(
		notificationRepo, deliveryLogRepo, interactionRepo, typeRepo,
		broker, log,
		notificationService.Policy{MaxSnoozeCount: cfg.Engine.MaxSnoozeCount},
	)
	tokenSvc := tokenService.NewService(pushTokenRepo, log)

	authMiddleware := middleware.NewAuthMiddleware(auth.NewTokenService(cfg.Auth.Secret))

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db, redisClient),
		notificationHandler.NewHandler(notificationSvc),
		tokenHandler.NewHandler(tokenSvc),
		router.Config{
			RateLimit:      100,
			RateBurst:      200,
			RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig:     middleware.DefaultCORSConfig(),
			MetricsPrefix:  "reminder_engine_http",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info("starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
