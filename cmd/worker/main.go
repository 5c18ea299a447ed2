package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lifehub/reminder-engine/internal/config"
	"github.com/lifehub/reminder-engine/internal/dispatch"
	"github.com/lifehub/reminder-engine/internal/repository/postgres"
	notificationService "github.com/lifehub/reminder-engine/internal/service/notification"
	tokenService "github.com/lifehub/reminder-engine/internal/service/token"
	"github.com/lifehub/reminder-engine/internal/worker"
	"github.com/lifehub/reminder-engine/pkg/logger"
	"github.com/lifehub/reminder-engine/pkg/messaging"
	redisBroker "github.com/lifehub/reminder-engine/pkg/messaging/redis"
	"github.com/lifehub/reminder-engine/pkg/metrics"
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
	}

	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	deliveryLogRepo := postgres.NewDeliveryLogRepository(base)
	interactionRepo := postgres.NewInteractionRepository(base)
	typeRepo := postgres.NewNotificationTypeRepository(base)
	pushTokenRepo := postgres.NewPushTokenRepository(base)
	preferencesRepo := postgres.NewPreferencesRepository(base)

	m := metrics.NewMetrics("reminder_engine")

	notificationSvc := notificationService.NewService(
		notificationRepo, deliveryLogRepo, interactionRepo, typeRepo,
		broker, log,
		notificationService.Policy{MaxSnoozeCount: cfg.Engine.MaxSnoozeCount},
	)
	tokenSvc := tokenService.NewService(pushTokenRepo, log)

	var senders []dispatch.Sender
	if cfg.Channels.Email.Host != "" {
		senders = append(senders, dispatch.NewEmailSender(cfg.Channels.Email, log))
	}
	if cfg.Channels.Push.Enabled {
		senders = append(senders, dispatch.NewPushSender(cfg.Channels.Push, tokenSvc, log))
	}
	if cfg.Channels.SMS.Enabled {
		senders = append(senders, dispatch.NewSMSSender(cfg.Channels.SMS, log))
	}
	if len(senders) == 0 {
		log.Warn("no delivery channels configured; dispatch will fail every notification")
	}

	dispatcher := dispatch.NewDispatcher(
		notificationRepo, notificationSvc, preferencesRepo,
		senders, broker, m, log,
		dispatch.Policy{
			ChannelMaxRetries: cfg.Engine.ChannelMaxRetries,
			RetryBudget:       cfg.Engine.NotificationBudget,
			BackoffBase:       cfg.Engine.BackoffBase,
			BackoffCap:        cfg.Engine.BackoffCap,
			ChannelTimeout:    cfg.Engine.ChannelTimeout,
		},
	)

	sources := []worker.ReminderSource{
		worker.NewTaskSource(db, time.Hour),
		worker.NewHabitSource(db),
		worker.NewPrayerSource(db),
		worker.NewBillSource(db, 3),
	}

	retention := worker.NewRetentionWorker(
		notificationRepo, interactionRepo, cfg.Worker.RetentionDays, m, log)

	orchestrator := worker.NewOrchestrator(
		notificationRepo, dispatcher, notificationSvc, sources, retention, m, log,
		worker.Config{
			PollInterval:        cfg.Worker.PollInterval,
			BatchSize:           cfg.Worker.BatchSize,
			DispatchConcurrency: cfg.Worker.DispatchConcurrency,
			ProcessingTimeout:   cfg.Worker.ProcessingTimeout,
			RetentionDays:       cfg.Worker.RetentionDays,
			CleanupInterval:     cfg.Worker.CleanupInterval,
		},
	)

	// Health and metrics endpoint for the platform probes.
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"UP"}`)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"DOWN"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"UP"}`)
	})
	mux.Handle("/metrics", promhttp.Handler())

	healthSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start health server")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go orchestrator.Start(ctx)
	log.Info("worker started", "worker_id", orchestrator.WorkerID())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health server forced to shutdown")
	}

	log.Info("worker exited properly")
}
