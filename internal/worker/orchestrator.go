// Package worker runs the periodic claim-dispatch-regenerate cycle and
// the domain reminder auto-creation that feeds it.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lifehub/reminder-engine/internal/dispatch"
	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/pkg/logger"
	"github.com/lifehub/reminder-engine/pkg/metrics"
)

type claimStore interface {
	ClaimDue(ctx context.Context, batchSize int, workerID string, now time.Time, processingTimeout time.Duration) ([]*model.Notification, error)
	CountByStatus(ctx context.Context, status model.NotificationStatus) (int64, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, n *model.Notification) (*dispatch.Result, error)
}

type reminderCreator interface {
	CreateIfAbsent(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, bool, error)
}

// ReminderSource surfaces domain entities (tasks, habits, prayer times,
// bills) that need a reminder scheduled.
type ReminderSource interface {
	Name() string
	Due(ctx context.Context, now time.Time) ([]*model.CreateNotificationRequest, error)
}

// Config drives one orchestrator instance. Multiple instances may run
// concurrently; the claim CAS keeps them from double-dispatching.
type Config struct {
	PollInterval        time.Duration
	BatchSize           int
	DispatchConcurrency int
	ProcessingTimeout   time.Duration
	RetentionDays       int
	CleanupInterval     time.Duration
}

func (c *Config) normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.DispatchConcurrency <= 0 {
		c.DispatchConcurrency = 8
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = 10 * time.Minute
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
}

// Orchestrator is the cron entry point: claim a due batch, dispatch it
// with bounded parallelism, auto-create domain reminders, clean up old
// terminal rows.
type Orchestrator struct {
	store      claimStore
	dispatcher dispatcher
	creator    reminderCreator
	sources    []ReminderSource
	retention  *RetentionWorker
	metrics    *metrics.Metrics
	logger     *logger.Logger
	config     Config
	workerID   string

	now func() time.Time
}

func NewOrchestrator(
	store claimStore,
	dispatcher dispatcher,
	creator reminderCreator,
	sources []ReminderSource,
	retention *RetentionWorker,
	m *metrics.Metrics,
	logger *logger.Logger,
	config Config,
) *Orchestrator {
	config.normalize()
	workerID := generateWorkerID()
	return &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		creator:    creator,
		sources:    sources,
		retention:  retention,
		metrics:    m,
		logger:     logger.WithFields(map[string]interface{}{"worker_id": workerID}),
		config:     config,
		workerID:   workerID,
		now:        time.Now,
	}
}

// WorkerID identifies this instance in claim bookkeeping.
func (o *Orchestrator) WorkerID() string {
	return o.workerID
}

func (o *Orchestrator) Start(ctx context.Context) {
	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	cleanup := time.NewTicker(o.config.CleanupInterval)
	defer cleanup.Stop()

	o.logger.Info("orchestrator started",
		"poll_interval", o.config.PollInterval.String(),
		"batch_size", o.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator shutting down")
			return
		case <-ticker.C:
			if err := o.RunOnce(ctx); err != nil {
				o.logger.Error(err, "orchestrator round failed")
			}
		case <-cleanup.C:
			if o.retention != nil {
				if err := o.retention.Cleanup(ctx, o.now()); err != nil {
					o.logger.Error(err, "retention cleanup failed")
				}
			}
		}
	}
}

// RunOnce executes a single orchestration round. A failing notification
// never aborts the rest of the batch.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	now := o.now()

	claimed, err := o.store.ClaimDue(ctx, o.config.BatchSize, o.workerID, now, o.config.ProcessingTimeout)
	if err != nil {
		return fmt.Errorf("claim due notifications: %w", err)
	}
	o.metrics.NotificationsClaimed.Add(float64(len(claimed)))

	if len(claimed) > 0 {
		o.dispatchBatch(ctx, claimed)
	}

	o.generateReminders(ctx, now)
	o.updateQueueGauge(ctx)

	return nil
}

// dispatchBatch fans the claimed batch out over a bounded worker pool.
// Distinct notifications are independent.
func (o *Orchestrator) dispatchBatch(ctx context.Context, batch []*model.Notification) {
	sem := make(chan struct{}, o.config.DispatchConcurrency)
	var wg sync.WaitGroup

	for _, n := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(n *model.Notification) {
			defer func() {
				<-sem
				wg.Done()
			}()

			result, err := o.dispatcher.Dispatch(ctx, n)
			if err != nil {
				o.logger.Error(err, "dispatch failed",
					"notification_id", n.ID.String())
				return
			}
			o.logger.Debug("dispatched notification",
				"notification_id", n.ID.String(),
				"status", string(result.Status),
				"deferred", result.Deferred)
		}(n)
	}
	wg.Wait()
}

// generateReminders asks each domain source for entities that need a
// reminder and creates them idempotently. Source failures are isolated.
func (o *Orchestrator) generateReminders(ctx context.Context, now time.Time) {
	for _, src := range o.sources {
		candidates, err := src.Due(ctx, now)
		if err != nil {
			o.logger.Error(err, "reminder source failed", "source", src.Name())
			continue
		}
		for _, req := range candidates {
			_, created, err := o.creator.CreateIfAbsent(ctx, req)
			if err != nil {
				o.logger.Error(err, "failed to auto-create reminder",
					"source", src.Name(), "user_id", req.UserID.String())
				continue
			}
			if created {
				o.metrics.RemindersCreated.WithLabelValues(src.Name()).Inc()
			}
		}
	}
}

func (o *Orchestrator) updateQueueGauge(ctx context.Context) {
	count, err := o.store.CountByStatus(ctx, model.NotificationStatusPending)
	if err != nil {
		o.logger.Error(err, "failed to count pending notifications")
		return
	}
	o.metrics.PendingQueueSize.Set(float64(count))
}

func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}
