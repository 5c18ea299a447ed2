package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/lifehub/reminder-engine/internal/repository"
	"github.com/lifehub/reminder-engine/pkg/logger"
	"github.com/lifehub/reminder-engine/pkg/metrics"
)

// RetentionWorker removes terminal notifications and interaction events
// past the retention horizon. Sent/failed/cancelled rows are kept for
// audit until then; live rows are never touched.
type RetentionWorker struct {
	notifications repository.NotificationRepository
	interactions  repository.InteractionRepository
	retentionDays int
	metrics       *metrics.Metrics
	logger        *logger.Logger
}

func NewRetentionWorker(
	notifications repository.NotificationRepository,
	interactions repository.InteractionRepository,
	retentionDays int,
	m *metrics.Metrics,
	logger *logger.Logger,
) *RetentionWorker {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &RetentionWorker{
		notifications: notifications,
		interactions:  interactions,
		retentionDays: retentionDays,
		metrics:       m,
		logger:        logger.WithComponent("retention"),
	}
}

func (w *RetentionWorker) Cleanup(ctx context.Context, now time.Time) error {
	cutoff := now.AddDate(0, 0, -w.retentionDays)

	deleted, err := w.notifications.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup notifications: %w", err)
	}
	w.metrics.RetentionDeleted.WithLabelValues("notifications").Add(float64(deleted))

	events, err := w.interactions.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup interactions: %w", err)
	}
	w.metrics.RetentionDeleted.WithLabelValues("interactions").Add(float64(events))

	w.logger.Info("retention cleanup complete",
		"notifications_deleted", deleted,
		"interactions_deleted", events,
		"cutoff", cutoff.Format(time.RFC3339))
	return nil
}
