package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
)

type deliveryLogRepository struct {
	BaseRepository
}

func NewDeliveryLogRepository(base BaseRepository) repository.DeliveryLogRepository {
	return &deliveryLogRepository{base}
}

// RecordAttempt appends one delivery log entry. The unique constraint on
// (notification_id, channel, attempt) makes replays no-ops, so recording
// the same attempt twice never changes the log.
func (r *deliveryLogRepository) RecordAttempt(ctx context.Context, attempt *model.DeliveryAttempt) error {
	if attempt == nil {
		return fmt.Errorf("attempt cannot be nil")
	}

	query := `
		INSERT INTO notification_delivery_log (
			id, notification_id, channel, outcome, attempt, error_message, created_at
		) VALUES (
			:id, :notification_id, :channel, :outcome, :attempt, :error_message, :created_at
		)
		ON CONFLICT (notification_id, channel, attempt) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}
	return nil
}

func (r *deliveryLogRepository) ListAttempts(ctx context.Context, notificationID uuid.UUID) ([]*model.DeliveryAttempt, error) {
	query := `
		SELECT id, notification_id, channel, outcome, attempt, error_message, created_at
		FROM notification_delivery_log
		WHERE notification_id = $1
		ORDER BY created_at ASC, attempt ASC
	`
	var attempts []*model.DeliveryAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, notificationID); err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts: %w", err)
	}
	return attempts, nil
}
