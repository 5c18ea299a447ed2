package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
)

type interactionRepository struct {
	BaseRepository
}

func NewInteractionRepository(base BaseRepository) repository.InteractionRepository {
	return &interactionRepository{base}
}

func (r *interactionRepository) Record(ctx context.Context, event *model.InteractionEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	query := `
		INSERT INTO notification_interactions (
			id, notification_id, user_id, action, payload, created_at
		) VALUES (
			:id, :notification_id, :user_id, :action, :payload, :created_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

func (r *interactionRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notification_interactions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete interactions: %w", err)
	}
	return res.RowsAffected()
}
