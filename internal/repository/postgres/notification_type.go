package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
)

// notificationTypeRepository reads the type registry owned by the
// surrounding product; the engine never writes these rows.
type notificationTypeRepository struct {
	BaseRepository
}

func NewNotificationTypeRepository(base BaseRepository) repository.NotificationTypeRepository {
	return &notificationTypeRepository{base}
}

func (r *notificationTypeRepository) GetByKey(ctx context.Context, key string) (*model.NotificationType, error) {
	query := `
		SELECT type_key, name, category, icon, sound, default_delivery_methods
		FROM notification_types
		WHERE type_key = $1
	`
	var t model.NotificationType
	if err := r.db.GetContext(ctx, &t, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get notification type: %w", err)
	}
	return &t, nil
}

func (r *notificationTypeRepository) List(ctx context.Context) ([]*model.NotificationType, error) {
	query := `
		SELECT type_key, name, category, icon, sound, default_delivery_methods
		FROM notification_types
		ORDER BY category, type_key
	`
	var types []*model.NotificationType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("failed to list notification types: %w", err)
	}
	return types, nil
}
