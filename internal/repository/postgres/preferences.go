package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
)

// preferencesRepository reads the user-settings view maintained by the
// profile service: quiet hours, escalation flag and contact endpoints.
type preferencesRepository struct {
	BaseRepository
}

func NewPreferencesRepository(base BaseRepository) repository.PreferencesRepository {
	return &preferencesRepository{base}
}

func (r *preferencesRepository) Get(ctx context.Context, userID uuid.UUID) (*model.UserPreferences, error) {
	query := `
		SELECT user_id, email, phone_number, timezone,
			quiet_hours_enabled, quiet_start_minute, quiet_end_minute,
			escalation_enabled
		FROM user_notification_settings
		WHERE user_id = $1
	`
	var prefs model.UserPreferences
	if err := r.db.GetContext(ctx, &prefs, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Missing settings row means defaults: no quiet hours,
			// no escalation.
			return &model.UserPreferences{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get user preferences: %w", err)
	}
	return &prefs, nil
}
