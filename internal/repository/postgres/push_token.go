package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
)

type pushTokenRepository struct {
	BaseRepository
}

func NewPushTokenRepository(base BaseRepository) repository.PushTokenRepository {
	return &pushTokenRepository{base}
}

// Upsert registers a device endpoint, last-write-wins on
// (user_id, device_id, platform).
func (r *pushTokenRepository) Upsert(ctx context.Context, token *model.PushToken) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	query := `
		INSERT INTO push_tokens (
			id, user_id, device_id, platform, token, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		ON CONFLICT (user_id, device_id, platform) DO UPDATE
		SET token = $5, is_active = TRUE, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.DeviceID, token.Platform, token.Token)
	if err != nil {
		return fmt.Errorf("failed to upsert push token: %w", err)
	}
	return nil
}

func (r *pushTokenRepository) Deactivate(ctx context.Context, userID uuid.UUID, deviceID string, platform model.Platform) error {
	query := `
		UPDATE push_tokens
		SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND device_id = $2 AND platform = $3
	`
	res, err := r.db.ExecContext(ctx, query, userID, deviceID, platform)
	if err != nil {
		return fmt.Errorf("failed to deactivate push token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("push token not found")
	}
	return nil
}

func (r *pushTokenRepository) DeactivateAll(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE push_tokens
		SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_active
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to deactivate push tokens: %w", err)
	}
	return nil
}

// DeactivateByToken handles confirmed-invalid feedback from the push
// provider; the token value itself is the only handle we have there.
func (r *pushTokenRepository) DeactivateByToken(ctx context.Context, token string) error {
	query := `
		UPDATE push_tokens
		SET is_active = FALSE, updated_at = NOW()
		WHERE token = $1 AND is_active
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("failed to deactivate push token: %w", err)
	}
	return nil
}

func (r *pushTokenRepository) ListActive(ctx context.Context, userID uuid.UUID, platform *model.Platform) ([]*model.PushToken, error) {
	query := `
		SELECT id, user_id, device_id, platform, token, is_active, last_used_at, created_at, updated_at
		FROM push_tokens
		WHERE user_id = $1 AND is_active
	`
	args := []interface{}{userID}
	if platform != nil {
		args = append(args, *platform)
		query += fmt.Sprintf(" AND platform = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"

	var tokens []*model.PushToken
	if err := r.db.SelectContext(ctx, &tokens, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	return tokens, nil
}

func (r *pushTokenRepository) TouchLastUsed(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE push_tokens
		SET last_used_at = $2, updated_at = NOW()
		WHERE id = ANY($1)
	`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids), at); err != nil {
		return fmt.Errorf("failed to touch push tokens: %w", err)
	}
	return nil
}
