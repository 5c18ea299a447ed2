package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
)

const notificationColumns = `
	id, user_id, type_key, title, body, payload, priority,
	reference_type, reference_id, scheduled_at, status,
	repeat_pattern, repeat_interval, repeat_days, repeat_until, repeat_count,
	occurrence_chain_id, snooze_until, snooze_count, max_snooze_count,
	delivery_methods, retry_count, claimed_by, claimed_at, created_at, updated_at`

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}

	query := `
		INSERT INTO notifications (
			id, user_id, type_key, title, body, payload, priority,
			reference_type, reference_id, scheduled_at, status,
			repeat_pattern, repeat_interval, repeat_days, repeat_until, repeat_count,
			occurrence_chain_id, snooze_until, snooze_count, max_snooze_count,
			delivery_methods, retry_count, created_at, updated_at
		) VALUES (
			:id, :user_id, :type_key, :title, :body, :payload, :priority,
			:reference_type, :reference_id, :scheduled_at, :status,
			:repeat_pattern, :repeat_interval, :repeat_days, :repeat_until, :repeat_count,
			:occurrence_chain_id, :snooze_until, :snooze_count, :max_snooze_count,
			:delivery_methods, :retry_count, :created_at, :updated_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, userID uuid.UUID, filter *model.ListNotificationsFilter) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	args := []interface{}{userID}

	if filter != nil {
		if filter.Status != nil {
			args = append(args, *filter.Status)
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
		if filter.TypeKey != nil {
			args = append(args, *filter.TypeKey)
			query += fmt.Sprintf(" AND type_key = $%d", len(args))
		}
	}

	query += " ORDER BY scheduled_at DESC"

	limit, offset := 50, 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		if filter.Offset > 0 {
			offset = filter.Offset
		}
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var out []*model.Notification
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// ClaimDue selects due rows with SKIP LOCKED and flips them to
// processing in the same statement, so concurrent workers never claim
// the same notification. Orphaned claims (claimed_at older than the
// processing timeout) re-enter the candidate set.
func (r *notificationRepository) ClaimDue(ctx context.Context, batchSize int, workerID string, now time.Time, processingTimeout time.Duration) ([]*model.Notification, error) {
	query := `
		WITH due AS (
			SELECT id
			FROM notifications
			WHERE (status = 'pending' AND scheduled_at <= $1)
			   OR (status = 'snoozed' AND snooze_until <= $1)
			   OR (status = 'processing' AND claimed_at < $2)
			ORDER BY
				CASE priority
					WHEN 'urgent' THEN 3
					WHEN 'high' THEN 2
					WHEN 'normal' THEN 1
					ELSE 0
				END DESC,
				scheduled_at ASC,
				id ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notifications n
		SET status = 'processing',
			claimed_by = $4,
			claimed_at = $1,
			updated_at = NOW()
		FROM due
		WHERE n.id = due.id
		RETURNING ` + prefixColumns("n") + `
	`

	orphanCutoff := now.Add(-processingTimeout)

	var claimed []*model.Notification
	err := r.db.SelectContext(ctx, &claimed, query, now, orphanCutoff, batchSize, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due notifications: %w", err)
	}

	// RETURNING does not preserve CTE ordering; restore it.
	sort.SliceStable(claimed, func(i, j int) bool {
		a, b := claimed[i], claimed[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra > rb
		}
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.Before(b.ScheduledAt)
		}
		return a.ID.String() < b.ID.String()
	})

	return claimed, nil
}

func (r *notificationRepository) CompleteDispatch(ctx context.Context, id uuid.UUID, status model.NotificationStatus, rescheduleAt *time.Time, priority model.Priority) error {
	switch status {
	case model.NotificationStatusSent, model.NotificationStatusFailed, model.NotificationStatusPending:
	default:
		return fmt.Errorf("invalid dispatch completion status: %s", status)
	}

	query := `
		UPDATE notifications
		SET status = $2,
			scheduled_at = COALESCE($3, scheduled_at),
			priority = $4,
			retry_count = CASE WHEN $2 = 'pending' THEN retry_count + 1 ELSE retry_count END,
			claimed_by = NULL,
			claimed_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	res, err := r.db.ExecContext(ctx, query, id, status, rescheduleAt, priority)
	if err != nil {
		return fmt.Errorf("failed to complete dispatch: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Claim was reclaimed by orphan recovery mid-flight; the other
		// worker owns the row now.
		return nil
	}
	return nil
}

// Defer is the quiet-hours path: back to pending at a later instant,
// claim released, retry budget untouched.
func (r *notificationRepository) Defer(ctx context.Context, id uuid.UUID, until time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'pending',
			scheduled_at = $2,
			claimed_by = NULL,
			claimed_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	if _, err := r.db.ExecContext(ctx, query, id, until); err != nil {
		return fmt.Errorf("failed to defer notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Snooze(ctx context.Context, id uuid.UUID, until time.Time) (int64, error) {
	query := `
		UPDATE notifications
		SET status = 'snoozed',
			snooze_until = $2,
			snooze_count = snooze_count + 1,
			updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'snoozed')
		  AND snooze_count < max_snooze_count
	`
	res, err := r.db.ExecContext(ctx, query, id, until)
	if err != nil {
		return 0, fmt.Errorf("failed to snooze notification: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) Cancel(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `
		UPDATE notifications
		SET status = 'cancelled',
			snooze_until = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'snoozed')
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel notification: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) ExistsActiveForReference(ctx context.Context, userID uuid.UUID, referenceType, referenceID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1
			  AND reference_type = $2
			  AND reference_id = $3
			  AND status IN ('pending', 'processing', 'snoozed')
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, referenceType, referenceID); err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return exists, nil
}

func (r *notificationRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE status IN ('sent', 'failed', 'cancelled')
		AND updated_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal notifications: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) CountByStatus(ctx context.Context, status model.NotificationStatus) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// prefixColumns qualifies the shared column list with a table alias for
// use in RETURNING clauses.
func prefixColumns(alias string) string {
	out := ""
	cols := []string{
		"id", "user_id", "type_key", "title", "body", "payload", "priority",
		"reference_type", "reference_id", "scheduled_at", "status",
		"repeat_pattern", "repeat_interval", "repeat_days", "repeat_until", "repeat_count",
		"occurrence_chain_id", "snooze_until", "snooze_count", "max_snooze_count",
		"delivery_methods", "retry_count", "claimed_by", "claimed_at", "created_at", "updated_at",
	}
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}
