package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub/reminder-engine/internal/model"
)

// All repository interfaces in one file
type (
	// NotificationRepository is the durable notification store. Status
	// moves only through the conditional updates below; plain Update is
	// deliberately absent so no caller can bypass the state machine.
	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
		List(ctx context.Context, userID uuid.UUID, filter *model.ListNotificationsFilter) ([]*model.Notification, error)

		// ClaimDue atomically claims up to batchSize due notifications
		// for workerID. A row already claimed by a concurrent worker is
		// skipped, never an error. Rows stuck in processing longer than
		// processingTimeout are reclaimed as if pending.
		ClaimDue(ctx context.Context, batchSize int, workerID string, now time.Time, processingTimeout time.Duration) ([]*model.Notification, error)

		// CompleteDispatch finishes a processing round: status becomes
		// sent, failed, or pending (requeue with a new scheduled_at and
		// bumped retry_count). Claim fields are cleared.
		CompleteDispatch(ctx context.Context, id uuid.UUID, status model.NotificationStatus, rescheduleAt *time.Time, priority model.Priority) error

		// Defer returns a processing notification to pending with a new
		// scheduled_at, without consuming retry budget. Used for quiet
		// hours.
		Defer(ctx context.Context, id uuid.UUID, until time.Time) error

		// Snooze conditionally applies a snooze; it only succeeds while
		// status is pending or snoozed and the snooze budget remains.
		// Returns the number of rows updated.
		Snooze(ctx context.Context, id uuid.UUID, until time.Time) (int64, error)

		// Cancel transitions pending|snoozed to cancelled. Returns the
		// number of rows updated.
		Cancel(ctx context.Context, id uuid.UUID) (int64, error)

		// ExistsActiveForReference reports whether a non-terminal
		// notification already points at (referenceType, referenceID).
		ExistsActiveForReference(ctx context.Context, userID uuid.UUID, referenceType, referenceID string) (bool, error)

		DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
		CountByStatus(ctx context.Context, status model.NotificationStatus) (int64, error)
	}

	// DeliveryLogRepository is the append-only per-channel attempt log.
	DeliveryLogRepository interface {
		RecordAttempt(ctx context.Context, attempt *model.DeliveryAttempt) error
		ListAttempts(ctx context.Context, notificationID uuid.UUID) ([]*model.DeliveryAttempt, error)
	}

	PushTokenRepository interface {
		Upsert(ctx context.Context, token *model.PushToken) error
		Deactivate(ctx context.Context, userID uuid.UUID, deviceID string, platform model.Platform) error
		DeactivateAll(ctx context.Context, userID uuid.UUID) error
		DeactivateByToken(ctx context.Context, token string) error
		ListActive(ctx context.Context, userID uuid.UUID, platform *model.Platform) ([]*model.PushToken, error)
		TouchLastUsed(ctx context.Context, ids []uuid.UUID, at time.Time) error
	}

	InteractionRepository interface {
		Record(ctx context.Context, event *model.InteractionEvent) error
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// NotificationTypeRepository reads the external type registry. The
	// engine never writes it.
	NotificationTypeRepository interface {
		GetByKey(ctx context.Context, key string) (*model.NotificationType, error)
		List(ctx context.Context) ([]*model.NotificationType, error)
	}

	// PreferencesRepository reads per-user quiet hours, escalation and
	// contact settings. The engine never writes them.
	PreferencesRepository interface {
		Get(ctx context.Context, userID uuid.UUID) (*model.UserPreferences, error)
	}
)
