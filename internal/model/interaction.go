package model

import (
	"time"

	"github.com/google/uuid"
)

type InteractionAction string

const (
	InteractionDelivered InteractionAction = "delivered"
	InteractionOpened    InteractionAction = "opened"
	InteractionDismissed InteractionAction = "dismissed"
	InteractionSnoozed   InteractionAction = "snoozed"
)

func (a InteractionAction) Valid() bool {
	switch a {
	case InteractionDelivered, InteractionOpened, InteractionDismissed, InteractionSnoozed:
		return true
	}
	return false
}

// InteractionEvent records user engagement with a delivered notification.
// Append-only; never read back by the engine itself.
type InteractionEvent struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	NotificationID uuid.UUID         `db:"notification_id" json:"notification_id"`
	UserID         uuid.UUID         `db:"user_id" json:"user_id"`
	Action         InteractionAction `db:"action" json:"action"`
	Payload        Payload           `db:"payload" json:"payload,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}
