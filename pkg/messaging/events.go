package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Channel names used on the broker. Connected clients and the analytics
// pipeline subscribe to these.
const (
	ChannelNotificationEvents = "notifications.events"
)

// NotificationEvent is the payload published for every notification
// lifecycle change: created, sent, failed, snoozed, cancelled, plus user
// interactions. Consumers treat unknown kinds as opaque.
type NotificationEvent struct {
	Kind           string                 `json:"kind"`
	NotificationID uuid.UUID              `json:"notification_id"`
	UserID         uuid.UUID              `json:"user_id"`
	TypeKey        string                 `json:"type_key,omitempty"`
	Status         string                 `json:"status,omitempty"`
	Channel        string                 `json:"channel,omitempty"`
	Detail         map[string]interface{} `json:"detail,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// Event kinds.
const (
	EventCreated     = "notification.created"
	EventSent        = "notification.sent"
	EventFailed      = "notification.failed"
	EventSnoozed     = "notification.snoozed"
	EventCancelled   = "notification.cancelled"
	EventInteraction = "notification.interaction"
)
