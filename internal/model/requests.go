package model

import (
	"time"

	"github.com/google/uuid"
)

// CreateNotificationRequest is the payload domain callers submit to
// schedule a reminder. DeliveryMethods may be omitted, in which case the
// notification type's defaults apply.
type CreateNotificationRequest struct {
	UserID          uuid.UUID  `json:"user_id" binding:"required"`
	TypeKey         string     `json:"type_key" binding:"required"`
	Title           string     `json:"title" binding:"required,max=255"`
	Body            string     `json:"body" binding:"max=2000"`
	ScheduledAt     time.Time  `json:"scheduled_at" binding:"required"`
	Payload         Payload    `json:"payload"`
	ReferenceType   *string    `json:"reference_type"`
	ReferenceID     *string    `json:"reference_id"`
	Priority        Priority   `json:"priority" binding:"omitempty,priority"`
	DeliveryMethods []string   `json:"delivery_methods"`
	RepeatPattern   RepeatPattern `json:"repeat_pattern" binding:"omitempty,repeatpattern"`
	RepeatInterval  int        `json:"repeat_interval"`
	RepeatDays      []int      `json:"repeat_days"`
	RepeatUntil     *time.Time `json:"repeat_until"`
	RepeatCount     *int       `json:"repeat_count"`
}

type SnoozeRequest struct {
	Minutes int `json:"minutes" binding:"required,min=1,max=1440"`
}

type RegisterPushTokenRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	DeviceID string    `json:"device_id" binding:"required,max=255"`
	Platform Platform  `json:"platform" binding:"required,platform"`
	Token    string    `json:"token" binding:"required"`
}

type DeactivatePushTokenRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	DeviceID string    `json:"device_id" binding:"required"`
	Platform Platform  `json:"platform" binding:"required,platform"`
}

type RecordInteractionRequest struct {
	Action  InteractionAction `json:"action" binding:"required,interaction"`
	Payload Payload           `json:"payload"`
}

// ListNotificationsFilter narrows notification list queries.
type ListNotificationsFilter struct {
	Status   *NotificationStatus
	TypeKey  *string
	Limit    int
	Offset   int
}
