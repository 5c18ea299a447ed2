package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusProcessing NotificationStatus = "processing"
	NotificationStatusSnoozed    NotificationStatus = "snoozed"
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusFailed     NotificationStatus = "failed"
	NotificationStatusCancelled  NotificationStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s NotificationStatus) Terminal() bool {
	switch s {
	case NotificationStatusSent, NotificationStatusFailed, NotificationStatusCancelled:
		return true
	}
	return false
}

func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationStatusPending, NotificationStatusProcessing, NotificationStatusSnoozed,
		NotificationStatusSent, NotificationStatusFailed, NotificationStatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityNormal: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// Rank returns the numeric ordering used by the claim query. Unknown
// priorities sort with normal.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[PriorityNormal]
}

func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Escalate bumps the priority one level, capped at urgent.
func (p Priority) Escalate() Priority {
	switch p {
	case PriorityLow:
		return PriorityNormal
	case PriorityNormal:
		return PriorityHigh
	case PriorityHigh:
		return PriorityUrgent
	}
	return p
}

type RepeatPattern string

const (
	RepeatNone    RepeatPattern = "none"
	RepeatDaily   RepeatPattern = "daily"
	RepeatWeekly  RepeatPattern = "weekly"
	RepeatMonthly RepeatPattern = "monthly"
	RepeatYearly  RepeatPattern = "yearly"
	RepeatCustom  RepeatPattern = "custom"
)

func (p RepeatPattern) Valid() bool {
	switch p {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly, RepeatCustom:
		return true
	}
	return false
}

type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelPush, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

type Notification struct {
	ID       uuid.UUID `db:"id" json:"id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	TypeKey  string    `db:"type_key" json:"type_key"`
	Title    string    `db:"title" json:"title"`
	Body     string    `db:"body" json:"body"`
	Payload  Payload   `db:"payload" json:"payload,omitempty"`
	Priority Priority  `db:"priority" json:"priority"`

	// Optional back-reference to the domain entity that produced the
	// reminder (task, habit, bill, prayer time). Used for idempotent
	// auto-creation.
	ReferenceType *string `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *string `db:"reference_id" json:"reference_id,omitempty"`

	ScheduledAt time.Time          `db:"scheduled_at" json:"scheduled_at"`
	Status      NotificationStatus `db:"status" json:"status"`

	RepeatPattern     RepeatPattern `db:"repeat_pattern" json:"repeat_pattern"`
	RepeatInterval    int           `db:"repeat_interval" json:"repeat_interval"`
	RepeatDays        pq.Int64Array `db:"repeat_days" json:"repeat_days,omitempty"`
	RepeatUntil       *time.Time    `db:"repeat_until" json:"repeat_until,omitempty"`
	RepeatCount       *int          `db:"repeat_count" json:"repeat_count,omitempty"`
	OccurrenceChainID uuid.UUID     `db:"occurrence_chain_id" json:"occurrence_chain_id"`

	SnoozeUntil    *time.Time `db:"snooze_until" json:"snooze_until,omitempty"`
	SnoozeCount    int        `db:"snooze_count" json:"snooze_count"`
	MaxSnoozeCount int        `db:"max_snooze_count" json:"max_snooze_count"`

	DeliveryMethods pq.StringArray `db:"delivery_methods" json:"delivery_methods"`

	// Dispatch bookkeeping. RetryCount counts completed dispatch rounds
	// that ended in a requeue, not per-channel attempts.
	RetryCount int        `db:"retry_count" json:"retry_count"`
	ClaimedBy  *string    `db:"claimed_by" json:"-"`
	ClaimedAt  *time.Time `db:"claimed_at" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Channels returns delivery_methods as typed channels.
func (n *Notification) Channels() []Channel {
	out := make([]Channel, 0, len(n.DeliveryMethods))
	for _, m := range n.DeliveryMethods {
		out = append(out, Channel(m))
	}
	return out
}

// Repeats reports whether the notification can produce a chain successor.
func (n *Notification) Repeats() bool {
	return n.RepeatPattern != "" && n.RepeatPattern != RepeatNone
}

// Payload is the opaque structured payload attached to a notification.
// Stored as jsonb; unknown keys survive round-trip.
type Payload map[string]interface{}

func (p Payload) Value() (interface{}, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *Payload) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported payload type %T", src)
	}
	return json.Unmarshal(data, p)
}

type DeliveryOutcome string

const (
	DeliveryOutcomeSent     DeliveryOutcome = "sent"
	DeliveryOutcomeFailed   DeliveryOutcome = "failed"
	DeliveryOutcomeRetrying DeliveryOutcome = "retrying"
	DeliveryOutcomeDeferred DeliveryOutcome = "deferred"
)

// DeliveryAttempt is one append-only entry in the per-notification
// delivery log. (notification_id, channel, attempt) is unique; replays
// of the same attempt are no-ops.
type DeliveryAttempt struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	NotificationID uuid.UUID       `db:"notification_id" json:"notification_id"`
	Channel        Channel         `db:"channel" json:"channel"`
	Outcome        DeliveryOutcome `db:"outcome" json:"outcome"`
	Attempt        int             `db:"attempt" json:"attempt"`
	Error          *string         `db:"error_message" json:"error,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
