package model

import (
	"time"

	"github.com/google/uuid"
)

type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformWeb, PlatformAndroid, PlatformIOS:
		return true
	}
	return false
}

// PushToken is one device delivery endpoint. Unique per
// (user_id, device_id, platform); re-registration overwrites.
type PushToken struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	DeviceID   string     `db:"device_id" json:"device_id"`
	Platform   Platform   `db:"platform" json:"platform"`
	Token      string     `db:"token" json:"token"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
