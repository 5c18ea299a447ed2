package model

import (
	"time"

	"github.com/google/uuid"
)

// UserPreferences is the read-only slice of the user-settings table the
// engine consumes: quiet hours, escalation policy and contact endpoints
// for the email/sms channels. Owned and written by the profile service.
type UserPreferences struct {
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	Email             string    `db:"email" json:"email"`
	PhoneNumber       string    `db:"phone_number" json:"phone_number"`
	Timezone          string    `db:"timezone" json:"timezone"`
	QuietHoursEnabled bool      `db:"quiet_hours_enabled" json:"quiet_hours_enabled"`
	QuietStartMinute  int       `db:"quiet_start_minute" json:"quiet_start_minute"`
	QuietEndMinute    int       `db:"quiet_end_minute" json:"quiet_end_minute"`
	EscalationEnabled bool      `db:"escalation_enabled" json:"escalation_enabled"`
}

// Location resolves the user's timezone, falling back to UTC.
func (p *UserPreferences) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InQuietHours reports whether t falls inside the user's quiet window.
// The window is [start, end) in local minutes-of-day and may wrap
// midnight (22:00-06:00).
func (p *UserPreferences) InQuietHours(t time.Time) bool {
	if p == nil || !p.QuietHoursEnabled {
		return false
	}
	local := t.In(p.Location())
	minute := local.Hour()*60 + local.Minute()
	start, end := p.QuietStartMinute, p.QuietEndMinute
	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// QuietHoursEnd returns the next instant at which the quiet window
// ends, given t inside the window.
func (p *UserPreferences) QuietHoursEnd(t time.Time) time.Time {
	local := t.In(p.Location())
	end := time.Date(local.Year(), local.Month(), local.Day(),
		p.QuietEndMinute/60, p.QuietEndMinute%60, 0, 0, p.Location())
	if !end.After(local) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}
