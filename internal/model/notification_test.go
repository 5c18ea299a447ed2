package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationStatusValid(t *testing.T) {
	valid := []NotificationStatus{
		NotificationStatusPending,
		NotificationStatusProcessing,
		NotificationStatusSnoozed,
		NotificationStatusSent,
		NotificationStatusFailed,
		NotificationStatusCancelled,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), "status %q", s)
	}

	assert.False(t, NotificationStatus("").Valid())
	assert.False(t, NotificationStatus("done").Valid())
	assert.False(t, NotificationStatus("PENDING").Valid())
}

func TestNotificationStatusTerminal(t *testing.T) {
	assert.True(t, NotificationStatusSent.Terminal())
	assert.True(t, NotificationStatusFailed.Terminal())
	assert.True(t, NotificationStatusCancelled.Terminal())

	assert.False(t, NotificationStatusPending.Terminal())
	assert.False(t, NotificationStatusProcessing.Terminal())
	assert.False(t, NotificationStatusSnoozed.Terminal())
}

func TestPriorityEscalateCapsAtUrgent(t *testing.T) {
	assert.Equal(t, PriorityNormal, PriorityLow.Escalate())
	assert.Equal(t, PriorityHigh, PriorityNormal.Escalate())
	assert.Equal(t, PriorityUrgent, PriorityHigh.Escalate())
	assert.Equal(t, PriorityUrgent, PriorityUrgent.Escalate())
}
