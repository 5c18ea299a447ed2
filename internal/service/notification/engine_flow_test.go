package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehub/reminder-engine/internal/dispatch"
	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/pkg/logger"
	"github.com/lifehub/reminder-engine/pkg/metrics"
)

var flowMetrics = metrics.NewMetrics("notification_flow_test")

type defaultPrefs struct{}

func (defaultPrefs) Get(_ context.Context, userID uuid.UUID) (*model.UserPreferences, error) {
	return &model.UserPreferences{UserID: userID}, nil
}

type okSender struct {
	channel model.Channel
	calls   int
}

func (s *okSender) Channel() model.Channel { return s.channel }

func (s *okSender) Send(context.Context, *model.Notification, *model.UserPreferences) error {
	s.calls++
	return nil
}

// One full engine round over the real store facade and dispatcher:
// create, claim, send, then verify the terminal state and the chain
// successor.
func TestDailyReminderFullRound(t *testing.T) {
	f := newFixture(t)
	sender := &okSender{channel: model.ChannelPush}
	d := dispatch.NewDispatcher(f.repo, f.svc, defaultPrefs{}, []dispatch.Sender{sender},
		nil, flowMetrics, logger.NewLogger(nil), dispatch.Policy{})

	count := 3
	req := validRequest()
	req.ScheduledAt = time.Now().Add(-time.Second)
	req.RepeatPattern = model.RepeatDaily
	req.RepeatCount = &count
	req.DeliveryMethods = []string{"push"}

	created, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	claimed, err := f.repo.ClaimDue(context.Background(), 10, "worker-1", time.Now(), 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, created.ID, claimed[0].ID)
	require.Equal(t, model.NotificationStatusProcessing, claimed[0].Status)

	res, err := d.Dispatch(context.Background(), claimed[0])
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSent, res.Status)
	assert.Equal(t, 1, sender.calls)

	sent, err := f.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSent, sent.Status)

	// Exactly one successor, a day later, in the same chain, with the
	// occurrence budget decremented.
	list, err := f.svc.List(context.Background(), created.UserID, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)

	successor := list[1]
	assert.Equal(t, model.NotificationStatusPending, successor.Status)
	assert.Equal(t, created.OccurrenceChainID, successor.OccurrenceChainID)
	assert.True(t, successor.ScheduledAt.Equal(created.ScheduledAt.AddDate(0, 0, 1)),
		"successor at %s, want %s", successor.ScheduledAt, created.ScheduledAt.AddDate(0, 0, 1))
	require.NotNil(t, successor.RepeatCount)
	assert.Equal(t, 2, *successor.RepeatCount)

	// The delivery log holds the successful attempt; engagement analytics
	// got the delivered event.
	attempts, err := f.svc.ListDeliveryAttempts(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, model.ChannelPush, attempts[0].Channel)
	assert.Equal(t, model.DeliveryOutcomeSent, attempts[0].Outcome)

	require.Len(t, f.interactions.events, 1)
	assert.Equal(t, model.InteractionDelivered, f.interactions.events[0].Action)

	// The successor is not due yet; a second claim round gets nothing.
	claimed, err = f.repo.ClaimDue(context.Background(), 10, "worker-1", time.Now(), 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}
