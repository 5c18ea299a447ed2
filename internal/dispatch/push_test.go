package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehub/reminder-engine/internal/config"
	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
	"github.com/lifehub/reminder-engine/internal/service/token"
	"github.com/lifehub/reminder-engine/pkg/logger"
)

// memTokens is an in-memory push token registry.
type memTokens struct {
	tokens []*model.PushToken
}

var _ repository.PushTokenRepository = (*memTokens)(nil)

func (m *memTokens) add(userID uuid.UUID, device, value string) *model.PushToken {
	t := &model.PushToken{
		ID:       uuid.New(),
		UserID:   userID,
		DeviceID: device,
		Platform: model.PlatformAndroid,
		Token:    value,
		IsActive: true,
	}
	m.tokens = append(m.tokens, t)
	return t
}

func (m *memTokens) Upsert(_ context.Context, t *model.PushToken) error {
	m.tokens = append(m.tokens, t)
	return nil
}

func (m *memTokens) Deactivate(_ context.Context, userID uuid.UUID, device string, platform model.Platform) error {
	for _, t := range m.tokens {
		if t.UserID == userID && t.DeviceID == device && t.Platform == platform {
			t.IsActive = false
		}
	}
	return nil
}

func (m *memTokens) DeactivateAll(_ context.Context, userID uuid.UUID) error {
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.IsActive = false
		}
	}
	return nil
}

func (m *memTokens) DeactivateByToken(_ context.Context, value string) error {
	for _, t := range m.tokens {
		if t.Token == value {
			t.IsActive = false
		}
	}
	return nil
}

func (m *memTokens) ListActive(_ context.Context, userID uuid.UUID, platform *model.Platform) ([]*model.PushToken, error) {
	var out []*model.PushToken
	for _, t := range m.tokens {
		if t.UserID == userID && t.IsActive && (platform == nil || t.Platform == *platform) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTokens) TouchLastUsed(_ context.Context, ids []uuid.UUID, at time.Time) error {
	for _, id := range ids {
		for _, t := range m.tokens {
			if t.ID == id {
				ts := at
				t.LastUsedAt = &ts
			}
		}
	}
	return nil
}

// pushProvider maps device token values to HTTP status codes.
func pushProvider(t *testing.T, statuses map[string]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg pushMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		status, ok := statuses[msg.Token]
		if !ok {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}))
}

func newPushSender(endpoint string, repo *memTokens) *PushSender {
	svc := token.NewService(repo, logger.NewLogger(nil))
	return NewPushSender(config.PushConfig{
		Enabled:  true,
		Endpoint: endpoint,
		APIKey:   "test-key",
	}, svc, logger.NewLogger(nil))
}

func pushNotification(userID uuid.UUID) *model.Notification {
	return &model.Notification{
		ID:              uuid.New(),
		UserID:          userID,
		TypeKey:         "task_due",
		Title:           "Water the plants",
		Priority:        model.PriorityNormal,
		DeliveryMethods: []string{"push"},
	}
}

func TestPushMixedTokenFailuresStayRetryable(t *testing.T) {
	userID := uuid.New()
	repo := &memTokens{}
	flaky := repo.add(userID, "pixel-8", "flaky-token")
	dead := repo.add(userID, "old-phone", "dead-token")

	srv := pushProvider(t, map[string]int{
		"flaky-token": http.StatusServiceUnavailable,
		"dead-token":  http.StatusGone,
	})
	defer srv.Close()

	err := newPushSender(srv.URL, repo).Send(context.Background(), pushNotification(userID), nil)
	require.Error(t, err)

	// The dead token alone must not make the whole channel permanent
	// while another token can still succeed on retry.
	assert.False(t, IsPermanent(err))
	assert.False(t, dead.IsActive)
	assert.True(t, flaky.IsActive)
}

func TestPushAllTokensInvalidIsPermanent(t *testing.T) {
	userID := uuid.New()
	repo := &memTokens{}
	a := repo.add(userID, "pixel-8", "gone-a")
	b := repo.add(userID, "tablet", "gone-b")

	srv := pushProvider(t, map[string]int{
		"gone-a": http.StatusGone,
		"gone-b": http.StatusNotFound,
	})
	defer srv.Close()

	err := newPushSender(srv.URL, repo).Send(context.Background(), pushNotification(userID), nil)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.False(t, a.IsActive)
	assert.False(t, b.IsActive)
}

func TestPushAnyTokenSuccessWins(t *testing.T) {
	userID := uuid.New()
	repo := &memTokens{}
	dead := repo.add(userID, "old-phone", "dead-token")
	good := repo.add(userID, "pixel-8", "good-token")

	srv := pushProvider(t, map[string]int{"dead-token": http.StatusGone})
	defer srv.Close()

	err := newPushSender(srv.URL, repo).Send(context.Background(), pushNotification(userID), nil)
	require.NoError(t, err)

	assert.False(t, dead.IsActive)
	require.NotNil(t, good.LastUsedAt)
}

func TestPushNoActiveTokensIsPermanent(t *testing.T) {
	srv := pushProvider(t, nil)
	defer srv.Close()

	err := newPushSender(srv.URL, &memTokens{}).Send(context.Background(), pushNotification(uuid.New()), nil)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}
