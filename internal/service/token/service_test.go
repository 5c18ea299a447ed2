package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehub/reminder-engine/internal/model"
	apperr "github.com/lifehub/reminder-engine/pkg/errors"
	"github.com/lifehub/reminder-engine/pkg/logger"
)

type key struct {
	user     uuid.UUID
	device   string
	platform model.Platform
}

// memTokenRepo applies the (user_id, device_id, platform) upsert rule.
type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[key]*model.PushToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[key]*model.PushToken)}
}

func (r *memTokenRepo) Upsert(_ context.Context, t *model.PushToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{t.UserID, t.DeviceID, t.Platform}
	if existing, ok := r.tokens[k]; ok {
		existing.Token = t.Token
		existing.IsActive = true
		return nil
	}
	cp := *t
	r.tokens[k] = &cp
	return nil
}

func (r *memTokenRepo) Deactivate(_ context.Context, userID uuid.UUID, deviceID string, platform model.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[key{userID, deviceID, platform}]; ok {
		t.IsActive = false
	}
	return nil
}

func (r *memTokenRepo) DeactivateAll(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID {
			t.IsActive = false
		}
	}
	return nil
}

func (r *memTokenRepo) DeactivateByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == token {
			t.IsActive = false
		}
	}
	return nil
}

func (r *memTokenRepo) ListActive(_ context.Context, userID uuid.UUID, platform *model.Platform) ([]*model.PushToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PushToken
	for _, t := range r.tokens {
		if t.UserID != userID || !t.IsActive {
			continue
		}
		if platform != nil && t.Platform != *platform {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memTokenRepo) TouchLastUsed(_ context.Context, ids []uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		for _, id := range ids {
			if t.ID == id {
				ts := at
				t.LastUsedAt = &ts
			}
		}
	}
	return nil
}

func validRegistration() *model.RegisterPushTokenRequest {
	return &model.RegisterPushTokenRequest{
		UserID:   uuid.New(),
		DeviceID: "pixel-8",
		Platform: model.PlatformAndroid,
		Token:    "fcm-token-1",
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemTokenRepo(), logger.NewLogger(nil))
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*model.RegisterPushTokenRequest)
	}{
		{"missing user", func(r *model.RegisterPushTokenRequest) { r.UserID = uuid.Nil }},
		{"missing device", func(r *model.RegisterPushTokenRequest) { r.DeviceID = "" }},
		{"bad platform", func(r *model.RegisterPushTokenRequest) { r.Platform = "blackberry" }},
		{"missing token", func(r *model.RegisterPushTokenRequest) { r.Token = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration()
			tt.mutate(req)
			_, err := svc.Register(ctx, req)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func TestRegisterOverwritesSameDevice(t *testing.T) {
	repo := newMemTokenRepo()
	svc := NewService(repo, logger.NewLogger(nil))
	ctx := context.Background()

	req := validRegistration()
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	req.Token = "fcm-token-2"
	_, err = svc.Register(ctx, req)
	require.NoError(t, err)

	active, err := svc.ListActive(ctx, req.UserID, nil)
	require.NoError(t, err)
	require.Len(t, active, 1, "re-registration must not create a second row")
	assert.Equal(t, "fcm-token-2", active[0].Token)
}

func TestDeactivateFlows(t *testing.T) {
	repo := newMemTokenRepo()
	svc := NewService(repo, logger.NewLogger(nil))
	ctx := context.Background()

	android := validRegistration()
	_, err := svc.Register(ctx, android)
	require.NoError(t, err)

	web := &model.RegisterPushTokenRequest{
		UserID:   android.UserID,
		DeviceID: "firefox",
		Platform: model.PlatformWeb,
		Token:    "webpush-token",
	}
	_, err = svc.Register(ctx, web)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, android.UserID, android.DeviceID, android.Platform))
	active, err := svc.ListActive(ctx, android.UserID, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, model.PlatformWeb, active[0].Platform)

	require.NoError(t, svc.DeactivateAll(ctx, android.UserID))
	active, err = svc.ListActive(ctx, android.UserID, nil)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeactivateInvalidByProviderToken(t *testing.T) {
	repo := newMemTokenRepo()
	svc := NewService(repo, logger.NewLogger(nil))
	ctx := context.Background()

	req := validRegistration()
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateInvalid(ctx, req.Token))
	active, err := svc.ListActive(ctx, req.UserID, nil)
	require.NoError(t, err)
	assert.Empty(t, active)
}
