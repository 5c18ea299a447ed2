package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
	apperr "github.com/lifehub/reminder-engine/pkg/errors"
	"github.com/lifehub/reminder-engine/pkg/logger"
)

// Service is the push token registry: device endpoint registration with
// last-write-wins upsert semantics, and deactivation on logout or
// provider-confirmed invalid tokens.
type Service struct {
	repo   repository.PushTokenRepository
	logger *logger.Logger
}

func NewService(repo repository.PushTokenRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterPushTokenRequest) (*model.PushToken, error) {
	if req == nil {
		return nil, apperr.Validation("request cannot be empty", nil)
	}
	if req.UserID == uuid.Nil {
		return nil, apperr.Validation("user_id is required", nil)
	}
	if req.DeviceID == "" {
		return nil, apperr.Validation("device_id is required", nil)
	}
	if !req.Platform.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown platform %q", req.Platform), nil)
	}
	if req.Token == "" {
		return nil, apperr.Validation("token is required", nil)
	}

	token := &model.PushToken{
		ID:       uuid.New(),
		UserID:   req.UserID,
		DeviceID: req.DeviceID,
		Platform: req.Platform,
		Token:    req.Token,
		IsActive: true,
	}
	if err := s.repo.Upsert(ctx, token); err != nil {
		return nil, apperr.Internal(err)
	}

	s.logger.Debug("push token registered",
		"user_id", req.UserID.String(), "platform", string(req.Platform))
	return token, nil
}

func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID, deviceID string, platform model.Platform) error {
	if err := s.repo.Deactivate(ctx, userID, deviceID, platform); err != nil {
		return apperr.NotFound("push token", err)
	}
	return nil
}

func (s *Service) DeactivateAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeactivateAll(ctx, userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// DeactivateInvalid handles a provider response naming a token as dead.
// Best-effort per token.
func (s *Service) DeactivateInvalid(ctx context.Context, token string) error {
	if err := s.repo.DeactivateByToken(ctx, token); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) ListActive(ctx context.Context, userID uuid.UUID, platform *model.Platform) ([]*model.PushToken, error) {
	tokens, err := s.repo.ListActive(ctx, userID, platform)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return tokens, nil
}

// MarkUsed stamps last_used_at after a successful push send.
func (s *Service) MarkUsed(ctx context.Context, ids []uuid.UUID, at time.Time) {
	if err := s.repo.TouchLastUsed(ctx, ids, at); err != nil {
		s.logger.Error(err, "failed to update push token usage")
	}
}
