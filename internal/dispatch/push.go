package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub/reminder-engine/internal/config"
	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/service/token"
	"github.com/lifehub/reminder-engine/pkg/circuitbreaker"
	"github.com/lifehub/reminder-engine/pkg/logger"
)

// PushSender delivers through the push provider's HTTP API, fanning out
// to every active device token the user has registered. Tokens the
// provider reports as invalid are deactivated in the registry.
type PushSender struct {
	cfg    config.PushConfig
	tokens *token.Service
	client *http.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *logger.Logger
}

func NewPushSender(cfg config.PushConfig, tokens *token.Service, logger *logger.Logger) *PushSender {
	return &PushSender{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: 15 * time.Second},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "push-provider",
			MaxFailures: 5,
			Interval:    30 * time.Second,
			Timeout:     time.Minute,
		}),
		logger: logger.WithComponent("push_sender"),
	}
}

func (s *PushSender) Channel() model.Channel {
	return model.ChannelPush
}

type pushMessage struct {
	Token    string            `json:"token"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority"`
	Data     map[string]string `json:"data,omitempty"`
}

type pushResponse struct {
	Error string `json:"error"`
}

func (s *PushSender) Send(ctx context.Context, n *model.Notification, _ *model.UserPreferences) error {
	if !s.cfg.Enabled {
		return PermanentError(model.ChannelPush, fmt.Errorf("push channel disabled"))
	}

	tokens, err := s.tokens.ListActive(ctx, n.UserID, nil)
	if err != nil {
		return TransientError(model.ChannelPush, err)
	}
	if len(tokens) == 0 {
		return PermanentError(model.ChannelPush, fmt.Errorf("no active push tokens for user %s", n.UserID))
	}

	data := map[string]string{
		"notification_id": n.ID.String(),
		"type_key":        n.TypeKey,
	}

	var delivered []uuid.UUID
	var transientErr, permanentErr error
	for _, t := range tokens {
		err := s.sendOne(ctx, t.Token, n, data)
		switch {
		case err == nil:
			delivered = append(delivered, t.ID)
		case IsPermanent(err):
			// Dead endpoint; drop it from the registry and keep going.
			s.logger.Warn("deactivating invalid push token",
				"user_id", n.UserID.String(), "device_id", t.DeviceID)
			if derr := s.tokens.DeactivateInvalid(ctx, t.Token); derr != nil {
				s.logger.Error(derr, "failed to deactivate push token")
			}
			permanentErr = err
		default:
			transientErr = err
		}
	}

	if len(delivered) > 0 {
		s.tokens.MarkUsed(ctx, delivered, time.Now())
		return nil
	}
	// Any retryable token failure keeps the channel retryable, no matter
	// how the other tokens fared.
	if transientErr != nil {
		return TransientError(model.ChannelPush, transientErr)
	}
	if permanentErr != nil {
		return PermanentError(model.ChannelPush, fmt.Errorf("no deliverable push tokens: %w", permanentErr))
	}
	return PermanentError(model.ChannelPush, fmt.Errorf("no deliverable push tokens"))
}

func (s *PushSender) sendOne(ctx context.Context, deviceToken string, n *model.Notification, data map[string]string) error {
	msg := pushMessage{
		Token:    deviceToken,
		Title:    n.Title,
		Body:     n.Body,
		Priority: string(n.Priority),
		Data:     data,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return PermanentError(model.ChannelPush, err)
	}

	return s.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return PermanentError(model.ChannelPush, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		if s.cfg.ProjectID != "" {
			req.Header.Set("X-Project-ID", s.cfg.ProjectID)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return TransientError(model.ChannelPush, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			// Provider says the token no longer exists.
			return PermanentError(model.ChannelPush, fmt.Errorf("token rejected: %s", readError(resp.Body)))
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return PermanentError(model.ChannelPush, fmt.Errorf("push rejected (%d): %s", resp.StatusCode, readError(resp.Body)))
		default:
			return TransientError(model.ChannelPush, fmt.Errorf("push provider error (%d)", resp.StatusCode))
		}
	})
}

func readError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var parsed pushResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(body)
}
