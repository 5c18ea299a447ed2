package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lifehub/reminder-engine/internal/config"
	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/pkg/circuitbreaker"
	"github.com/lifehub/reminder-engine/pkg/logger"
)

// SMSSender delivers through the SMS gateway's HTTP API.
type SMSSender struct {
	cfg    config.SMSConfig
	client *http.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *logger.Logger
}

func NewSMSSender(cfg config.SMSConfig, logger *logger.Logger) *SMSSender {
	return &SMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "sms-provider",
			MaxFailures: 5,
			Interval:    30 * time.Second,
			Timeout:     time.Minute,
		}),
		logger: logger.WithComponent("sms_sender"),
	}
}

func (s *SMSSender) Channel() model.Channel {
	return model.ChannelSMS
}

type smsMessage struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

func (s *SMSSender) Send(ctx context.Context, n *model.Notification, prefs *model.UserPreferences) error {
	if !s.cfg.Enabled {
		return PermanentError(model.ChannelSMS, fmt.Errorf("sms channel disabled"))
	}
	if prefs == nil || prefs.PhoneNumber == "" {
		return PermanentError(model.ChannelSMS, fmt.Errorf("no phone number for user %s", n.UserID))
	}

	body := n.Title
	if n.Body != "" {
		body = fmt.Sprintf("%s: %s", n.Title, n.Body)
	}
	payload, err := json.Marshal(smsMessage{
		To:   prefs.PhoneNumber,
		From: s.cfg.From,
		Body: body,
	})
	if err != nil {
		return PermanentError(model.ChannelSMS, err)
	}

	return s.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return PermanentError(model.ChannelSMS, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return TransientError(model.ChannelSMS, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return PermanentError(model.ChannelSMS, fmt.Errorf("sms rejected (%d)", resp.StatusCode))
		default:
			return TransientError(model.ChannelSMS, fmt.Errorf("sms provider error (%d)", resp.StatusCode))
		}
	})
}
