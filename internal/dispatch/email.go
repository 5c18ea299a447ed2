package dispatch

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/lifehub/reminder-engine/internal/config"
	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/pkg/logger"
)

// EmailSender delivers over SMTP. The recipient address comes from the
// user's notification settings.
type EmailSender struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewEmailSender(cfg config.EmailConfig, logger *logger.Logger) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger.WithComponent("email_sender"),
	}
}

func (s *EmailSender) Channel() model.Channel {
	return model.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, n *model.Notification, prefs *model.UserPreferences) error {
	if prefs == nil || prefs.Email == "" {
		return PermanentError(model.ChannelEmail, fmt.Errorf("no email address for user %s", n.UserID))
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", prefs.Email)
	m.SetHeader("Subject", n.Title)
	m.SetBody("text/plain", n.Body)

	// gomail has no context support; run the dial in a goroutine so a
	// hung SMTP server cannot outlive the channel timeout.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return TransientError(model.ChannelEmail, ctx.Err())
	case err := <-done:
		if err != nil {
			return TransientError(model.ChannelEmail, err)
		}
		return nil
	}
}
