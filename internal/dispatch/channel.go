// Package dispatch fans a claimed notification out across its delivery
// channels, applying quiet hours, per-channel retries and the
// notification-level retry budget.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lifehub/reminder-engine/internal/model"
)

// Sender delivers a notification over one channel. Implementations must
// honor ctx cancellation; the dispatcher bounds every call with a
// timeout.
type Sender interface {
	Channel() model.Channel
	Send(ctx context.Context, n *model.Notification, prefs *model.UserPreferences) error
}

// ChannelError classifies a delivery failure. Permanent errors (invalid
// push token, malformed recipient) are never retried; everything else is
// treated as transient.
type ChannelError struct {
	Channel   model.Channel
	Permanent bool
	Err       error
}

func (e *ChannelError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s channel %s error: %v", e.Channel, kind, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// PermanentError wraps err as non-retryable.
func PermanentError(ch model.Channel, err error) *ChannelError {
	return &ChannelError{Channel: ch, Permanent: true, Err: err}
}

// TransientError wraps err as retryable.
func TransientError(ch model.Channel, err error) *ChannelError {
	return &ChannelError{Channel: ch, Err: err}
}

// IsPermanent reports whether err is a non-retryable channel failure.
func IsPermanent(err error) bool {
	var chErr *ChannelError
	return errors.As(err, &chErr) && chErr.Permanent
}

// attemptBackoff is the in-process wait between retries of a single
// channel within one dispatch round.
func attemptBackoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << uint(attempt-1)
	if d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}

// requeueBackoff spaces out dispatch rounds after transient failures,
// doubling per completed round.
func requeueBackoff(round int, base, cap time.Duration) time.Duration {
	d := base << uint(round)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}
