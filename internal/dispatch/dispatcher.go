package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/pkg/logger"
	"github.com/lifehub/reminder-engine/pkg/messaging"
	"github.com/lifehub/reminder-engine/pkg/metrics"
)

const (
	prefsCacheTTL     = 15 * time.Minute
	prefsCacheCleanup = time.Hour
)

// notificationStore is the slice of the repository the dispatcher
// writes: dispatch-round completion and quiet-hours deferral.
type notificationStore interface {
	CompleteDispatch(ctx context.Context, id uuid.UUID, status model.NotificationStatus, rescheduleAt *time.Time, priority model.Priority) error
	Defer(ctx context.Context, id uuid.UUID, until time.Time) error
}

// attemptRecorder is the store facade surface the dispatcher reports to.
type attemptRecorder interface {
	RecordDeliveryAttempt(ctx context.Context, id uuid.UUID, channel model.Channel, outcome model.DeliveryOutcome, attempt int, attemptErr error) error
	RecordInteraction(ctx context.Context, id uuid.UUID, action model.InteractionAction, payload model.Payload) error
	CreateSuccessor(ctx context.Context, n *model.Notification) (*model.Notification, error)
}

type preferencesReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.UserPreferences, error)
}

// Policy bounds retries and backoff for one notification.
type Policy struct {
	// ChannelMaxRetries caps send attempts per channel per round.
	ChannelMaxRetries int
	// RetryBudget caps dispatch rounds before the notification goes
	// terminal failed.
	RetryBudget int
	// BackoffBase/BackoffCap shape the requeue delay between rounds.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// ChannelTimeout bounds a single adapter call.
	ChannelTimeout time.Duration
}

func (p *Policy) normalize() {
	if p.ChannelMaxRetries <= 0 {
		p.ChannelMaxRetries = 3
	}
	if p.RetryBudget <= 0 {
		p.RetryBudget = 5
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = 30 * time.Second
	}
	if p.BackoffCap <= 0 {
		p.BackoffCap = 30 * time.Minute
	}
	if p.ChannelTimeout <= 0 {
		p.ChannelTimeout = 10 * time.Second
	}
}

// Result is the aggregate outcome of one dispatch round.
type Result struct {
	Status        model.NotificationStatus
	Deferred      bool
	RescheduledAt *time.Time
	Channels      map[model.Channel]model.DeliveryOutcome
}

// Dispatcher sends one claimed notification through each of its
// channels. Channels run concurrently and independently; the aggregate
// status follows any-channel-success.
type Dispatcher struct {
	store    notificationStore
	recorder attemptRecorder
	prefs    preferencesReader
	senders  map[model.Channel]Sender
	broker   messaging.Broker
	metrics  *metrics.Metrics
	logger   *logger.Logger
	policy   Policy

	prefsCache *cache.Cache
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
}

func NewDispatcher(
	store notificationStore,
	recorder attemptRecorder,
	prefs preferencesReader,
	senders []Sender,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger *logger.Logger,
	policy Policy,
) *Dispatcher {
	policy.normalize()

	byChannel := make(map[model.Channel]Sender, len(senders))
	for _, s := range senders {
		if s != nil {
			byChannel[s.Channel()] = s
		}
	}

	return &Dispatcher{
		store:      store,
		recorder:   recorder,
		prefs:      prefs,
		senders:    byChannel,
		broker:     broker,
		metrics:    m,
		logger:     logger.WithComponent("dispatcher"),
		policy:     policy,
		prefsCache: cache.New(prefsCacheTTL, prefsCacheCleanup),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Dispatch processes one claimed (status=processing) notification to a
// terminal or requeued state. Errors are returned only for store
// failures; channel failures are part of the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, n *model.Notification) (*Result, error) {
	timer := prometheus.NewTimer(d.metrics.DispatchDuration)
	defer timer.ObserveDuration()

	now := d.now()
	prefs := d.preferences(ctx, n.UserID)

	// Quiet hours defer the whole notification before any channel is
	// attempted; urgent bypasses.
	if prefs.InQuietHours(now) && n.Priority != model.PriorityUrgent {
		until := prefs.QuietHoursEnd(now)
		if err := d.store.Defer(ctx, n.ID, until); err != nil {
			return nil, fmt.Errorf("defer for quiet hours: %w", err)
		}
		d.metrics.NotificationsDeferred.Inc()
		d.logger.Debug("deferred for quiet hours",
			"notification_id", n.ID.String(), "until", until.Format(time.RFC3339))
		return &Result{
			Status:        model.NotificationStatusPending,
			Deferred:      true,
			RescheduledAt: &until,
		}, nil
	}

	outcomes := d.sendAll(ctx, n, prefs)

	anySuccess, anyRetryable := false, false
	for _, oc := range outcomes {
		switch oc {
		case model.DeliveryOutcomeSent:
			anySuccess = true
		case model.DeliveryOutcomeRetrying:
			anyRetryable = true
		}
	}

	result := &Result{Channels: outcomes}
	switch {
	case anySuccess:
		result.Status = model.NotificationStatusSent
		if err := d.store.CompleteDispatch(ctx, n.ID, model.NotificationStatusSent, nil, n.Priority); err != nil {
			return nil, fmt.Errorf("mark sent: %w", err)
		}
		d.metrics.NotificationsSent.Inc()
		d.afterSent(ctx, n)

	case anyRetryable && n.RetryCount < d.policy.RetryBudget:
		at := now.Add(requeueBackoff(n.RetryCount, d.policy.BackoffBase, d.policy.BackoffCap))
		priority := n.Priority
		if prefs.EscalationEnabled {
			priority = priority.Escalate()
		}
		result.Status = model.NotificationStatusPending
		result.RescheduledAt = &at
		if err := d.store.CompleteDispatch(ctx, n.ID, model.NotificationStatusPending, &at, priority); err != nil {
			return nil, fmt.Errorf("requeue: %w", err)
		}
		d.metrics.NotificationsRequeued.Inc()

	default:
		result.Status = model.NotificationStatusFailed
		if err := d.store.CompleteDispatch(ctx, n.ID, model.NotificationStatusFailed, nil, n.Priority); err != nil {
			return nil, fmt.Errorf("mark failed: %w", err)
		}
		d.metrics.NotificationsFailed.Inc()
		d.publish(ctx, messaging.EventFailed, n, nil)
	}

	return result, nil
}

// sendAll runs every requested channel concurrently, each under its own
// per-attempt timeout, and returns the per-channel outcomes.
func (d *Dispatcher) sendAll(ctx context.Context, n *model.Notification, prefs *model.UserPreferences) map[model.Channel]model.DeliveryOutcome {
	channels := n.Channels()
	outcomes := make(map[model.Channel]model.DeliveryOutcome, len(channels))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch model.Channel) {
			defer wg.Done()
			oc := d.sendChannel(ctx, n, ch, prefs)
			mu.Lock()
			outcomes[ch] = oc
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	return outcomes
}

// sendChannel attempts one channel with bounded retries and in-process
// backoff. Attempt numbers continue across dispatch rounds so the
// delivery log stays unique.
func (d *Dispatcher) sendChannel(ctx context.Context, n *model.Notification, ch model.Channel, prefs *model.UserPreferences) model.DeliveryOutcome {
	sender, ok := d.senders[ch]
	if !ok {
		d.logger.Warn("no sender configured for channel", "channel", string(ch))
		d.recordAttempt(ctx, n.ID, ch, model.DeliveryOutcomeFailed, d.attemptNumber(n, 1),
			fmt.Errorf("channel %s not configured", ch))
		d.metrics.ChannelFailures.WithLabelValues(string(ch)).Inc()
		return model.DeliveryOutcomeFailed
	}

	var lastErr error
	for attempt := 1; attempt <= d.policy.ChannelMaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.policy.ChannelTimeout)
		err := sender.Send(attemptCtx, n, prefs)
		cancel()

		attemptNo := d.attemptNumber(n, attempt)
		switch {
		case err == nil:
			d.recordAttempt(ctx, n.ID, ch, model.DeliveryOutcomeSent, attemptNo, nil)
			d.metrics.ChannelAttempts.WithLabelValues(string(ch), "sent").Inc()
			return model.DeliveryOutcomeSent

		case IsPermanent(err):
			d.recordAttempt(ctx, n.ID, ch, model.DeliveryOutcomeFailed, attemptNo, err)
			d.metrics.ChannelAttempts.WithLabelValues(string(ch), "failed").Inc()
			d.metrics.ChannelFailures.WithLabelValues(string(ch)).Inc()
			return model.DeliveryOutcomeFailed

		default:
			lastErr = err
			d.recordAttempt(ctx, n.ID, ch, model.DeliveryOutcomeRetrying, attemptNo, err)
			d.metrics.ChannelAttempts.WithLabelValues(string(ch), "retrying").Inc()
			if attempt < d.policy.ChannelMaxRetries {
				d.sleep(ctx, attemptBackoff(attempt))
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	d.logger.Warn("channel exhausted in-round retries",
		"notification_id", n.ID.String(), "channel", string(ch), "error", fmt.Sprint(lastErr))
	return model.DeliveryOutcomeRetrying
}

// attemptNumber keeps the per-channel attempt counter monotonic across
// requeued rounds.
func (d *Dispatcher) attemptNumber(n *model.Notification, attemptInRound int) int {
	return n.RetryCount*d.policy.ChannelMaxRetries + attemptInRound
}

func (d *Dispatcher) afterSent(ctx context.Context, n *model.Notification) {
	if err := d.recorder.RecordInteraction(ctx, n.ID, model.InteractionDelivered, nil); err != nil {
		d.logger.Error(err, "failed to record delivery interaction", "notification_id", n.ID.String())
	}

	successor, err := d.recorder.CreateSuccessor(ctx, n)
	if err != nil {
		d.logger.Error(err, "failed to create chain successor", "notification_id", n.ID.String())
	} else if successor != nil {
		d.logger.Debug("created chain successor",
			"chain_id", n.OccurrenceChainID.String(),
			"next_at", successor.ScheduledAt.Format(time.RFC3339))
	}

	d.publish(ctx, messaging.EventSent, n, nil)
}

func (d *Dispatcher) recordAttempt(ctx context.Context, id uuid.UUID, ch model.Channel, oc model.DeliveryOutcome, attempt int, err error) {
	if rerr := d.recorder.RecordDeliveryAttempt(ctx, id, ch, oc, attempt, err); rerr != nil {
		d.logger.Error(rerr, "failed to record delivery attempt",
			"notification_id", id.String(), "channel", string(ch))
	}
}

func (d *Dispatcher) preferences(ctx context.Context, userID uuid.UUID) *model.UserPreferences {
	key := userID.String()
	if cached, ok := d.prefsCache.Get(key); ok {
		return cached.(*model.UserPreferences)
	}
	prefs, err := d.prefs.Get(ctx, userID)
	if err != nil {
		d.logger.Error(err, "failed to load user preferences; using defaults", "user_id", key)
		return &model.UserPreferences{UserID: userID}
	}
	d.prefsCache.Set(key, prefs, cache.DefaultExpiration)
	return prefs
}

func (d *Dispatcher) publish(ctx context.Context, kind string, n *model.Notification, detail map[string]interface{}) {
	if d.broker == nil {
		return
	}
	event := messaging.NotificationEvent{
		Kind:           kind,
		NotificationID: n.ID,
		UserID:         n.UserID,
		TypeKey:        n.TypeKey,
		OccurredAt:     d.now(),
		Detail:         detail,
	}
	if err := d.broker.Publish(ctx, messaging.ChannelNotificationEvents, event); err != nil {
		d.logger.Error(err, "failed to publish dispatch event", "kind", kind)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
