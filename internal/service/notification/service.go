package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/patrickmn/go-cache"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/recurrence"
	"github.com/lifehub/reminder-engine/internal/repository"
	apperr "github.com/lifehub/reminder-engine/pkg/errors"
	"github.com/lifehub/reminder-engine/pkg/logger"
	"github.com/lifehub/reminder-engine/pkg/messaging"
)

const (
	minSnoozeMinutes = 1
	maxSnoozeMinutes = 1440

	typeCacheTTL     = 15 * time.Minute
	typeCacheCleanup = time.Hour
)

// Policy carries the store-level scheduling policy.
type Policy struct {
	MaxSnoozeCount int
}

// Service is the notification store facade: creation with recurrence
// setup, snooze, cancel, the append-only delivery log and interaction
// recording. Status transitions beyond these go through the claim and
// dispatch paths only.
type Service struct {
	repo         repository.NotificationRepository
	deliveryLog  repository.DeliveryLogRepository
	interactions repository.InteractionRepository
	types        repository.NotificationTypeRepository
	broker       messaging.Broker
	logger       *logger.Logger
	policy       Policy
	typeCache    *cache.Cache

	now func() time.Time
}

func NewService(
	repo repository.NotificationRepository,
	deliveryLog repository.DeliveryLogRepository,
	interactions repository.InteractionRepository,
	types repository.NotificationTypeRepository,
	broker messaging.Broker,
	logger *logger.Logger,
	policy Policy,
) *Service {
	if policy.MaxSnoozeCount <= 0 {
		policy.MaxSnoozeCount = 3
	}
	return &Service{
		repo:         repo,
		deliveryLog:  deliveryLog,
		interactions: interactions,
		types:        types,
		broker:       broker,
		logger:       logger,
		policy:       policy,
		typeCache:    cache.New(typeCacheTTL, typeCacheCleanup),
		now:          time.Now,
	}
}

// Create validates and persists a new notification. Delivery methods
// default to the notification type's configuration when the request
// omits them.
func (s *Service) Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error) {
	if req == nil {
		return nil, apperr.Validation("request cannot be empty", nil)
	}
	if req.UserID == uuid.Nil {
		return nil, apperr.Validation("user_id is required", nil)
	}
	if req.Title == "" {
		return nil, apperr.Validation("title is required", nil)
	}
	if req.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduled_at is required", nil)
	}

	typ, err := s.notificationType(ctx, req.TypeKey)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}
	if !priority.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown priority %q", req.Priority), nil)
	}

	methods := req.DeliveryMethods
	if len(methods) == 0 {
		methods = typ.DefaultDeliveryMethods
	}
	if len(methods) == 0 {
		return nil, apperr.Validation("delivery_methods cannot be empty", nil)
	}
	for _, m := range methods {
		if !model.Channel(m).Valid() {
			return nil, apperr.Validation(fmt.Sprintf("unknown delivery method %q", m), nil)
		}
	}

	pattern, interval, days, err := validateRepeat(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	n := &model.Notification{
		ID:                uuid.New(),
		UserID:            req.UserID,
		TypeKey:           req.TypeKey,
		Title:             req.Title,
		Body:              req.Body,
		Payload:           req.Payload,
		Priority:          priority,
		ReferenceType:     req.ReferenceType,
		ReferenceID:       req.ReferenceID,
		ScheduledAt:       req.ScheduledAt,
		Status:            model.NotificationStatusPending,
		RepeatPattern:     pattern,
		RepeatInterval:    interval,
		RepeatDays:        days,
		RepeatUntil:       req.RepeatUntil,
		RepeatCount:       req.RepeatCount,
		OccurrenceChainID: uuid.New(),
		MaxSnoozeCount:    s.policy.MaxSnoozeCount,
		DeliveryMethods:   pq.StringArray(methods),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create notification: %w", err))
	}

	s.publish(ctx, messaging.EventCreated, n, nil)
	return n, nil
}

// CreateIfAbsent creates a notification unless an active one already
// references the same domain entity. Used by the auto-creation sources
// so a cron round never duplicates reminders.
func (s *Service) CreateIfAbsent(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, bool, error) {
	if req.ReferenceType != nil && req.ReferenceID != nil {
		exists, err := s.repo.ExistsActiveForReference(ctx, req.UserID, *req.ReferenceType, *req.ReferenceID)
		if err != nil {
			return nil, false, apperr.Internal(err)
		}
		if exists {
			return nil, false, nil
		}
	}
	n, err := s.Create(ctx, req)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("notification", err)
		}
		return nil, apperr.Internal(err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, filter *model.ListNotificationsFilter) ([]*model.Notification, error) {
	out, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// Snooze defers a pending or snoozed notification by minutes. Bounded
// both in duration and in how many times one notification can be
// snoozed.
func (s *Service) Snooze(ctx context.Context, id uuid.UUID, minutes int) (*model.Notification, error) {
	if minutes < minSnoozeMinutes || minutes > maxSnoozeMinutes {
		return nil, apperr.Validation(
			fmt.Sprintf("snooze minutes must be between %d and %d", minSnoozeMinutes, maxSnoozeMinutes), nil)
	}

	until := s.now().Add(time.Duration(minutes) * time.Minute)
	rows, err := s.repo.Snooze(ctx, id, until)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if rows == 0 {
		// The conditional update failed; fetch once to say why.
		n, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperr.NotFound("notification", err)
			}
			return nil, apperr.Internal(err)
		}
		if n.SnoozeCount >= n.MaxSnoozeCount {
			return nil, apperr.SnoozeLimit(fmt.Sprintf("snooze limit of %d reached", n.MaxSnoozeCount))
		}
		return nil, apperr.InvalidState(fmt.Sprintf("cannot snooze notification in status %q", n.Status), nil)
	}

	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.recordInteraction(ctx, n, model.InteractionSnoozed, model.Payload{"minutes": minutes})
	s.publish(ctx, messaging.EventSnoozed, n, map[string]interface{}{"snooze_until": until})
	return n, nil
}

// Cancel moves a pending or snoozed notification to the terminal
// cancelled state. Processing and terminal notifications reject it.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	rows, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if rows == 0 {
		n, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("notification", err)
			}
			return apperr.Internal(err)
		}
		return apperr.InvalidState(fmt.Sprintf("cannot cancel notification in status %q", n.Status), nil)
	}

	s.publish(ctx, messaging.EventCancelled, &model.Notification{ID: id}, nil)
	return nil
}

// RecordDeliveryAttempt appends to the delivery log. Idempotent per
// (id, channel, attempt).
func (s *Service) RecordDeliveryAttempt(ctx context.Context, id uuid.UUID, channel model.Channel, outcome model.DeliveryOutcome, attempt int, attemptErr error) error {
	entry := &model.DeliveryAttempt{
		ID:             uuid.New(),
		NotificationID: id,
		Channel:        channel,
		Outcome:        outcome,
		Attempt:        attempt,
		CreatedAt:      s.now(),
	}
	if attemptErr != nil {
		msg := attemptErr.Error()
		entry.Error = &msg
	}
	if err := s.deliveryLog.RecordAttempt(ctx, entry); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ListDeliveryAttempts returns the delivery log for one notification,
// oldest first.
func (s *Service) ListDeliveryAttempts(ctx context.Context, id uuid.UUID) ([]*model.DeliveryAttempt, error) {
	attempts, err := s.deliveryLog.ListAttempts(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return attempts, nil
}

// RecordInteraction appends a user engagement event. Analytics only; it
// never affects scheduling.
func (s *Service) RecordInteraction(ctx context.Context, id uuid.UUID, action model.InteractionAction, payload model.Payload) error {
	if !action.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown interaction action %q", action), nil)
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	s.recordInteraction(ctx, n, action, payload)
	return nil
}

// CreateSuccessor generates the next occurrence of a repeating
// notification as a fresh pending record in the same chain. Returns
// (nil, nil) when the chain is exhausted.
func (s *Service) CreateSuccessor(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	if !n.Repeats() {
		return nil, nil
	}

	spec := recurrence.FromNotification(n)
	var remaining *int
	if n.RepeatCount != nil {
		r := *n.RepeatCount - 1
		remaining = &r
		spec.Remaining = remaining
	}

	next, ok := recurrence.Next(spec, n.ScheduledAt)
	if !ok {
		return nil, nil
	}

	now := s.now()
	successor := &model.Notification{
		ID:                uuid.New(),
		UserID:            n.UserID,
		TypeKey:           n.TypeKey,
		Title:             n.Title,
		Body:              n.Body,
		Payload:           n.Payload,
		Priority:          n.Priority,
		ReferenceType:     n.ReferenceType,
		ReferenceID:       n.ReferenceID,
		ScheduledAt:       next,
		Status:            model.NotificationStatusPending,
		RepeatPattern:     n.RepeatPattern,
		RepeatInterval:    n.RepeatInterval,
		RepeatDays:        n.RepeatDays,
		RepeatUntil:       n.RepeatUntil,
		RepeatCount:       remaining,
		OccurrenceChainID: n.OccurrenceChainID,
		MaxSnoozeCount:    n.MaxSnoozeCount,
		DeliveryMethods:   n.DeliveryMethods,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, successor); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create successor: %w", err))
	}

	s.publish(ctx, messaging.EventCreated, successor, map[string]interface{}{
		"chain_id":    n.OccurrenceChainID,
		"predecessor": n.ID,
	})
	return successor, nil
}

func (s *Service) notificationType(ctx context.Context, key string) (*model.NotificationType, error) {
	if key == "" {
		return nil, apperr.Validation("type_key is required", nil)
	}
	if cached, ok := s.typeCache.Get(key); ok {
		return cached.(*model.NotificationType), nil
	}
	typ, err := s.types.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Validation(fmt.Sprintf("unknown notification type %q", key), err)
		}
		return nil, apperr.Internal(err)
	}
	s.typeCache.Set(key, typ, cache.DefaultExpiration)
	return typ, nil
}

func (s *Service) recordInteraction(ctx context.Context, n *model.Notification, action model.InteractionAction, payload model.Payload) {
	event := &model.InteractionEvent{
		ID:             uuid.New(),
		NotificationID: n.ID,
		UserID:         n.UserID,
		Action:         action,
		Payload:        payload,
		CreatedAt:      s.now(),
	}
	if err := s.interactions.Record(ctx, event); err != nil {
		// Interaction logging is best-effort; the main operation stands.
		s.logger.Error(err, "failed to record interaction",
			"notification_id", n.ID.String(), "action", string(action))
	}
}

func (s *Service) publish(ctx context.Context, kind string, n *model.Notification, detail map[string]interface{}) {
	if s.broker == nil {
		return
	}
	event := messaging.NotificationEvent{
		Kind:           kind,
		NotificationID: n.ID,
		UserID:         n.UserID,
		TypeKey:        n.TypeKey,
		Status:         string(n.Status),
		Detail:         detail,
		OccurredAt:     s.now(),
	}
	if err := s.broker.Publish(ctx, messaging.ChannelNotificationEvents, event); err != nil {
		s.logger.Error(err, "failed to publish notification event",
			"kind", kind, "notification_id", n.ID.String())
	}
}

func validateRepeat(req *model.CreateNotificationRequest) (model.RepeatPattern, int, pq.Int64Array, error) {
	pattern := req.RepeatPattern
	if pattern == "" {
		pattern = model.RepeatNone
	}
	if !pattern.Valid() {
		return "", 0, nil, apperr.Validation(fmt.Sprintf("unknown repeat pattern %q", req.RepeatPattern), nil)
	}

	interval := req.RepeatInterval
	if interval == 0 {
		interval = 1
	}
	if interval < 1 {
		return "", 0, nil, apperr.Validation("repeat_interval must be positive", nil)
	}

	if len(req.RepeatDays) > 0 && pattern != model.RepeatWeekly {
		return "", 0, nil, apperr.Validation("repeat_days is only valid for weekly patterns", nil)
	}
	days := make(pq.Int64Array, 0, len(req.RepeatDays))
	for _, d := range req.RepeatDays {
		if d < 0 || d > 6 {
			return "", 0, nil, apperr.Validation(fmt.Sprintf("invalid weekday %d", d), nil)
		}
		days = append(days, int64(d))
	}

	if req.RepeatCount != nil && *req.RepeatCount < 1 {
		return "", 0, nil, apperr.Validation("repeat_count must be positive", nil)
	}

	return pattern, interval, days, nil
}
