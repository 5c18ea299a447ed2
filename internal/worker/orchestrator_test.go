package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehub/reminder-engine/internal/dispatch"
	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/repository"
	"github.com/lifehub/reminder-engine/pkg/logger"
	"github.com/lifehub/reminder-engine/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("worker_test")

// memClaimStore mimics the FOR UPDATE SKIP LOCKED claim: under one
// lock, due pending rows move to processing exactly once.
type memClaimStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Notification
}

func newMemClaimStore(rows ...*model.Notification) *memClaimStore {
	s := &memClaimStore{rows: make(map[uuid.UUID]*model.Notification)}
	for _, n := range rows {
		s.rows[n.ID] = n
	}
	return s
}

func (s *memClaimStore) ClaimDue(_ context.Context, batchSize int, workerID string, now time.Time, processingTimeout time.Duration) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*model.Notification
	for _, n := range s.rows {
		switch {
		case n.Status == model.NotificationStatusPending && !n.ScheduledAt.After(now):
			due = append(due, n)
		case n.Status == model.NotificationStatusSnoozed && n.SnoozeUntil != nil && !n.SnoozeUntil.After(now):
			due = append(due, n)
		case n.Status == model.NotificationStatusProcessing && n.ClaimedAt != nil && n.ClaimedAt.Before(now.Add(-processingTimeout)):
			due = append(due, n)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority.Rank() != due[j].Priority.Rank() {
			return due[i].Priority.Rank() > due[j].Priority.Rank()
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > batchSize {
		due = due[:batchSize]
	}

	claimed := make([]*model.Notification, 0, len(due))
	for _, n := range due {
		n.Status = model.NotificationStatusProcessing
		n.ClaimedBy = &workerID
		at := now
		n.ClaimedAt = &at
		cp := *n
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (s *memClaimStore) CountByStatus(_ context.Context, status model.NotificationStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.rows {
		if n.Status == status {
			count++
		}
	}
	return count, nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []uuid.UUID
}

func (d *fakeDispatcher) Dispatch(_ context.Context, n *model.Notification) (*dispatch.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, n.ID)
	return &dispatch.Result{Status: model.NotificationStatusSent}, nil
}

type fakeCreator struct {
	mu   sync.Mutex
	refs map[string]bool
}

func (c *fakeCreator) CreateIfAbsent(_ context.Context, req *model.CreateNotificationRequest) (*model.Notification, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs == nil {
		c.refs = make(map[string]bool)
	}
	key := ""
	if req.ReferenceType != nil && req.ReferenceID != nil {
		key = *req.ReferenceType + "/" + *req.ReferenceID
	}
	if key != "" && c.refs[key] {
		return nil, false, nil
	}
	c.refs[key] = true
	return &model.Notification{ID: uuid.New(), UserID: req.UserID}, true, nil
}

type staticSource struct {
	name string
	out  []*model.CreateNotificationRequest
	err  error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Due(context.Context, time.Time) ([]*model.CreateNotificationRequest, error) {
	return s.out, s.err
}

func pendingAt(at time.Time, priority model.Priority) *model.Notification {
	return &model.Notification{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Status:      model.NotificationStatusPending,
		Priority:    priority,
		ScheduledAt: at,
	}
}

func newTestOrchestrator(store claimStore, d dispatcher, creator reminderCreator, sources []ReminderSource) *Orchestrator {
	return NewOrchestrator(store, d, creator, sources, nil, testMetrics,
		logger.NewLogger(nil), Config{BatchSize: 10, DispatchConcurrency: 4})
}

func TestRunOnceDispatchesOnlyDue(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	due := pendingAt(now.Add(-time.Minute), model.PriorityNormal)
	future := pendingAt(now.Add(time.Hour), model.PriorityNormal)
	store := newMemClaimStore(due, future)
	d := &fakeDispatcher{}

	o := newTestOrchestrator(store, d, &fakeCreator{}, nil)
	o.now = func() time.Time { return now }

	require.NoError(t, o.RunOnce(context.Background()))

	assert.Equal(t, []uuid.UUID{due.ID}, d.dispatched)
	assert.Equal(t, model.NotificationStatusPending, store.rows[future.ID].Status)
}

func TestRunOnceClaimsSnoozedAndOrphaned(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	snoozed := pendingAt(now.Add(-time.Hour), model.PriorityNormal)
	snoozed.Status = model.NotificationStatusSnoozed
	past := now.Add(-time.Minute)
	snoozed.SnoozeUntil = &past

	orphan := pendingAt(now.Add(-time.Hour), model.PriorityNormal)
	orphan.Status = model.NotificationStatusProcessing
	dead := now.Add(-time.Hour)
	orphan.ClaimedAt = &dead
	who := "worker-gone"
	orphan.ClaimedBy = &who

	store := newMemClaimStore(snoozed, orphan)
	d := &fakeDispatcher{}
	o := newTestOrchestrator(store, d, &fakeCreator{}, nil)
	o.now = func() time.Time { return now }
	o.config.ProcessingTimeout = 10 * time.Minute

	require.NoError(t, o.RunOnce(context.Background()))
	assert.Len(t, d.dispatched, 2)
}

func TestConcurrentOrchestratorsClaimExclusively(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	store := newMemClaimStore()
	for i := 0; i < 40; i++ {
		n := pendingAt(now.Add(-time.Minute), model.PriorityNormal)
		store.rows[n.ID] = n
	}
	d := &fakeDispatcher{}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		o := newTestOrchestrator(store, d, &fakeCreator{}, nil)
		o.now = func() time.Time { return now }
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, o.RunOnce(context.Background()))
		}()
	}
	wg.Wait()

	seen := make(map[uuid.UUID]int)
	for _, id := range d.dispatched {
		seen[id]++
	}
	assert.Len(t, seen, 40, "every notification dispatched")
	for id, count := range seen {
		assert.Equal(t, 1, count, "notification %s dispatched more than once", id)
	}
}

func TestClaimOrdersByPriorityThenSchedule(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	low := pendingAt(now.Add(-time.Minute), model.PriorityLow)
	urgent := pendingAt(now.Add(-time.Second), model.PriorityUrgent)
	normalOld := pendingAt(now.Add(-time.Hour), model.PriorityNormal)
	normalNew := pendingAt(now.Add(-time.Minute), model.PriorityNormal)
	store := newMemClaimStore(low, urgent, normalOld, normalNew)

	claimed, err := store.ClaimDue(context.Background(), 3, "w1", now, 10*time.Minute)
	require.NoError(t, err)

	require.Len(t, claimed, 3)
	assert.Equal(t, urgent.ID, claimed[0].ID)
	assert.Equal(t, normalOld.ID, claimed[1].ID)
	assert.Equal(t, normalNew.ID, claimed[2].ID)
	// The low priority row missed the batch and stays pending.
	assert.Equal(t, model.NotificationStatusPending, store.rows[low.ID].Status)
}

func TestGenerateRemindersIdempotentAcrossRounds(t *testing.T) {
	refType, refID := "bill", uuid.New().String()
	src := &staticSource{name: "bills", out: []*model.CreateNotificationRequest{{
		UserID:        uuid.New(),
		TypeKey:       "bill_due",
		Title:         "Bill due: electricity",
		ScheduledAt:   time.Now(),
		ReferenceType: &refType,
		ReferenceID:   &refID,
	}}}
	creator := &fakeCreator{}
	o := newTestOrchestrator(newMemClaimStore(), &fakeDispatcher{}, creator, []ReminderSource{src})

	require.NoError(t, o.RunOnce(context.Background()))
	require.NoError(t, o.RunOnce(context.Background()))

	assert.Len(t, creator.refs, 1)
}

func TestGenerateRemindersIsolatesSourceFailure(t *testing.T) {
	broken := &staticSource{name: "tasks", err: errors.New("table missing")}
	refType, refID := "habit", uuid.New().String()
	healthy := &staticSource{name: "habits", out: []*model.CreateNotificationRequest{{
		UserID:        uuid.New(),
		TypeKey:       "habit_check_in",
		Title:         "Habit check-in: stretch",
		ScheduledAt:   time.Now(),
		ReferenceType: &refType,
		ReferenceID:   &refID,
	}}}
	creator := &fakeCreator{}
	o := newTestOrchestrator(newMemClaimStore(), &fakeDispatcher{}, creator, []ReminderSource{broken, healthy})

	require.NoError(t, o.RunOnce(context.Background()))
	assert.Len(t, creator.refs, 1)
}

func TestConfigNormalizeDefaults(t *testing.T) {
	var c Config
	c.normalize()

	assert.Equal(t, time.Minute, c.PollInterval)
	assert.Equal(t, 50, c.BatchSize)
	assert.Equal(t, 8, c.DispatchConcurrency)
	assert.Equal(t, 10*time.Minute, c.ProcessingTimeout)
	assert.Equal(t, 90, c.RetentionDays)
	assert.Equal(t, time.Hour, c.CleanupInterval)
}

// retentionRepo stubs just the slice of the repository the cleanup
// worker touches.
type retentionRepo struct {
	repository.NotificationRepository
	mu     sync.Mutex
	cutoff time.Time
}

func (r *retentionRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoff = cutoff
	return 7, nil
}

type retentionInteractions struct {
	repository.InteractionRepository
	mu     sync.Mutex
	cutoff time.Time
}

func (r *retentionInteractions) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoff = cutoff
	return 2, nil
}

func TestRetentionWorkerUsesCutoff(t *testing.T) {
	notifications := &retentionRepo{}
	interactions := &retentionInteractions{}
	w := NewRetentionWorker(notifications, interactions, 90, testMetrics, logger.NewLogger(nil))

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.Cleanup(context.Background(), now))

	want := now.AddDate(0, 0, -90)
	assert.Equal(t, want, notifications.cutoff)
	assert.Equal(t, want, interactions.cutoff)
}
