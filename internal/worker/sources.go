package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lifehub/reminder-engine/internal/model"
)

// The sources below read the surrounding product's domain tables
// (tasks, habits, prayer times, bills) to find entities that need a
// reminder. They only read; the owning services write those tables.
// Idempotency comes from the reference dedupe in CreateIfAbsent.

func strPtr(s string) *string { return &s }

type taskRow struct {
	ID      uuid.UUID `db:"id"`
	UserID  uuid.UUID `db:"user_id"`
	Title   string    `db:"title"`
	DueDate time.Time `db:"due_date"`
}

// TaskSource schedules a reminder shortly before a task's due date.
type TaskSource struct {
	db   *sqlx.DB
	lead time.Duration
}

func NewTaskSource(db *sqlx.DB, lead time.Duration) *TaskSource {
	if lead <= 0 {
		lead = time.Hour
	}
	return &TaskSource{db: db, lead: lead}
}

func (s *TaskSource) Name() string { return "tasks" }

func (s *TaskSource) Due(ctx context.Context, now time.Time) ([]*model.CreateNotificationRequest, error) {
	query := `
		SELECT id, user_id, title, due_date
		FROM tasks
		WHERE completed_at IS NULL
		  AND due_date > $1
		  AND due_date <= $2
	`
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, now, now.Add(s.lead)); err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}

	out := make([]*model.CreateNotificationRequest, 0, len(rows))
	for _, t := range rows {
		out = append(out, &model.CreateNotificationRequest{
			UserID:        t.UserID,
			TypeKey:       "task_due",
			Title:         fmt.Sprintf("Task due: %s", t.Title),
			Body:          fmt.Sprintf("%q is due at %s.", t.Title, t.DueDate.Format("15:04")),
			ScheduledAt:   t.DueDate.Add(-s.lead),
			Priority:      model.PriorityHigh,
			ReferenceType: strPtr("task"),
			ReferenceID:   strPtr(t.ID.String()),
		})
	}
	return out, nil
}

type habitRow struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	Name        string    `db:"name"`
	ReminderMin int       `db:"reminder_minute"`
}

// HabitSource schedules the daily check-in reminder at each habit's
// configured local minute-of-day.
type HabitSource struct {
	db *sqlx.DB
}

func NewHabitSource(db *sqlx.DB) *HabitSource {
	return &HabitSource{db: db}
}

func (s *HabitSource) Name() string { return "habits" }

func (s *HabitSource) Due(ctx context.Context, now time.Time) ([]*model.CreateNotificationRequest, error) {
	query := `
		SELECT id, user_id, name, reminder_minute
		FROM habits
		WHERE is_active AND reminder_minute IS NOT NULL
	`
	var rows []habitRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query habits: %w", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	out := make([]*model.CreateNotificationRequest, 0, len(rows))
	for _, h := range rows {
		at := startOfDay.Add(time.Duration(h.ReminderMin) * time.Minute)
		if at.Before(now) {
			at = at.AddDate(0, 0, 1)
		}
		out = append(out, &model.CreateNotificationRequest{
			UserID:        h.UserID,
			TypeKey:       "habit_check_in",
			Title:         fmt.Sprintf("Habit check-in: %s", h.Name),
			ScheduledAt:   at,
			Priority:      model.PriorityNormal,
			ReferenceType: strPtr("habit"),
			ReferenceID:   strPtr(h.ID.String() + ":" + at.Format("2006-01-02")),
		})
	}
	return out, nil
}

type prayerRow struct {
	UserID uuid.UUID `db:"user_id"`
	Name   string    `db:"name"`
	At     time.Time `db:"prayer_at"`
}

// PrayerSource schedules reminders for upcoming prayer times.
type PrayerSource struct {
	db *sqlx.DB
}

func NewPrayerSource(db *sqlx.DB) *PrayerSource {
	return &PrayerSource{db: db}
}

func (s *PrayerSource) Name() string { return "prayer_times" }

func (s *PrayerSource) Due(ctx context.Context, now time.Time) ([]*model.CreateNotificationRequest, error) {
	query := `
		SELECT user_id, name, prayer_at
		FROM prayer_times
		WHERE notify_enabled
		  AND prayer_at > $1
		  AND prayer_at <= $2
	`
	var rows []prayerRow
	if err := s.db.SelectContext(ctx, &rows, query, now, now.Add(24*time.Hour)); err != nil {
		return nil, fmt.Errorf("query prayer times: %w", err)
	}

	out := make([]*model.CreateNotificationRequest, 0, len(rows))
	for _, p := range rows {
		out = append(out, &model.CreateNotificationRequest{
			UserID:        p.UserID,
			TypeKey:       "prayer_time",
			Title:         fmt.Sprintf("Time for %s", p.Name),
			ScheduledAt:   p.At,
			Priority:      model.PriorityHigh,
			ReferenceType: strPtr("prayer"),
			ReferenceID:   strPtr(fmt.Sprintf("%s:%s:%s", p.UserID, p.Name, p.At.Format("2006-01-02"))),
		})
	}
	return out, nil
}

type billRow struct {
	ID      uuid.UUID `db:"id"`
	UserID  uuid.UUID `db:"user_id"`
	Name    string    `db:"name"`
	Amount  float64   `db:"amount"`
	DueDate time.Time `db:"due_date"`
}

// BillSource reminds about bills coming due within the lead window.
type BillSource struct {
	db       *sqlx.DB
	leadDays int
}

func NewBillSource(db *sqlx.DB, leadDays int) *BillSource {
	if leadDays <= 0 {
		leadDays = 3
	}
	return &BillSource{db: db, leadDays: leadDays}
}

func (s *BillSource) Name() string { return "bills" }

func (s *BillSource) Due(ctx context.Context, now time.Time) ([]*model.CreateNotificationRequest, error) {
	query := `
		SELECT id, user_id, name, amount, due_date
		FROM bills
		WHERE paid_at IS NULL
		  AND due_date > $1
		  AND due_date <= $2
	`
	var rows []billRow
	if err := s.db.SelectContext(ctx, &rows, query, now, now.AddDate(0, 0, s.leadDays)); err != nil {
		return nil, fmt.Errorf("query due bills: %w", err)
	}

	out := make([]*model.CreateNotificationRequest, 0, len(rows))
	for _, b := range rows {
		out = append(out, &model.CreateNotificationRequest{
			UserID:      b.UserID,
			TypeKey:     "bill_due",
			Title:       fmt.Sprintf("Bill due: %s", b.Name),
			Body:        fmt.Sprintf("%s (%.2f) is due on %s.", b.Name, b.Amount, b.DueDate.Format("Jan 2")),
			ScheduledAt: now,
			Payload: model.Payload{
				"amount":   b.Amount,
				"due_date": b.DueDate.Format(time.RFC3339),
			},
			Priority:      model.PriorityNormal,
			ReferenceType: strPtr("bill"),
			ReferenceID:   strPtr(b.ID.String()),
		})
	}
	return out, nil
}
