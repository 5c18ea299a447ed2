// Package recurrence computes the next occurrence of a repeating
// reminder. It is pure: no clock, no I/O.
package recurrence

import (
	"sort"
	"time"

	"github.com/lifehub/reminder-engine/internal/model"
)

// Spec is the repeat specification carried by a notification.
type Spec struct {
	Pattern  model.RepeatPattern
	Interval int
	// Days holds weekday numbers (0=Sunday .. 6=Saturday), only
	// meaningful for weekly patterns.
	Days []int
	// Until, when set, is an inclusive cutoff: occurrences after it
	// are not generated.
	Until *time.Time
	// Remaining, when set, is the number of occurrences still allowed.
	// The store decrements it on each successor it creates.
	Remaining *int
}

// FromNotification extracts the repeat spec from a notification record.
func FromNotification(n *model.Notification) Spec {
	days := make([]int, 0, len(n.RepeatDays))
	for _, d := range n.RepeatDays {
		days = append(days, int(d))
	}
	return Spec{
		Pattern:   n.RepeatPattern,
		Interval:  n.RepeatInterval,
		Days:      days,
		Until:     n.RepeatUntil,
		Remaining: n.RepeatCount,
	}
}

// Next returns the occurrence following last, or false when the chain is
// exhausted: the pattern does not repeat, the computed instant falls
// after Until, or Remaining is spent.
func Next(spec Spec, last time.Time) (time.Time, bool) {
	if spec.Pattern == "" || spec.Pattern == model.RepeatNone {
		return time.Time{}, false
	}
	if spec.Remaining != nil && *spec.Remaining <= 0 {
		return time.Time{}, false
	}

	interval := spec.Interval
	if interval < 1 {
		interval = 1
	}

	var next time.Time
	switch spec.Pattern {
	case model.RepeatDaily, model.RepeatCustom:
		next = last.AddDate(0, 0, interval)
	case model.RepeatWeekly:
		next = nextWeekly(last, interval, spec.Days)
	case model.RepeatMonthly:
		next = addMonthsClamped(last, interval)
	case model.RepeatYearly:
		next = addMonthsClamped(last, 12*interval)
	default:
		return time.Time{}, false
	}

	if spec.Until != nil && next.After(*spec.Until) {
		return time.Time{}, false
	}
	return next, true
}

// nextWeekly advances to the next date whose weekday is in days. Within
// the week the scan moves day by day; once the remaining weekdays of the
// current week are exhausted the step skips ahead interval weeks to the
// first selected weekday. An empty day set degenerates to
// weekly-by-interval on the original weekday.
func nextWeekly(last time.Time, interval int, days []int) time.Time {
	if len(days) == 0 {
		return last.AddDate(0, 0, 7*interval)
	}

	set := make([]int, 0, len(days))
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		set = append(set, d)
	}
	if len(set) == 0 {
		return last.AddDate(0, 0, 7*interval)
	}
	sort.Ints(set)

	wd := int(last.Weekday())
	for _, d := range set {
		if d > wd {
			return last.AddDate(0, 0, d-wd)
		}
	}
	// Week cycle complete; jump interval weeks to the first selected day.
	delta := (7 - wd + set[0]) + 7*(interval-1)
	return last.AddDate(0, 0, delta)
}

// addMonthsClamped adds months keeping the day-of-month, clamping to the
// last valid day when the target month is shorter (Jan 31 +1mo = Feb 28).
// time.AddDate alone would normalize Feb 31 into early March.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(firstOfTarget.Year(), firstOfTarget.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
