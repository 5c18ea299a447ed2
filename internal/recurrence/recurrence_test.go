package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehub/reminder-engine/internal/model"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNext_Daily(t *testing.T) {
	next, ok := Next(Spec{Pattern: model.RepeatDaily, Interval: 1}, date(2025, time.March, 10, 9, 0))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 11, 9, 0), next)

	next, ok = Next(Spec{Pattern: model.RepeatDaily, Interval: 3}, date(2025, time.March, 30, 9, 0))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.April, 2, 9, 0), next)
}

func TestNext_CustomBehavesAsDailyByInterval(t *testing.T) {
	next, ok := Next(Spec{Pattern: model.RepeatCustom, Interval: 10}, date(2025, time.January, 1, 8, 0))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.January, 11, 8, 0), next)
}

func TestNext_MonthlyClampsToShortMonth(t *testing.T) {
	// Jan 31 + 1 month lands on the last day of February.
	next, ok := Next(Spec{Pattern: model.RepeatMonthly, Interval: 1}, date(2025, time.January, 31, 7, 30))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.February, 28, 7, 30), next)

	// Leap year keeps the 29th.
	next, ok = Next(Spec{Pattern: model.RepeatMonthly, Interval: 1}, date(2024, time.January, 31, 7, 30))
	require.True(t, ok)
	assert.Equal(t, date(2024, time.February, 29, 7, 30), next)

	// May 31 + 1 month clamps to Jun 30.
	next, ok = Next(Spec{Pattern: model.RepeatMonthly, Interval: 1}, date(2025, time.May, 31, 12, 0))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.June, 30, 12, 0), next)
}

func TestNext_MonthlyMultiInterval(t *testing.T) {
	next, ok := Next(Spec{Pattern: model.RepeatMonthly, Interval: 3}, date(2025, time.November, 15, 6, 0))
	require.True(t, ok)
	assert.Equal(t, date(2026, time.February, 15, 6, 0), next)
}

func TestNext_YearlyClampsLeapDay(t *testing.T) {
	next, ok := Next(Spec{Pattern: model.RepeatYearly, Interval: 1}, date(2024, time.February, 29, 10, 0))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.February, 28, 10, 0), next)
}

func TestNext_WeeklyWithDays(t *testing.T) {
	// 2025-03-11 is a Tuesday; days {Mon, Wed} -> next Wed.
	tue := date(2025, time.March, 11, 9, 0)
	next, ok := Next(Spec{Pattern: model.RepeatWeekly, Interval: 1, Days: []int{1, 3}}, tue)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 12, 9, 0), next)
	assert.Equal(t, time.Wednesday, next.Weekday())

	// From Wednesday the cycle is done: next is Monday of the following week.
	next, ok = Next(Spec{Pattern: model.RepeatWeekly, Interval: 1, Days: []int{1, 3}}, next)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 17, 9, 0), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestNext_WeeklyIntervalSkipsWeeks(t *testing.T) {
	// Biweekly on {Fri}; from Friday the next hit is two weeks out.
	fri := date(2025, time.March, 14, 18, 0)
	require.Equal(t, time.Friday, fri.Weekday())

	next, ok := Next(Spec{Pattern: model.RepeatWeekly, Interval: 2, Days: []int{5}}, fri)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 28, 18, 0), next)
}

func TestNext_WeeklyEmptyDaysUsesOriginalWeekday(t *testing.T) {
	start := date(2025, time.March, 11, 9, 0)
	next, ok := Next(Spec{Pattern: model.RepeatWeekly, Interval: 2}, start)
	require.True(t, ok)
	assert.Equal(t, start.AddDate(0, 0, 14), next)
	assert.Equal(t, start.Weekday(), next.Weekday())
}

func TestNext_WeeklyIgnoresInvalidDays(t *testing.T) {
	start := date(2025, time.March, 11, 9, 0)
	next, ok := Next(Spec{Pattern: model.RepeatWeekly, Interval: 1, Days: []int{7, -1}}, start)
	require.True(t, ok)
	assert.Equal(t, start.AddDate(0, 0, 7), next)
}

func TestNext_UntilCutoff(t *testing.T) {
	until := date(2025, time.March, 12, 0, 0)
	_, ok := Next(Spec{Pattern: model.RepeatDaily, Interval: 1, Until: &until}, date(2025, time.March, 11, 9, 0))
	assert.False(t, ok)

	until = date(2025, time.March, 12, 10, 0)
	next, ok := Next(Spec{Pattern: model.RepeatDaily, Interval: 1, Until: &until}, date(2025, time.March, 11, 9, 0))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 12, 9, 0), next)
}

func TestNext_RemainingSpent(t *testing.T) {
	zero := 0
	_, ok := Next(Spec{Pattern: model.RepeatDaily, Interval: 1, Remaining: &zero}, date(2025, time.March, 11, 9, 0))
	assert.False(t, ok)

	one := 1
	_, ok = Next(Spec{Pattern: model.RepeatDaily, Interval: 1, Remaining: &one}, date(2025, time.March, 11, 9, 0))
	assert.True(t, ok)
}

func TestNext_NonRepeating(t *testing.T) {
	_, ok := Next(Spec{Pattern: model.RepeatNone}, date(2025, time.March, 11, 9, 0))
	assert.False(t, ok)

	_, ok = Next(Spec{}, date(2025, time.March, 11, 9, 0))
	assert.False(t, ok)
}

func TestNext_ZeroIntervalDefaultsToOne(t *testing.T) {
	next, ok := Next(Spec{Pattern: model.RepeatDaily}, date(2025, time.March, 11, 9, 0))
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 12, 9, 0), next)
}
