package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasa/internal/core"
	"kasa/internal/notify"
)

func testReminder(id int64, day int) core.Reminder {
	return core.Reminder{
		ID:         id,
		Title:      "Elektrik",
		Amount:     decimal.NewFromInt(850),
		DayOfMonth: day,
		Kind:       core.Bill,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestScheduleFutureAnchorRegistersFullHorizon(t *testing.T) {
	mem := notify.NewMemoryNotifier()
	// Now: Feb 10 2026 08:00. Anchor day 15 at 09:00 is still ahead.
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	s := NewScheduler(mem).WithClock(fixedClock(now))

	rem := testReminder(4, 15)
	anchor := Anchor(now, rem.DayOfMonth, 9, 0)

	n, err := s.Schedule(context.Background(), rem, anchor)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, 12, mem.Count())

	first, ok := mem.Scheduled("reminder_4_0")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC), first.TriggerAt)
	assert.Equal(t, "Fatura Hatırlatıcı 🔔", first.Title)
	assert.Contains(t, first.Body, "Elektrik")
	assert.Contains(t, first.Body, "850,00 ₺")

	last, ok := mem.Scheduled("reminder_4_11")
	require.True(t, ok)
	assert.Equal(t, time.Date(2027, 1, 15, 9, 0, 0, 0, time.UTC), last.TriggerAt)
}

func TestSchedulePastAnchorSkipsCurrentMonth(t *testing.T) {
	mem := notify.NewMemoryNotifier()
	// Now: Feb 20 2026. Anchor day 15 already passed this month.
	now := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(mem).WithClock(fixedClock(now))

	rem := testReminder(4, 15)
	anchor := Anchor(now, rem.DayOfMonth, 9, 0)

	n, err := s.Schedule(context.Background(), rem, anchor)
	require.NoError(t, err)
	assert.Equal(t, 11, n, "current month's passed instance must be skipped")

	_, ok := mem.Scheduled("reminder_4_0")
	assert.False(t, ok, "index 0 must not be registered")
	_, ok = mem.Scheduled("reminder_4_1")
	assert.True(t, ok)
}

func TestRescheduleCancelsPreviousInstances(t *testing.T) {
	mem := notify.NewMemoryNotifier()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s := NewScheduler(mem).WithClock(fixedClock(now))
	ctx := context.Background()

	rem := testReminder(9, 15)
	_, err := s.Schedule(ctx, rem, Anchor(now, 15, 9, 0))
	require.NoError(t, err)
	old, ok := mem.Scheduled("reminder_9_0")
	require.True(t, ok)

	// Reschedule onto day 20: every old instance is replaced.
	rem.DayOfMonth = 20
	n, err := s.Schedule(ctx, rem, Anchor(now, 20, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, 12, mem.Count(), "no stale instances may survive a reschedule")

	fresh, ok := mem.Scheduled("reminder_9_0")
	require.True(t, ok)
	assert.NotEqual(t, old.TriggerAt, fresh.TriggerAt)
	assert.Equal(t, 20, fresh.TriggerAt.Day())
}

func TestCancelIsIdempotentAndCoversPartialScheduling(t *testing.T) {
	mem := notify.NewMemoryNotifier()
	ctx := context.Background()
	s := NewScheduler(mem)

	// Only 3 of the 12 possible instances were ever registered.
	for i := 0; i < 3; i++ {
		require.NoError(t, mem.Schedule(ctx, notify.Notification{ID: InstanceID(7, i)}))
	}

	require.NoError(t, s.Cancel(ctx, 7))
	assert.Equal(t, 0, mem.Count())

	// Cancelling again is fine.
	require.NoError(t, s.Cancel(ctx, 7))
}

func TestMonthEndDaysClampInsteadOfRollingForward(t *testing.T) {
	mem := notify.NewMemoryNotifier()
	// Now: Jan 1 2026, reminder on day 31.
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScheduler(mem).WithClock(fixedClock(now))

	rem := testReminder(2, 31)
	n, err := s.Schedule(context.Background(), rem, Anchor(now, 31, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	// Index 1 is February: day 31 clamps to the 28th, never March.
	feb, ok := mem.Scheduled("reminder_2_1")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), feb.TriggerAt)

	// Index 3 is April (30 days): clamps to the 30th.
	apr, ok := mem.Scheduled("reminder_2_3")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC), apr.TriggerAt)

	// A 31-day month keeps the full day.
	mar, ok := mem.Scheduled("reminder_2_2")
	require.True(t, ok)
	assert.Equal(t, 31, mar.TriggerAt.Day())
}

// flakyNotifier fails Schedule for chosen identifiers.
type flakyNotifier struct {
	*notify.MemoryNotifier
	failIDs map[string]bool
}

func (f *flakyNotifier) Schedule(ctx context.Context, n notify.Notification) error {
	if f.failIDs[n.ID] {
		return errors.New("delivery backend unavailable")
	}
	return f.MemoryNotifier.Schedule(ctx, n)
}

func TestScheduleContinuesPastIndividualRegistrationFailures(t *testing.T) {
	flaky := &flakyNotifier{
		MemoryNotifier: notify.NewMemoryNotifier(),
		failIDs:        map[string]bool{"reminder_4_3": true, "reminder_4_7": true},
	}
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s := NewScheduler(flaky).WithClock(fixedClock(now))

	n, err := s.Schedule(context.Background(), testReminder(4, 15), Anchor(now, 15, 9, 0))
	require.NoError(t, err, "partial registration failure must not abort scheduling")
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, flaky.Count())
}

func TestInstanceID(t *testing.T) {
	assert.Equal(t, "reminder_12_0", InstanceID(12, 0))
	assert.Equal(t, "reminder_12_11", InstanceID(12, 11))
	assert.True(t, strings.HasPrefix(InstanceID(3, 5), "reminder_3_"))
}
