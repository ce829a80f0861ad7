// Package schedule projects recurring bill reminders onto concrete
// notification instances.
//
// A reminder owns up to 12 monthly instances named by the
// deterministic scheme "reminder_{id}_{index}". Cancellation never
// needs a lookup table: all possible identifiers can be reconstructed
// from the reminder's own id, at the fixed cost of 12 cancel calls.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kasa/internal/core"
	"kasa/internal/notify"
)

// Horizon is the number of monthly instances projected per reminder.
const Horizon = 12

// InstanceID returns the deterministic notification identifier for a
// reminder's i-th projected month. This naming scheme is the durable
// contract with the notification delivery collaborator; changing it
// orphans every already-registered instance.
func InstanceID(reminderID int64, i int) string {
	return fmt.Sprintf("reminder_%d_%d", reminderID, i)
}

// Scheduler maintains the reminder -> notification-instance
// projection against a delivery collaborator.
type Scheduler struct {
	notifier notify.Notifier
	now      func() time.Time
}

func NewScheduler(notifier notify.Notifier) *Scheduler {
	return &Scheduler{notifier: notifier, now: time.Now}
}

// WithClock overrides the scheduler's notion of now. Tests only.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Schedule cancels any previously registered instances for the
// reminder, then registers one notification per future monthly
// trigger within the horizon, starting at the anchor's month.
//
// Triggers at or before now are skipped, which matters for index 0
// when the anchor's day and time have already passed this month: such
// a reminder yields 11 instances, not 12. A registration failure for
// one index is logged and does not abort the remaining indices.
//
// Returns the number of instances actually registered.
func (s *Scheduler) Schedule(ctx context.Context, reminder core.Reminder, anchor time.Time) (int, error) {
	if err := reminder.Validate(); err != nil {
		return 0, fmt.Errorf("schedule reminder: %w", err)
	}

	// Reschedule starts from a clean slate. Absence of previous
	// instances is not an error.
	if err := s.Cancel(ctx, reminder.ID); err != nil {
		return 0, fmt.Errorf("cancel before reschedule: %w", err)
	}

	now := s.now()
	body := fmt.Sprintf("%s için ödeme zamanı! Tutar: %s", reminder.Title, core.FormatLira(reminder.Amount))

	registered := 0
	for i := 0; i < Horizon; i++ {
		trigger := monthlyTrigger(anchor, reminder.DayOfMonth, i)
		if !trigger.After(now) {
			continue
		}

		id := InstanceID(reminder.ID, i)
		if err := s.notifier.Schedule(ctx, notify.Notification{
			ID:        id,
			Title:     "Fatura Hatırlatıcı 🔔",
			Body:      body,
			TriggerAt: trigger,
		}); err != nil {
			// Best effort: partial success is acceptable, no rollback.
			slog.ErrorContext(ctx, "Failed to register notification instance",
				"reminder_id", reminder.ID,
				"instance_id", id,
				"trigger_at", trigger,
				"error", err)
			continue
		}
		registered++
	}

	slog.InfoContext(ctx, "Reminder scheduled",
		"reminder_id", reminder.ID,
		"title", reminder.Title,
		"anchor", anchor,
		"registered", registered)

	return registered, nil
}

// Cancel attempts cancellation of all possible instance identifiers
// for the reminder. Identifiers that were never registered cancel as
// a no-op, so the call is idempotent and tolerant of partial prior
// scheduling.
func (s *Scheduler) Cancel(ctx context.Context, reminderID int64) error {
	for i := 0; i < Horizon; i++ {
		if err := s.notifier.Cancel(ctx, InstanceID(reminderID, i)); err != nil {
			return fmt.Errorf("cancel %s: %w", InstanceID(reminderID, i), err)
		}
	}

	slog.DebugContext(ctx, "Reminder instances cancelled", "reminder_id", reminderID)
	return nil
}

// Anchor builds the anchor instant for a reminder: its day-of-month
// in ref's month, at the given local time of day. The day is clamped
// to the month's last day, so a day-31 reminder anchors on the 30th
// or 28th in short months instead of rolling into the next month.
func Anchor(ref time.Time, dayOfMonth, hour, minute int) time.Time {
	day := clampDay(ref.Year(), ref.Month(), dayOfMonth)
	return time.Date(ref.Year(), ref.Month(), day, hour, minute, 0, 0, ref.Location())
}

// monthlyTrigger computes the trigger instant i months after the
// anchor's month, at the reminder's day-of-month and the anchor's
// time of day. The day is clamped per target month, never rolled
// forward; a day-31 reminder fires on Feb 28 and again on Mar 31.
func monthlyTrigger(anchor time.Time, dayOfMonth, i int) time.Time {
	// Normalize month overflow before clamping the day.
	norm := time.Date(anchor.Year(), anchor.Month()+time.Month(i), 1, 0, 0, 0, 0, anchor.Location())
	day := clampDay(norm.Year(), norm.Month(), dayOfMonth)
	return time.Date(norm.Year(), norm.Month(), day,
		anchor.Hour(), anchor.Minute(), 0, 0, anchor.Location())
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}
