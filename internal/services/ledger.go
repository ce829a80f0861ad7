package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"kasa/internal/core"
	"kasa/internal/schedule"
	"kasa/internal/storage"
)

// DefaultReminderHour and DefaultReminderMinute are the time of day a
// reminder's notifications fire when the caller does not choose one.
const (
	DefaultReminderHour   = 9
	DefaultReminderMinute = 0
)

// Ledger orchestrates mutations across the ledger store and the
// reminder scheduler. Read-side projections live in Aggregator.
type Ledger struct {
	storage   *storage.SQLiteRepository
	scheduler *schedule.Scheduler
	now       func() time.Time
}

func NewLedger(storage *storage.SQLiteRepository, scheduler *schedule.Scheduler) *Ledger {
	return &Ledger{
		storage:   storage,
		scheduler: scheduler,
		now:       time.Now,
	}
}

// WithClock overrides the ledger's notion of now. Tests only.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// --- Transactions ---

func (l *Ledger) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("add transaction: %w", err)
	}
	id, err := l.storage.CreateTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("add transaction: %w", err)
	}
	return id, nil
}

func (l *Ledger) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if err := l.storage.UpdateTransaction(ctx, t); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (l *Ledger) DeleteTransaction(ctx context.Context, id int64) error {
	if err := l.storage.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// --- Installment expansion ---

// AddInstallment converts one "pay over N months" purchase into an
// installment plan plus exactly one first-month expense transaction
// described as "<description> (1/N)" and dated at the plan's start.
//
// Months 2..N are not generated here or anywhere else; the plan's
// remainingMonths stays at N until a future continuation mechanism
// posts them.
func (l *Ledger) AddInstallment(ctx context.Context, p core.InstallmentPlan) (core.InstallmentPlan, error) {
	p.RemainingMonths = p.TotalMonths
	if err := p.Validate(); err != nil {
		return core.InstallmentPlan{}, fmt.Errorf("add installment: %w", err)
	}

	planID, err := l.storage.CreateInstallment(ctx, p)
	if err != nil {
		return core.InstallmentPlan{}, fmt.Errorf("add installment: %w", err)
	}
	p.ID = planID

	monthly := p.TotalAmount.Div(decimal.NewFromInt(int64(p.TotalMonths)))
	first := core.Transaction{
		Kind:          core.Expense,
		Amount:        monthly,
		Category:      "Taksit",
		Date:          p.StartDate,
		Description:   fmt.Sprintf("%s (1/%d)", p.Description, p.TotalMonths),
		InstallmentID: planID,
	}
	if _, err := l.storage.CreateTransaction(ctx, first); err != nil {
		return core.InstallmentPlan{}, fmt.Errorf("add installment first transaction: %w", err)
	}

	slog.InfoContext(ctx, "Installment plan expanded",
		"plan_id", planID,
		"total_amount", p.TotalAmount.String(),
		"monthly_amount", monthly.String(),
		"total_months", p.TotalMonths)

	return p, nil
}

// --- Debts ---

func (l *Ledger) AddDebt(ctx context.Context, d core.DebtRecord) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, fmt.Errorf("add debt: %w", err)
	}
	id, err := l.storage.CreateDebt(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("add debt: %w", err)
	}
	return id, nil
}

func (l *Ledger) UpdateDebt(ctx context.Context, d core.DebtRecord) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	if err := l.storage.UpdateDebt(ctx, d); err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	return nil
}

func (l *Ledger) DeleteDebt(ctx context.Context, id int64) error {
	if err := l.storage.DeleteDebt(ctx, id); err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	return nil
}

// RecordDebtPayment accumulates a partial payment onto a debt record.
// paidAmount is clamped at the debt's amount so an overpayment can
// never push it past the invariant 0 <= paidAmount <= amount; isPaid
// flips once the clamped total covers the full amount.
func (l *Ledger) RecordDebtPayment(ctx context.Context, id int64, payment decimal.Decimal) (core.DebtRecord, error) {
	if payment.LessThanOrEqual(decimal.Zero) {
		return core.DebtRecord{}, fmt.Errorf("record debt payment: %w", core.ErrInvalidAmount)
	}

	d, err := l.storage.GetDebt(ctx, id)
	if err != nil {
		return core.DebtRecord{}, fmt.Errorf("record debt payment: %w", err)
	}

	d.PaidAmount = d.PaidAmount.Add(payment)
	if d.PaidAmount.GreaterThanOrEqual(d.Amount) {
		d.PaidAmount = d.Amount
		d.IsPaid = true
	}

	if err := l.storage.UpdateDebt(ctx, d); err != nil {
		return core.DebtRecord{}, fmt.Errorf("record debt payment: %w", err)
	}

	slog.InfoContext(ctx, "Debt payment recorded",
		"debt_id", id,
		"payment", payment.String(),
		"paid_amount", d.PaidAmount.String(),
		"is_paid", d.IsPaid)

	return d, nil
}

// --- Reminders ---

// AddReminder persists the reminder and projects its notification
// instances from an anchor at its day-of-month and the given time of
// day in the current month.
func (l *Ledger) AddReminder(ctx context.Context, rem core.Reminder, hour, minute int) (core.Reminder, error) {
	if err := rem.Validate(); err != nil {
		return core.Reminder{}, fmt.Errorf("add reminder: %w", err)
	}
	if rem.Kind == "" {
		rem.Kind = core.Bill
	}

	id, err := l.storage.CreateReminder(ctx, rem)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("add reminder: %w", err)
	}
	rem.ID = id

	anchor := schedule.Anchor(l.now(), rem.DayOfMonth, hour, minute)
	if _, err := l.scheduler.Schedule(ctx, rem, anchor); err != nil {
		// The reminder row exists; scheduling can be retried later.
		slog.ErrorContext(ctx, "Reminder saved but scheduling failed",
			"reminder_id", id, "error", err)
	}

	return rem, nil
}

// DeleteReminder removes the reminder and cancels every notification
// instance tied to it, so no orphaned instances survive.
func (l *Ledger) DeleteReminder(ctx context.Context, id int64) error {
	if err := l.scheduler.Cancel(ctx, id); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if err := l.storage.DeleteReminder(ctx, id); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

// RescheduleAll re-projects every persisted reminder, anchored at the
// default time of day. The worker runs this at startup so reminders
// survive process restarts.
func (l *Ledger) RescheduleAll(ctx context.Context) (int, error) {
	reminders, err := l.storage.ListReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("reschedule all: %w", err)
	}

	scheduled := 0
	for _, rem := range reminders {
		anchor := schedule.Anchor(l.now(), rem.DayOfMonth, DefaultReminderHour, DefaultReminderMinute)
		if _, err := l.scheduler.Schedule(ctx, rem, anchor); err != nil {
			slog.ErrorContext(ctx, "Failed to reschedule reminder",
				"reminder_id", rem.ID, "error", err)
			continue
		}
		scheduled++
	}

	slog.InfoContext(ctx, "Reminders rescheduled", "count", scheduled, "total", len(reminders))
	return scheduled, nil
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	if l.storage != nil {
		if err := l.storage.Close(); err != nil {
			return fmt.Errorf("close ledger: %w", err)
		}
	}
	return nil
}
