package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kasa/internal/core"
	"kasa/internal/notify"
	"kasa/internal/schedule"
	"kasa/internal/storage"
)

func newTestLedger(t *testing.T) (*Ledger, *notify.MemoryNotifier) {
	t.Helper()
	repo := newTestRepo(t)
	mem := notify.NewMemoryNotifier()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	sched := schedule.NewScheduler(mem).WithClock(func() time.Time { return now })
	ledger := NewLedger(repo, sched).WithClock(func() time.Time { return now })
	return ledger, mem
}

func TestAddInstallmentScenario(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	plan, err := ledger.AddInstallment(ctx, core.InstallmentPlan{
		TotalAmount: amt(t, "6000"),
		TotalMonths: 6,
		StartDate:   core.NewDate(2026, 3, 1),
		Description: "telefon",
	})
	if err != nil {
		t.Fatalf("add installment: %v", err)
	}
	if plan.RemainingMonths != 6 {
		t.Errorf("remainingMonths must stay at totalMonths, got %d", plan.RemainingMonths)
	}

	txs, err := ledger.storage.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("exactly one first-month transaction expected, got %d", len(txs))
	}
	first := txs[0]
	if first.Kind != core.Expense {
		t.Errorf("first installment must be an expense, got %s", first.Kind)
	}
	if !first.Amount.Equal(amt(t, "1000")) {
		t.Errorf("monthly amount expected 1000, got %s", first.Amount)
	}
	if first.Date.String() != "2026-03-01" {
		t.Errorf("first installment dated at plan start, got %s", first.Date)
	}
	if !strings.HasSuffix(first.Description, "(1/6)") {
		t.Errorf("description must end with (1/6), got %q", first.Description)
	}
	if first.InstallmentID != plan.ID {
		t.Errorf("first transaction must reference the plan, got %d want %d", first.InstallmentID, plan.ID)
	}

	stored, err := ledger.storage.GetInstallment(ctx, plan.ID)
	if err != nil {
		t.Fatalf("get installment: %v", err)
	}
	if stored.RemainingMonths != 6 {
		t.Errorf("no auto-decrement: remainingMonths expected 6, got %d", stored.RemainingMonths)
	}
}

func TestAddInstallmentRejectsSingleMonth(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.AddInstallment(context.Background(), core.InstallmentPlan{
		TotalAmount: amt(t, "100"),
		TotalMonths: 1,
		StartDate:   core.NewDate(2026, 3, 1),
		Description: "tek ay",
	})
	if err == nil {
		t.Fatal("expected validation error for totalMonths < 2")
	}
}

func TestRecordDebtPaymentScenario(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	id, err := ledger.AddDebt(ctx, core.DebtRecord{
		Kind: core.Debt, PersonName: "Ali", Amount: amt(t, "5000"), PaidAmount: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("add debt: %v", err)
	}

	d, err := ledger.RecordDebtPayment(ctx, id, amt(t, "2000"))
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if !d.PaidAmount.Equal(amt(t, "2000")) || d.IsPaid {
		t.Fatalf("after 2000: expected paid=2000 isPaid=false, got paid=%s isPaid=%v", d.PaidAmount, d.IsPaid)
	}

	d, err = ledger.RecordDebtPayment(ctx, id, amt(t, "3000"))
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if !d.PaidAmount.Equal(amt(t, "5000")) || !d.IsPaid {
		t.Fatalf("after 5000: expected paid=5000 isPaid=true, got paid=%s isPaid=%v", d.PaidAmount, d.IsPaid)
	}
}

func TestRecordDebtPaymentClampsOverpayment(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	id, err := ledger.AddDebt(ctx, core.DebtRecord{
		Kind: core.Debt, PersonName: "Veli", Amount: amt(t, "1000"), PaidAmount: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("add debt: %v", err)
	}

	d, err := ledger.RecordDebtPayment(ctx, id, amt(t, "1500"))
	if err != nil {
		t.Fatalf("overpayment: %v", err)
	}
	if !d.PaidAmount.Equal(amt(t, "1000")) || !d.IsPaid {
		t.Fatalf("overpayment must clamp at amount: got paid=%s isPaid=%v", d.PaidAmount, d.IsPaid)
	}

	if _, err := ledger.RecordDebtPayment(ctx, id, decimal.Zero); err == nil {
		t.Fatal("zero payment must be rejected")
	}
}

func TestAddReminderSchedulesInstances(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	rem, err := ledger.AddReminder(ctx, core.Reminder{
		Title: "Kira", Amount: amt(t, "15000"), DayOfMonth: 5,
	}, 10, 30)
	if err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	if rem.Kind != core.Bill {
		t.Errorf("default kind expected bill, got %s", rem.Kind)
	}

	// Clock is Feb 1 08:00; day 5 is still ahead, so all 12 register.
	if mem.Count() != 12 {
		t.Fatalf("expected 12 scheduled instances, got %d", mem.Count())
	}
	n, ok := mem.Scheduled(schedule.InstanceID(rem.ID, 0))
	if !ok {
		t.Fatal("first instance missing")
	}
	if n.TriggerAt.Hour() != 10 || n.TriggerAt.Minute() != 30 {
		t.Errorf("time of day not honored: %v", n.TriggerAt)
	}
}

func TestDeleteReminderCancelsAllInstances(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	rem, err := ledger.AddReminder(ctx, core.Reminder{
		Title: "Su", Amount: amt(t, "120"), DayOfMonth: 3,
	}, DefaultReminderHour, DefaultReminderMinute)
	if err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	if mem.Count() == 0 {
		t.Fatal("expected scheduled instances before delete")
	}

	if err := ledger.DeleteReminder(ctx, rem.ID); err != nil {
		t.Fatalf("delete reminder: %v", err)
	}
	if mem.Count() != 0 {
		t.Fatalf("orphaned instances survived deletion: %d", mem.Count())
	}

	reminders, err := ledger.storage.ListReminders(ctx)
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(reminders) != 0 {
		t.Fatalf("reminder row survived deletion")
	}
}

func TestRescheduleAll(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	for _, title := range []string{"Elektrik", "Su", "İnternet"} {
		if _, err := ledger.AddReminder(ctx, core.Reminder{
			Title: title, Amount: amt(t, "100"), DayOfMonth: 10,
		}, DefaultReminderHour, DefaultReminderMinute); err != nil {
			t.Fatalf("add reminder %s: %v", title, err)
		}
	}

	count, err := ledger.RescheduleAll(ctx)
	if err != nil {
		t.Fatalf("reschedule all: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 reminders rescheduled, got %d", count)
	}
	if mem.Count() != 36 {
		t.Fatalf("expected 36 total instances, got %d", mem.Count())
	}
}

// Two ledgers over one database model the server and worker processes.
// A reminder created through one must become visible to the other's
// dispatcher once it re-runs RescheduleAll, without a restart.
func TestRescheduleAllPicksUpRemindersCreatedElsewhere(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kasa.db")
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	serverRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open server repository: %v", err)
	}
	t.Cleanup(func() { serverRepo.Close() })
	server := NewLedger(serverRepo, schedule.NewScheduler(notify.NewMemoryNotifier()).WithClock(clock)).WithClock(clock)

	workerRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open worker repository: %v", err)
	}
	t.Cleanup(func() { workerRepo.Close() })
	dispatcher := notify.NewDispatcher(notify.LogSender{}, time.Minute)
	worker := NewLedger(workerRepo, schedule.NewScheduler(dispatcher).WithClock(clock)).WithClock(clock)

	if _, err := worker.RescheduleAll(ctx); err != nil {
		t.Fatalf("initial reschedule: %v", err)
	}
	if dispatcher.Pending() != 0 {
		t.Fatalf("dispatcher must start empty, got %d", dispatcher.Pending())
	}

	if _, err := server.AddReminder(ctx, core.Reminder{
		Title: "Kira", Amount: amt(t, "15000"), DayOfMonth: 5,
	}, DefaultReminderHour, DefaultReminderMinute); err != nil {
		t.Fatalf("add reminder: %v", err)
	}

	count, err := worker.RescheduleAll(ctx)
	if err != nil {
		t.Fatalf("periodic reschedule: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reminder picked up, got %d", count)
	}
	if dispatcher.Pending() != 12 {
		t.Fatalf("expected 12 pending instances after pickup, got %d", dispatcher.Pending())
	}
}
