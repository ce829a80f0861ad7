package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kasa/internal/core"
	"kasa/internal/notify"
	"kasa/internal/schedule"
	"kasa/internal/services"
	"kasa/internal/storage"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *notify.MemoryNotifier) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kasa.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	now := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	mem := notify.NewMemoryNotifier()
	sched := schedule.NewScheduler(mem).WithClock(clock)
	ledger := services.NewLedger(repo, sched).WithClock(clock)
	agg := services.NewAggregator(repo)

	return NewCoordinator(repo, ledger, agg, 30).WithClock(clock), mem
}

func amt(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad test amount %q: %v", s, err)
	}
	return d
}

func TestMutationTriggersFullRefresh(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	var published int
	c.Subscribe(func(Snapshot) { published++ })

	if _, err := c.AddTransaction(ctx, core.Transaction{
		Kind: core.Expense, Amount: amt(t, "1250"), Category: "market", Date: core.NewDate(2026, 2, 10),
	}); err != nil {
		t.Fatalf("add transaction: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Transactions) != 1 {
		t.Fatalf("snapshot transactions expected 1, got %d", len(snap.Transactions))
	}
	if !snap.Kpi.MonthlyExpense.Equal(amt(t, "1250")) {
		t.Errorf("snapshot KPI stale: expected 1250, got %s", snap.Kpi.MonthlyExpense)
	}
	if len(snap.DailySpending) != 1 {
		t.Errorf("snapshot daily spending expected 1 bucket, got %d", len(snap.DailySpending))
	}
	if published != 1 {
		t.Errorf("subscriber expected 1 publish, got %d", published)
	}

	// A second mutation pays the full re-aggregation cost again.
	if _, err := c.AddTransaction(ctx, core.Transaction{
		Kind: core.Income, Amount: amt(t, "45000"), Category: "salary", Date: core.NewDate(2026, 2, 1),
	}); err != nil {
		t.Fatalf("add income: %v", err)
	}
	snap = c.Snapshot()
	if !snap.Kpi.MonthlyIncome.Equal(amt(t, "45000")) {
		t.Errorf("KPI income expected 45000, got %s", snap.Kpi.MonthlyIncome)
	}
	if !snap.Kpi.MonthlyExpense.Equal(amt(t, "1250")) {
		t.Errorf("KPI expense expected 1250, got %s", snap.Kpi.MonthlyExpense)
	}
	if published != 2 {
		t.Errorf("subscriber expected 2 publishes, got %d", published)
	}
}

func TestDebtMutationsRefreshOutstandingTotal(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	id, err := c.AddDebt(ctx, core.DebtRecord{
		Kind: core.Debt, PersonName: "Ali", Amount: amt(t, "5000"), PaidAmount: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("add debt: %v", err)
	}
	if got := c.Snapshot().Kpi.TotalOutstandingDebt; !got.Equal(amt(t, "5000")) {
		t.Fatalf("outstanding expected 5000, got %s", got)
	}

	if _, err := c.RecordDebtPayment(ctx, id, amt(t, "2000")); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if got := c.Snapshot().Kpi.TotalOutstandingDebt; !got.Equal(amt(t, "3000")) {
		t.Fatalf("outstanding after payment expected 3000, got %s", got)
	}

	if err := c.DeleteDebt(ctx, id); err != nil {
		t.Fatalf("delete debt: %v", err)
	}
	if got := c.Snapshot().Kpi.TotalOutstandingDebt; !got.IsZero() {
		t.Fatalf("outstanding after delete expected 0, got %s", got)
	}
}

func TestReminderMutationsKeepSchedulerInSync(t *testing.T) {
	c, mem := newTestCoordinator(t)
	ctx := context.Background()

	rem, err := c.AddReminder(ctx, core.Reminder{
		Title: "Kira", Amount: amt(t, "15000"), DayOfMonth: 20,
	}, 9, 0)
	if err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	if mem.Count() != 12 {
		t.Fatalf("expected 12 instances, got %d", mem.Count())
	}
	if len(c.Snapshot().Reminders) != 1 {
		t.Fatalf("snapshot missing reminder")
	}

	if err := c.DeleteReminder(ctx, rem.ID); err != nil {
		t.Fatalf("delete reminder: %v", err)
	}
	if mem.Count() != 0 {
		t.Fatalf("instances survived reminder deletion: %d", mem.Count())
	}
	if len(c.Snapshot().Reminders) != 0 {
		t.Fatalf("snapshot still lists deleted reminder")
	}
}

func TestOverlappingRefreshIsDroppedNotQueued(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	// Simulate an in-flight refresh holding the guard.
	c.refreshing.Store(true)
	refreshed, err := c.RefreshDashboard(ctx)
	if err != nil {
		t.Fatalf("dropped refresh must not error: %v", err)
	}
	if refreshed {
		t.Fatal("refresh must be dropped while another is in flight")
	}
	c.refreshing.Store(false)

	refreshed, err = c.RefreshDashboard(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !refreshed {
		t.Fatal("refresh must run once the guard is free")
	}
}

func TestRestoreAllRefreshesSnapshot(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := c.AddTransaction(ctx, core.Transaction{
		Kind: core.Expense, Amount: amt(t, "1"), Category: "old", Date: core.NewDate(2025, 1, 1),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := c.RestoreAll(ctx,
		[]core.Transaction{{
			ID: 10, Kind: core.Income, Amount: amt(t, "500"), Category: "salary", Date: core.NewDate(2026, 2, 1),
		}},
		nil, nil, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != 10 {
		t.Fatalf("snapshot not rebuilt from restored data: %+v", snap.Transactions)
	}
	if !snap.Kpi.MonthlyIncome.Equal(amt(t, "500")) {
		t.Fatalf("KPI not recomputed after restore: %s", snap.Kpi.MonthlyIncome)
	}
}
