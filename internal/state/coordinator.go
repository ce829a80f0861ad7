// Package state owns the in-memory dashboard snapshot and the
// consistency contract between ledger mutations and the read-side
// aggregates: every mutation is followed, in the same logical
// operation, by a full dashboard refresh.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"kasa/internal/core"
	"kasa/internal/services"
	"kasa/internal/storage"
)

// Snapshot is one consistent view of the dashboard. It is rebuilt
// wholesale on every refresh; nothing is patched incrementally.
type Snapshot struct {
	Transactions  []core.Transaction
	Debts         []core.DebtRecord
	Reminders     []core.Reminder
	Installments  []core.InstallmentPlan
	Kpi           core.KpiSummary
	DailySpending []core.DailySpendingBucket
	RefreshedAt   time.Time
}

// Coordinator is the explicit state container: it owns the store
// handle, routes every mutation through the ledger service, and
// republishes a fresh snapshot to subscribers after each one.
type Coordinator struct {
	ledger     *services.Ledger
	aggregator *services.Aggregator
	storage    *storage.SQLiteRepository
	windowDays int
	now        func() time.Time

	// refreshing is the re-entrancy guard: a refresh that arrives
	// while one is in flight is dropped, not queued. The in-flight
	// refresh's result supersedes it.
	refreshing atomic.Bool

	mu          sync.RWMutex
	snapshot    Snapshot
	subscribers []func(Snapshot)
}

func NewCoordinator(st *storage.SQLiteRepository, ledger *services.Ledger, aggregator *services.Aggregator, windowDays int) *Coordinator {
	if windowDays <= 0 {
		windowDays = services.DefaultSpendingWindowDays
	}
	return &Coordinator{
		ledger:     ledger,
		aggregator: aggregator,
		storage:    st,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// WithClock overrides the coordinator's notion of now. Tests only.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Subscribe registers a callback invoked with each new snapshot.
func (c *Coordinator) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Snapshot returns the last published snapshot.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// RefreshDashboard recomputes the whole snapshot: transactions, KPI,
// daily spending, debts, reminders and installments. Returns false
// when dropped because another refresh is already in flight.
func (c *Coordinator) RefreshDashboard(ctx context.Context) (bool, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		slog.DebugContext(ctx, "Dashboard refresh dropped, another is in flight")
		return false, nil
	}
	defer c.refreshing.Store(false)

	var next Snapshot
	ref := c.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if next.Transactions, err = c.storage.ListTransactions(gctx); err != nil {
			return fmt.Errorf("refresh transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if next.Kpi, err = c.aggregator.Kpi(gctx, ref); err != nil {
			return fmt.Errorf("refresh kpi: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if next.DailySpending, err = c.aggregator.DailySpending(gctx, c.windowDays); err != nil {
			return fmt.Errorf("refresh daily spending: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if next.Debts, err = c.storage.ListDebts(gctx); err != nil {
			return fmt.Errorf("refresh debts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if next.Reminders, err = c.storage.ListReminders(gctx); err != nil {
			return fmt.Errorf("refresh reminders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if next.Installments, err = c.storage.ListInstallments(gctx); err != nil {
			return fmt.Errorf("refresh installments: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	next.RefreshedAt = ref

	c.mu.Lock()
	c.snapshot = next
	subs := make([]func(Snapshot), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return true, nil
}

// refreshAfter runs the post-mutation refresh. The mutation already
// succeeded, so a refresh failure is reported distinctly.
func (c *Coordinator) refreshAfter(ctx context.Context, op string) error {
	if _, err := c.RefreshDashboard(ctx); err != nil {
		return fmt.Errorf("refresh after %s: %w", op, err)
	}
	return nil
}

// --- Mutations. Each one pays the full re-aggregation cost. ---

func (c *Coordinator) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	id, err := c.ledger.AddTransaction(ctx, t)
	if err != nil {
		return 0, err
	}
	return id, c.refreshAfter(ctx, "add transaction")
}

func (c *Coordinator) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := c.ledger.UpdateTransaction(ctx, t); err != nil {
		return err
	}
	return c.refreshAfter(ctx, "update transaction")
}

func (c *Coordinator) DeleteTransaction(ctx context.Context, id int64) error {
	if err := c.ledger.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	return c.refreshAfter(ctx, "delete transaction")
}

func (c *Coordinator) AddInstallment(ctx context.Context, p core.InstallmentPlan) (core.InstallmentPlan, error) {
	plan, err := c.ledger.AddInstallment(ctx, p)
	if err != nil {
		return core.InstallmentPlan{}, err
	}
	return plan, c.refreshAfter(ctx, "add installment")
}

func (c *Coordinator) AddDebt(ctx context.Context, d core.DebtRecord) (int64, error) {
	id, err := c.ledger.AddDebt(ctx, d)
	if err != nil {
		return 0, err
	}
	return id, c.refreshAfter(ctx, "add debt")
}

func (c *Coordinator) UpdateDebt(ctx context.Context, d core.DebtRecord) error {
	if err := c.ledger.UpdateDebt(ctx, d); err != nil {
		return err
	}
	return c.refreshAfter(ctx, "update debt")
}

func (c *Coordinator) DeleteDebt(ctx context.Context, id int64) error {
	if err := c.ledger.DeleteDebt(ctx, id); err != nil {
		return err
	}
	return c.refreshAfter(ctx, "delete debt")
}

func (c *Coordinator) RecordDebtPayment(ctx context.Context, id int64, payment decimal.Decimal) (core.DebtRecord, error) {
	d, err := c.ledger.RecordDebtPayment(ctx, id, payment)
	if err != nil {
		return core.DebtRecord{}, err
	}
	return d, c.refreshAfter(ctx, "record debt payment")
}

func (c *Coordinator) AddReminder(ctx context.Context, rem core.Reminder, hour, minute int) (core.Reminder, error) {
	created, err := c.ledger.AddReminder(ctx, rem, hour, minute)
	if err != nil {
		return core.Reminder{}, err
	}
	return created, c.refreshAfter(ctx, "add reminder")
}

func (c *Coordinator) DeleteReminder(ctx context.Context, id int64) error {
	if err := c.ledger.DeleteReminder(ctx, id); err != nil {
		return err
	}
	return c.refreshAfter(ctx, "delete reminder")
}

// RestoreAll replaces the whole ledger from a backup and refreshes.
func (c *Coordinator) RestoreAll(ctx context.Context,
	transactions []core.Transaction,
	debts []core.DebtRecord,
	reminders []core.Reminder,
	installments []core.InstallmentPlan,
) error {
	if err := c.storage.ReplaceAll(ctx, transactions, debts, reminders, installments); err != nil {
		return err
	}
	return c.refreshAfter(ctx, "restore")
}
