// Package services holds the read-side aggregation and the mutation
// orchestration over the ledger store.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kasa/internal/core"
	"kasa/internal/storage"
)

// DefaultSpendingWindowDays is the trailing window for the daily
// spending series when the caller does not override it.
const DefaultSpendingWindowDays = 30

// Aggregator computes derived views over the ledger store. It never
// mutates and never caches; every call recomputes from storage.
type Aggregator struct {
	storage *storage.SQLiteRepository
}

func NewAggregator(storage *storage.SQLiteRepository) *Aggregator {
	return &Aggregator{storage: storage}
}

// MonthlyKpi sums transaction amounts by kind over the calendar month
// containing ref, both month edges inclusive. A kind with no
// transactions contributes zero, never an error.
func (a *Aggregator) MonthlyKpi(ctx context.Context, ref time.Time) (core.KpiSummary, error) {
	from, to := monthBounds(ref)

	income, err := a.storage.SumTransactionsInRange(ctx, core.Income, from, to)
	if err != nil {
		return core.KpiSummary{}, fmt.Errorf("monthly income: %w", err)
	}
	expense, err := a.storage.SumTransactionsInRange(ctx, core.Expense, from, to)
	if err != nil {
		return core.KpiSummary{}, fmt.Errorf("monthly expense: %w", err)
	}

	return core.KpiSummary{
		MonthlyIncome:  income,
		MonthlyExpense: expense,
	}, nil
}

// Kpi is MonthlyKpi plus the all-time totals and the outstanding debt
// sum, i.e. the full dashboard headline.
func (a *Aggregator) Kpi(ctx context.Context, ref time.Time) (core.KpiSummary, error) {
	kpi, err := a.MonthlyKpi(ctx, ref)
	if err != nil {
		return core.KpiSummary{}, err
	}

	if kpi.GrandTotalIncome, err = a.storage.SumTransactions(ctx, core.Income); err != nil {
		return core.KpiSummary{}, fmt.Errorf("grand total income: %w", err)
	}
	if kpi.GrandTotalExpense, err = a.storage.SumTransactions(ctx, core.Expense); err != nil {
		return core.KpiSummary{}, fmt.Errorf("grand total expense: %w", err)
	}
	if kpi.TotalOutstandingDebt, err = a.storage.OutstandingDebtTotal(ctx); err != nil {
		return core.KpiSummary{}, fmt.Errorf("outstanding debt: %w", err)
	}
	return kpi, nil
}

// DailySpending returns the sparse expense-per-day series, newest date
// first, at most windowDays distinct dates. Callers that need a dense
// series must zero-fill the gaps themselves.
func (a *Aggregator) DailySpending(ctx context.Context, windowDays int) ([]core.DailySpendingBucket, error) {
	if windowDays <= 0 {
		windowDays = DefaultSpendingWindowDays
	}
	buckets, err := a.storage.DailyExpenseTotals(ctx, windowDays)
	if err != nil {
		return nil, fmt.Errorf("daily spending: %w", err)
	}
	return buckets, nil
}

// TotalOutstandingDebt sums amount - paidAmount over unpaid debt-kind
// records.
func (a *Aggregator) TotalOutstandingDebt(ctx context.Context) (decimal.Decimal, error) {
	total, err := a.storage.OutstandingDebtTotal(ctx)
	if err != nil {
		return total, fmt.Errorf("total outstanding debt: %w", err)
	}
	return total, nil
}

// monthBounds returns the first and last day of ref's calendar month.
func monthBounds(ref time.Time) (core.Date, core.Date) {
	first := core.NewDate(ref.Year(), int(ref.Month()), 1)
	last := core.Date{Time: first.AddDate(0, 1, -1)}
	return first, last
}
