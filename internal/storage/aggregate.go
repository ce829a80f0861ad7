package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"kasa/internal/core"
)

// Aggregate read helpers. SQL does the filtering and ordering; the
// decimal summation happens here so amounts never pass through
// SQLite's float arithmetic. Rows with a date that no longer parses
// as a calendar date are excluded (date(x) IS NOT NULL plus a Go-side
// parse guard) rather than failing the whole aggregation.

// SumTransactionsInRange sums amounts of the given kind with
// from <= date <= to, both inclusive.
func (r *SQLiteRepository) SumTransactionsInRange(ctx context.Context, kind core.TransactionKind, from, to core.Date) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount FROM transactions
		 WHERE type = ? AND date(date) IS NOT NULL AND date >= ? AND date <= ?`,
		string(kind), from.String(), to.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s transactions in range: %w", kind, err)
	}
	defer rows.Close()
	return sumAmountRows(ctx, rows)
}

// SumTransactions sums all amounts of the given kind, all time.
func (r *SQLiteRepository) SumTransactions(ctx context.Context, kind core.TransactionKind) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount FROM transactions WHERE type = ? AND date(date) IS NOT NULL`,
		string(kind))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s transactions: %w", kind, err)
	}
	defer rows.Close()
	return sumAmountRows(ctx, rows)
}

// DailyExpenseTotals groups expenses by calendar date, newest date
// first, and returns at most windowDays distinct dates. Dates without
// any expense simply do not appear.
func (r *SQLiteRepository) DailyExpenseTotals(ctx context.Context, windowDays int) ([]core.DailySpendingBucket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, amount FROM transactions
		 WHERE type = 'expense' AND date(date) IS NOT NULL
		 ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("daily expense totals: %w", err)
	}
	defer rows.Close()

	var buckets []core.DailySpendingBucket
	lastDate := ""
	for rows.Next() {
		var dateStr, amountStr string
		if err := rows.Scan(&dateStr, &amountStr); err != nil {
			return nil, fmt.Errorf("daily expense totals: %w", err)
		}
		date, err := core.ParseDate(dateStr)
		if err != nil {
			slog.WarnContext(ctx, "Skipping expense with malformed date", "date", dateStr)
			continue
		}
		amount, err := parseStoredAmount(amountStr)
		if err != nil {
			slog.WarnContext(ctx, "Skipping expense with corrupt amount", "date", dateStr, "error", err)
			continue
		}

		if dateStr != lastDate {
			if len(buckets) == windowDays {
				break
			}
			buckets = append(buckets, core.DailySpendingBucket{Date: date, Total: amount})
			lastDate = dateStr
			continue
		}
		last := &buckets[len(buckets)-1]
		last.Total = last.Total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily expense totals: %w", err)
	}
	return buckets, nil
}

// OutstandingDebtTotal sums amount - paid_amount over unpaid
// debt-kind records. Receivables do not count.
func (r *SQLiteRepository) OutstandingDebtTotal(ctx context.Context) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount, paid_amount FROM debts WHERE type = 'debt' AND is_paid = 0`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("outstanding debt total: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amountStr, paidStr string
		if err := rows.Scan(&amountStr, &paidStr); err != nil {
			return decimal.Zero, fmt.Errorf("outstanding debt total: %w", err)
		}
		amount, err := parseStoredAmount(amountStr)
		if err != nil {
			slog.WarnContext(ctx, "Skipping debt with corrupt amount", "error", err)
			continue
		}
		paid, err := parseStoredAmount(paidStr)
		if err != nil {
			slog.WarnContext(ctx, "Skipping debt with corrupt paid amount", "error", err)
			continue
		}
		total = total.Add(amount.Sub(paid))
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("outstanding debt total: %w", err)
	}
	return total, nil
}

type amountRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func sumAmountRows(ctx context.Context, rows amountRows) (decimal.Decimal, error) {
	total := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("scan amount: %w", err)
		}
		amount, err := parseStoredAmount(amountStr)
		if err != nil {
			slog.WarnContext(ctx, "Skipping row with corrupt amount", "error", err)
			continue
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("iterate amounts: %w", err)
	}
	return total, nil
}
