package core

import "github.com/shopspring/decimal"

// KpiSummary is the derived dashboard headline. Recomputed from the
// ledger on every refresh; never persisted.
type KpiSummary struct {
	MonthlyIncome        decimal.Decimal
	MonthlyExpense       decimal.Decimal
	GrandTotalIncome     decimal.Decimal
	GrandTotalExpense    decimal.Decimal
	TotalOutstandingDebt decimal.Decimal
}

// DailySpendingBucket is one day's total expense. Days without any
// expense produce no bucket at all.
type DailySpendingBucket struct {
	Date  Date
	Total decimal.Decimal
}
