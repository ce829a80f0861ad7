package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kasa/internal/core"
)

func TestWriteWorkbookSheetsAndLabels(t *testing.T) {
	transactions := []core.Transaction{
		{ID: 1, Kind: core.Income, Amount: amt("45000"), Category: "Maaş", Date: core.NewDate(2026, 2, 1)},
		{ID: 2, Kind: core.Expense, Amount: amt("1250.5"), Category: "Market", Date: core.NewDate(2026, 2, 10), Description: "haftalık"},
	}
	debts := []core.DebtRecord{
		{ID: 3, Kind: core.Debt, PersonName: "Ali", Amount: amt("5000"), PaidAmount: amt("2000"), DueDate: core.NewDate(2026, 3, 1)},
		{ID: 4, Kind: core.Receivable, PersonName: "Ayşe", Amount: amt("750"), IsPaid: true},
	}
	reminders := []core.Reminder{
		{ID: 5, Title: "Elektrik", Amount: amt("850"), DayOfMonth: 15, Kind: core.Bill},
	}
	installments := []core.InstallmentPlan{
		{ID: 6, Description: "Telefon", TotalAmount: amt("24000"), TotalMonths: 12, RemainingMonths: 10, StartDate: core.NewDate(2025, 12, 5)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, transactions, debts, reminders, installments))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t,
		[]string{SheetTransactions, SheetDebts, SheetReminders, SheetInstallments},
		f.GetSheetList())

	cell := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Tarih", cell(SheetTransactions, "B1"))
	assert.Equal(t, "Gelir", cell(SheetTransactions, "C2"))
	assert.Equal(t, "Gider", cell(SheetTransactions, "C3"))
	assert.Equal(t, "1250.5", cell(SheetTransactions, "E3"))
	assert.Equal(t, "haftalık", cell(SheetTransactions, "F3"))

	assert.Equal(t, "Borç", cell(SheetDebts, "B2"))
	assert.Equal(t, "Alacak", cell(SheetDebts, "B3"))
	assert.Equal(t, "2026-03-01", cell(SheetDebts, "F2"))
	assert.Equal(t, "", cell(SheetDebts, "F3"))
	assert.Equal(t, "Ödenmedi", cell(SheetDebts, "G2"))
	assert.Equal(t, "Ödendi", cell(SheetDebts, "G3"))

	assert.Equal(t, "Elektrik", cell(SheetReminders, "B2"))
	assert.Equal(t, "15", cell(SheetReminders, "D2"))

	assert.Equal(t, "Telefon", cell(SheetInstallments, "B2"))
	assert.Equal(t, "12", cell(SheetInstallments, "D2"))
	assert.Equal(t, "10", cell(SheetInstallments, "E2"))
}

func TestWriteWorkbookEmptyDatasetStillHasHeaders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, nil, nil, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(SheetTransactions, "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", v)

	rows, err := f.GetRows(SheetDebts)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
