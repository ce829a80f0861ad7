// Package export serializes the ledger to its two external formats:
// a spreadsheet workbook and a JSON backup document.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"kasa/internal/core"
)

// Sheet names and type labels are localized, matching the column
// headers the app has always exported.
const (
	SheetTransactions = "İşlemler"
	SheetDebts        = "Borçlar"
	SheetReminders    = "Hatırlatıcılar"
	SheetInstallments = "Taksitler"
)

func transactionLabel(k core.TransactionKind) string {
	if k == core.Income {
		return "Gelir"
	}
	return "Gider"
}

func debtLabel(k core.DebtKind) string {
	if k == core.Receivable {
		return "Alacak"
	}
	return "Borç"
}

func paidLabel(isPaid bool) string {
	if isPaid {
		return "Ödendi"
	}
	return "Ödenmedi"
}

// WriteWorkbook renders one workbook with a flat sheet per entity and
// streams it to w as xlsx.
func WriteWorkbook(w io.Writer,
	transactions []core.Transaction,
	debts []core.DebtRecord,
	reminders []core.Reminder,
	installments []core.InstallmentPlan,
) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, SheetTransactions,
		[]any{"ID", "Tarih", "Tip", "Kategori", "Tutar", "Açıklama"},
		len(transactions), func(i int) []any {
			t := transactions[i]
			return []any{t.ID, t.Date.String(), transactionLabel(t.Kind), t.Category, t.Amount.String(), t.Description}
		}); err != nil {
		return err
	}

	if err := writeSheet(f, SheetDebts,
		[]any{"ID", "Tip", "Kişi", "Tutar", "Ödenen", "Vade", "Durum", "Açıklama"},
		len(debts), func(i int) []any {
			d := debts[i]
			due := ""
			if !d.DueDate.IsEmpty() {
				due = d.DueDate.String()
			}
			return []any{d.ID, debtLabel(d.Kind), d.PersonName, d.Amount.String(), d.PaidAmount.String(), due, paidLabel(d.IsPaid), d.Description}
		}); err != nil {
		return err
	}

	if err := writeSheet(f, SheetReminders,
		[]any{"ID", "Başlık", "Tutar", "Gün", "Tip"},
		len(reminders), func(i int) []any {
			r := reminders[i]
			return []any{r.ID, r.Title, r.Amount.String(), r.DayOfMonth, string(r.Kind)}
		}); err != nil {
		return err
	}

	if err := writeSheet(f, SheetInstallments,
		[]any{"ID", "Açıklama", "Toplam Tutar", "Ay", "Kalan Ay", "Başlangıç"},
		len(installments), func(i int) []any {
			p := installments[i]
			return []any{p.ID, p.Description, p.TotalAmount.String(), p.TotalMonths, p.RemainingMonths, p.StartDate.String()}
		}); err != nil {
		return err
	}

	// Drop excelize's default sheet and land on the first real one.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(SheetTransactions)
	if err != nil {
		return fmt.Errorf("find transactions sheet: %w", err)
	}
	f.SetActiveSheet(idx)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, header []any, rows int, row func(i int) []any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	for i := 0; i < rows; i++ {
		values := row(i)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name for %s row %d: %w", name, i, err)
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i, err)
		}
	}
	return nil
}
