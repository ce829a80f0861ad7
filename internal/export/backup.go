package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"kasa/internal/core"
)

// BackupVersion is the envelope version written by WriteBackup and the
// only version ReadBackup accepts.
const BackupVersion = "1.0.0"

var (
	ErrBadBackup         = errors.New("malformed backup document")
	ErrBackupVersion     = errors.New("unsupported backup version")
	ErrBackupMissingData = errors.New("backup has no data section")
)

// Backup is the JSON envelope. Amounts travel as decimal strings and
// dates as YYYY-MM-DD, matching what the store persists.
type Backup struct {
	Version    string     `json:"version"`
	ExportDate time.Time  `json:"exportDate"`
	Data       BackupData `json:"data"`
}

type BackupData struct {
	Transactions []transactionRecord `json:"transactions"`
	Debts        []debtRecord        `json:"debts"`
	Reminders    []reminderRecord    `json:"reminders"`
	Installments []installmentRecord `json:"installments"`
}

type transactionRecord struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Date          string          `json:"date"`
	Description   string          `json:"description,omitempty"`
	InstallmentID int64           `json:"installmentId,omitempty"`
}

type debtRecord struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	PersonName  string          `json:"personName"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAmount  decimal.Decimal `json:"paidAmount"`
	DueDate     string          `json:"dueDate,omitempty"`
	IsPaid      bool            `json:"isPaid"`
	Description string          `json:"description,omitempty"`
}

type reminderRecord struct {
	ID         int64           `json:"id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	DayOfMonth int             `json:"dayOfMonth"`
	Type       string          `json:"type"`
}

type installmentRecord struct {
	ID              int64           `json:"id"`
	Description     string          `json:"description"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	TotalMonths     int             `json:"totalMonths"`
	RemainingMonths int             `json:"remainingMonths"`
	StartDate       string          `json:"startDate"`
}

// WriteBackup serializes the full dataset as an indented JSON document.
func WriteBackup(w io.Writer, exportedAt time.Time,
	transactions []core.Transaction,
	debts []core.DebtRecord,
	reminders []core.Reminder,
	installments []core.InstallmentPlan,
) error {
	doc := Backup{
		Version:    BackupVersion,
		ExportDate: exportedAt.UTC(),
		Data: BackupData{
			Transactions: make([]transactionRecord, 0, len(transactions)),
			Debts:        make([]debtRecord, 0, len(debts)),
			Reminders:    make([]reminderRecord, 0, len(reminders)),
			Installments: make([]installmentRecord, 0, len(installments)),
		},
	}
	for _, t := range transactions {
		doc.Data.Transactions = append(doc.Data.Transactions, transactionRecord{
			ID: t.ID, Type: string(t.Kind), Amount: t.Amount,
			Category: t.Category, Date: t.Date.String(),
			Description: t.Description, InstallmentID: t.InstallmentID,
		})
	}
	for _, d := range debts {
		rec := debtRecord{
			ID: d.ID, Type: string(d.Kind), PersonName: d.PersonName,
			Amount: d.Amount, PaidAmount: d.PaidAmount,
			IsPaid: d.IsPaid, Description: d.Description,
		}
		if !d.DueDate.IsEmpty() {
			rec.DueDate = d.DueDate.String()
		}
		doc.Data.Debts = append(doc.Data.Debts, rec)
	}
	for _, r := range reminders {
		doc.Data.Reminders = append(doc.Data.Reminders, reminderRecord{
			ID: r.ID, Title: r.Title, Amount: r.Amount,
			DayOfMonth: r.DayOfMonth, Type: string(r.Kind),
		})
	}
	for _, p := range installments {
		doc.Data.Installments = append(doc.Data.Installments, installmentRecord{
			ID: p.ID, Description: p.Description, TotalAmount: p.TotalAmount,
			TotalMonths: p.TotalMonths, RemainingMonths: p.RemainingMonths,
			StartDate: p.StartDate.String(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Dataset is a fully decoded and validated backup payload, ready to be
// handed to the store for a restore.
type Dataset struct {
	Transactions []core.Transaction
	Debts        []core.DebtRecord
	Reminders    []core.Reminder
	Installments []core.InstallmentPlan
}

// ReadBackup parses and validates a backup document. Missing entity
// arrays are treated as empty; anything else that is off (wrong
// version, absent data section, invalid record) fails the whole read
// so a restore never starts from a half-good document.
func ReadBackup(r io.Reader) (Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Dataset{}, fmt.Errorf("read backup: %w", err)
	}

	// A first pass distinguishes "data key absent" from "data key empty".
	var envelope struct {
		Version string           `json:"version"`
		Data    *json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	if envelope.Version != BackupVersion {
		return Dataset{}, fmt.Errorf("%w: %q", ErrBackupVersion, envelope.Version)
	}
	if envelope.Data == nil {
		return Dataset{}, ErrBackupMissingData
	}

	var doc Backup
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}

	out := Dataset{
		Transactions: make([]core.Transaction, 0, len(doc.Data.Transactions)),
		Debts:        make([]core.DebtRecord, 0, len(doc.Data.Debts)),
		Reminders:    make([]core.Reminder, 0, len(doc.Data.Reminders)),
		Installments: make([]core.InstallmentPlan, 0, len(doc.Data.Installments)),
	}

	for i, rec := range doc.Data.Transactions {
		date, err := core.ParseDate(rec.Date)
		if err != nil {
			return Dataset{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		t := core.Transaction{
			ID: rec.ID, Kind: core.TransactionKind(rec.Type), Amount: rec.Amount,
			Category: rec.Category, Date: date,
			Description: rec.Description, InstallmentID: rec.InstallmentID,
		}
		if err := t.Validate(); err != nil {
			return Dataset{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		out.Transactions = append(out.Transactions, t)
	}

	for i, rec := range doc.Data.Debts {
		d := core.DebtRecord{
			ID: rec.ID, Kind: core.DebtKind(rec.Type), PersonName: rec.PersonName,
			Amount: rec.Amount, PaidAmount: rec.PaidAmount,
			IsPaid: rec.IsPaid, Description: rec.Description,
		}
		if rec.DueDate != "" {
			due, err := core.ParseDate(rec.DueDate)
			if err != nil {
				return Dataset{}, fmt.Errorf("debt %d: %w", i, err)
			}
			d.DueDate = due
		}
		if err := d.Validate(); err != nil {
			return Dataset{}, fmt.Errorf("debt %d: %w", i, err)
		}
		out.Debts = append(out.Debts, d)
	}

	for i, rec := range doc.Data.Reminders {
		rem := core.Reminder{
			ID: rec.ID, Title: rec.Title, Amount: rec.Amount,
			DayOfMonth: rec.DayOfMonth, Kind: core.ReminderKind(rec.Type),
		}
		if rem.Kind == "" {
			rem.Kind = core.Bill
		}
		if err := rem.Validate(); err != nil {
			return Dataset{}, fmt.Errorf("reminder %d: %w", i, err)
		}
		out.Reminders = append(out.Reminders, rem)
	}

	for i, rec := range doc.Data.Installments {
		start, err := core.ParseDate(rec.StartDate)
		if err != nil {
			return Dataset{}, fmt.Errorf("installment %d: %w", i, err)
		}
		p := core.InstallmentPlan{
			ID: rec.ID, Description: rec.Description, TotalAmount: rec.TotalAmount,
			TotalMonths: rec.TotalMonths, RemainingMonths: rec.RemainingMonths,
			StartDate: start,
		}
		if err := p.Validate(); err != nil {
			return Dataset{}, fmt.Errorf("installment %d: %w", i, err)
		}
		out.Installments = append(out.Installments, p)
	}

	return out, nil
}
