package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"

	Debt       DebtKind = "debt"
	Receivable DebtKind = "receivable"

	// Bill is the default reminder kind; the schema allows others.
	Bill ReminderKind = "bill"
)

type (
	TransactionKind string
	DebtKind        string
	ReminderKind    string

	// Date is a calendar date without a time component.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID            int64
		Kind          TransactionKind
		Amount        decimal.Decimal // positive magnitude; direction is Kind
		Category      string
		Date          Date
		Description   string
		InstallmentID int64 // 0 when not part of an installment plan
	}

	InstallmentPlan struct {
		ID              int64
		TotalAmount     decimal.Decimal
		TotalMonths     int
		RemainingMonths int
		StartDate       Date
		Description     string
	}

	DebtRecord struct {
		ID          int64
		Kind        DebtKind
		PersonName  string
		Amount      decimal.Decimal
		PaidAmount  decimal.Decimal
		DueDate     Date // zero when no due date set
		IsPaid      bool
		Description string
	}

	Reminder struct {
		ID         int64
		Title      string
		Amount     decimal.Decimal // estimated monthly obligation
		DayOfMonth int             // 1..31
		Kind       ReminderKind
	}
)

var (
	ErrInvalidKind       = errors.New("invalid kind")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 31")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyPersonName   = errors.New("empty person name")
	ErrEmptyTitle        = errors.New("empty title")
	ErrEmptyDescription  = errors.New("empty description")
	ErrTooFewMonths      = errors.New("installment needs at least 2 months")
)

// DateLayout is the persisted calendar-date format.
const DateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// IsEmpty reports whether the date was never set (optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (k TransactionKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (k DebtKind) Validate() error {
	switch k {
	case Debt, Receivable:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return t.Date.Validate()
}

func (p InstallmentPlan) Validate() error {
	if p.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if p.TotalMonths < 2 {
		return ErrTooFewMonths
	}
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyDescription
	}
	return p.StartDate.Validate()
}

func (d DebtRecord) Validate() error {
	if err := d.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.PersonName) == "" {
		return ErrEmptyPersonName
	}
	if d.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if d.PaidAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Outstanding returns the unpaid remainder, never negative.
func (d DebtRecord) Outstanding() decimal.Decimal {
	rest := d.Amount.Sub(d.PaidAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return ErrInvalidDayOfMonth
	}
	return nil
}
