// Package storage is the ledger store: SQLite persistence for
// transactions, installment plans, debts and reminders.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"kasa/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// parseStoredAmount decodes an amount column. Amounts are stored as
// decimal strings so they never round through floats.
func parseStoredAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt amount %q: %w", s, err)
	}
	return d, nil
}

func nullableDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.String()
}

func nullableInstallment(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// --- Transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (type, amount, category, date, description, installment_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(t.Kind), t.Amount.String(), t.Category, t.Date.String(), t.Description,
		nullableInstallment(t.InstallmentID))
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"kind", t.Kind,
		"amount", t.Amount.String(),
		"category", t.Category,
		"date", t.Date.String())

	return id, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, type, amount, category, date, description, installment_id
		 FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns all transactions ordered most-recent-first.
// Rows whose date column no longer parses are skipped with a warning
// instead of failing the whole read.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, amount, category, date, description, installment_id
		 FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable transaction row", "error", err)
			continue
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET type = ?, amount = ?, category = ?, date = ?, description = ?
		 WHERE id = ?`,
		string(t.Kind), t.Amount.String(), t.Category, t.Date.String(), t.Description, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update transaction %d: %w", t.ID, sql.ErrNoRows)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete transaction %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t             core.Transaction
		kind          string
		amount        string
		date          string
		installmentID sql.NullInt64
	)
	if err := row.Scan(&t.ID, &kind, &amount, &t.Category, &date, &t.Description, &installmentID); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.TransactionKind(kind)

	var err error
	if t.Amount, err = parseStoredAmount(amount); err != nil {
		return core.Transaction{}, err
	}
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d has malformed date %q: %w", t.ID, date, err)
	}
	if installmentID.Valid {
		t.InstallmentID = installmentID.Int64
	}
	return t, nil
}

// --- Installment plans ---

func (r *SQLiteRepository) CreateInstallment(ctx context.Context, p core.InstallmentPlan) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO installments (total_amount, total_months, remaining_months, start_date, description)
		 VALUES (?, ?, ?, ?, ?)`,
		p.TotalAmount.String(), p.TotalMonths, p.RemainingMonths, p.StartDate.String(), p.Description)
	if err != nil {
		return 0, fmt.Errorf("create installment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("installment insert id: %w", err)
	}

	slog.InfoContext(ctx, "Installment plan saved",
		"id", id,
		"total_amount", p.TotalAmount.String(),
		"total_months", p.TotalMonths,
		"start_date", p.StartDate.String())

	return id, nil
}

func (r *SQLiteRepository) GetInstallment(ctx context.Context, id int64) (core.InstallmentPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, total_amount, total_months, remaining_months, start_date, description
		 FROM installments WHERE id = ?`, id)
	p, err := scanInstallment(row)
	if err != nil {
		return core.InstallmentPlan{}, fmt.Errorf("get installment %d: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListInstallments(ctx context.Context) ([]core.InstallmentPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, total_amount, total_months, remaining_months, start_date, description
		 FROM installments ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var out []core.InstallmentPlan
	for rows.Next() {
		p, err := scanInstallment(rows)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable installment row", "error", err)
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateInstallmentRemaining(ctx context.Context, id int64, remainingMonths int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE installments SET remaining_months = ? WHERE id = ?`, remainingMonths, id)
	if err != nil {
		return fmt.Errorf("update installment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update installment %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func scanInstallment(row rowScanner) (core.InstallmentPlan, error) {
	var (
		p      core.InstallmentPlan
		amount string
		start  string
	)
	if err := row.Scan(&p.ID, &amount, &p.TotalMonths, &p.RemainingMonths, &start, &p.Description); err != nil {
		return core.InstallmentPlan{}, err
	}
	var err error
	if p.TotalAmount, err = parseStoredAmount(amount); err != nil {
		return core.InstallmentPlan{}, err
	}
	if p.StartDate, err = core.ParseDate(start); err != nil {
		return core.InstallmentPlan{}, fmt.Errorf("installment %d has malformed start date %q: %w", p.ID, start, err)
	}
	return p, nil
}

// --- Debts ---

func (r *SQLiteRepository) CreateDebt(ctx context.Context, d core.DebtRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO debts (type, person_name, amount, paid_amount, due_date, is_paid, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(d.Kind), d.PersonName, d.Amount.String(), d.PaidAmount.String(),
		nullableDate(d.DueDate), boolToInt(d.IsPaid), d.Description)
	if err != nil {
		return 0, fmt.Errorf("create debt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("debt insert id: %w", err)
	}

	slog.InfoContext(ctx, "Debt record saved",
		"id", id,
		"kind", d.Kind,
		"person", d.PersonName,
		"amount", d.Amount.String())

	return id, nil
}

func (r *SQLiteRepository) GetDebt(ctx context.Context, id int64) (core.DebtRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, type, person_name, amount, paid_amount, due_date, is_paid, description
		 FROM debts WHERE id = ?`, id)
	d, err := scanDebt(row)
	if err != nil {
		return core.DebtRecord{}, fmt.Errorf("get debt %d: %w", id, err)
	}
	return d, nil
}

func (r *SQLiteRepository) ListDebts(ctx context.Context) ([]core.DebtRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, person_name, amount, paid_amount, due_date, is_paid, description
		 FROM debts ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var out []core.DebtRecord
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable debt row", "error", err)
			continue
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateDebt(ctx context.Context, d core.DebtRecord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE debts SET type = ?, person_name = ?, amount = ?, paid_amount = ?, due_date = ?, is_paid = ?, description = ?
		 WHERE id = ?`,
		string(d.Kind), d.PersonName, d.Amount.String(), d.PaidAmount.String(),
		nullableDate(d.DueDate), boolToInt(d.IsPaid), d.Description, d.ID)
	if err != nil {
		return fmt.Errorf("update debt %d: %w", d.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update debt %d: %w", d.ID, sql.ErrNoRows)
	}
	return nil
}

func (r *SQLiteRepository) DeleteDebt(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM debts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete debt %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete debt %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func scanDebt(row rowScanner) (core.DebtRecord, error) {
	var (
		d       core.DebtRecord
		kind    string
		amount  string
		paid    string
		dueDate sql.NullString
		isPaid  int
	)
	if err := row.Scan(&d.ID, &kind, &d.PersonName, &amount, &paid, &dueDate, &isPaid, &d.Description); err != nil {
		return core.DebtRecord{}, err
	}
	d.Kind = core.DebtKind(kind)
	d.IsPaid = isPaid != 0

	var err error
	if d.Amount, err = parseStoredAmount(amount); err != nil {
		return core.DebtRecord{}, err
	}
	if d.PaidAmount, err = parseStoredAmount(paid); err != nil {
		return core.DebtRecord{}, err
	}
	if dueDate.Valid && dueDate.String != "" {
		if d.DueDate, err = core.ParseDate(dueDate.String); err != nil {
			return core.DebtRecord{}, fmt.Errorf("debt %d has malformed due date %q: %w", d.ID, dueDate.String, err)
		}
	}
	return d, nil
}

// --- Reminders ---

func (r *SQLiteRepository) CreateReminder(ctx context.Context, rem core.Reminder) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (title, amount, day_of_month, type) VALUES (?, ?, ?, ?)`,
		rem.Title, rem.Amount.String(), rem.DayOfMonth, string(rem.Kind))
	if err != nil {
		return 0, fmt.Errorf("create reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reminder insert id: %w", err)
	}

	slog.InfoContext(ctx, "Reminder saved",
		"id", id,
		"title", rem.Title,
		"day_of_month", rem.DayOfMonth)

	return id, nil
}

func (r *SQLiteRepository) GetReminder(ctx context.Context, id int64) (core.Reminder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, amount, day_of_month, type FROM reminders WHERE id = ?`, id)
	rem, err := scanReminder(row)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("get reminder %d: %w", id, err)
	}
	return rem, nil
}

func (r *SQLiteRepository) ListReminders(ctx context.Context) ([]core.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, amount, day_of_month, type FROM reminders ORDER BY day_of_month, id`)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []core.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable reminder row", "error", err)
			continue
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteReminder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete reminder %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func scanReminder(row rowScanner) (core.Reminder, error) {
	var (
		rem    core.Reminder
		amount string
		kind   string
	)
	if err := row.Scan(&rem.ID, &rem.Title, &amount, &rem.DayOfMonth, &kind); err != nil {
		return core.Reminder{}, err
	}
	rem.Kind = core.ReminderKind(kind)

	var err error
	if rem.Amount, err = parseStoredAmount(amount); err != nil {
		return core.Reminder{}, err
	}
	return rem, nil
}

// --- Restore ---

// ReplaceAll wipes every table and re-inserts the given records with
// their original IDs, all inside one transaction. Used only by the
// backup restore path; nothing else crosses rows transactionally.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context,
	transactions []core.Transaction,
	debts []core.DebtRecord,
	reminders []core.Reminder,
	installments []core.InstallmentPlan,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transactions", "debts", "reminders", "installments"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	// Installments first so transaction foreign keys resolve.
	for _, p := range installments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO installments (id, total_amount, total_months, remaining_months, start_date, description)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.TotalAmount.String(), p.TotalMonths, p.RemainingMonths, p.StartDate.String(), p.Description); err != nil {
			return fmt.Errorf("restore installment %d: %w", p.ID, err)
		}
	}
	for _, t := range transactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, type, amount, category, date, description, installment_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, string(t.Kind), t.Amount.String(), t.Category, t.Date.String(), t.Description,
			nullableInstallment(t.InstallmentID)); err != nil {
			return fmt.Errorf("restore transaction %d: %w", t.ID, err)
		}
	}
	for _, d := range debts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO debts (id, type, person_name, amount, paid_amount, due_date, is_paid, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, string(d.Kind), d.PersonName, d.Amount.String(), d.PaidAmount.String(),
			nullableDate(d.DueDate), boolToInt(d.IsPaid), d.Description); err != nil {
			return fmt.Errorf("restore debt %d: %w", d.ID, err)
		}
	}
	for _, rem := range reminders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reminders (id, title, amount, day_of_month, type) VALUES (?, ?, ?, ?, ?)`,
			rem.ID, rem.Title, rem.Amount.String(), rem.DayOfMonth, string(rem.Kind)); err != nil {
			return fmt.Errorf("restore reminder %d: %w", rem.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}

	slog.InfoContext(ctx, "Ledger restored from backup",
		"transactions", len(transactions),
		"debts", len(debts),
		"reminders", len(reminders),
		"installments", len(installments))

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
