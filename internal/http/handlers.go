package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"kasa/internal/core"
	"kasa/internal/export"
	"kasa/internal/services"
	"kasa/internal/state"
)

// Wire representations. Amounts travel as decimal strings and dates as
// YYYY-MM-DD, same as the backup format.

// amount decodes JSON amounts. Numbers and dot-decimal strings go
// through the decimal codec; comma-separated lira strings ("1250,50")
// fall back to the lira parser. Marshalling is the embedded decimal's.
type amount struct {
	decimal.Decimal
}

func (a *amount) UnmarshalJSON(b []byte) error {
	if err := a.Decimal.UnmarshalJSON(b); err == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid amount %s", b)
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

type transactionPayload struct {
	ID            int64  `json:"id,omitempty"`
	Type          string `json:"type"`
	Amount        amount `json:"amount"`
	Category      string `json:"category"`
	Date          string `json:"date"`
	Description   string `json:"description,omitempty"`
	InstallmentID int64  `json:"installmentId,omitempty"`
}

type debtPayload struct {
	ID          int64  `json:"id,omitempty"`
	Type        string `json:"type"`
	PersonName  string `json:"personName"`
	Amount      amount `json:"amount"`
	PaidAmount  amount `json:"paidAmount"`
	DueDate     string `json:"dueDate,omitempty"`
	IsPaid      bool   `json:"isPaid"`
	Description string `json:"description,omitempty"`
}

type reminderPayload struct {
	ID         int64  `json:"id,omitempty"`
	Title      string `json:"title"`
	Amount     amount `json:"amount"`
	DayOfMonth int    `json:"dayOfMonth"`
	Type       string `json:"type,omitempty"`
	Hour       *int   `json:"hour,omitempty"`
	Minute     *int   `json:"minute,omitempty"`
}

type installmentPayload struct {
	ID              int64  `json:"id,omitempty"`
	Description     string `json:"description"`
	TotalAmount     amount `json:"totalAmount"`
	TotalMonths     int    `json:"totalMonths"`
	RemainingMonths int    `json:"remainingMonths,omitempty"`
	StartDate       string `json:"startDate"`
}

type kpiPayload struct {
	MonthlyIncome        decimal.Decimal `json:"monthlyIncome"`
	MonthlyExpense       decimal.Decimal `json:"monthlyExpense"`
	GrandTotalIncome     decimal.Decimal `json:"grandTotalIncome"`
	GrandTotalExpense    decimal.Decimal `json:"grandTotalExpense"`
	TotalOutstandingDebt decimal.Decimal `json:"totalOutstandingDebt"`
}

type dailyBucketPayload struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

type dashboardPayload struct {
	Transactions  []transactionPayload `json:"transactions"`
	Debts         []debtPayload        `json:"debts"`
	Reminders     []reminderPayload    `json:"reminders"`
	Installments  []installmentPayload `json:"installments"`
	Kpi           kpiPayload           `json:"kpi"`
	DailySpending []dailyBucketPayload `json:"dailySpending"`
	RefreshedAt   time.Time            `json:"refreshedAt"`
}

func toDashboardPayload(snap state.Snapshot) dashboardPayload {
	out := dashboardPayload{
		Transactions:  make([]transactionPayload, 0, len(snap.Transactions)),
		Debts:         make([]debtPayload, 0, len(snap.Debts)),
		Reminders:     make([]reminderPayload, 0, len(snap.Reminders)),
		Installments:  make([]installmentPayload, 0, len(snap.Installments)),
		DailySpending: make([]dailyBucketPayload, 0, len(snap.DailySpending)),
		Kpi: kpiPayload{
			MonthlyIncome:        snap.Kpi.MonthlyIncome,
			MonthlyExpense:       snap.Kpi.MonthlyExpense,
			GrandTotalIncome:     snap.Kpi.GrandTotalIncome,
			GrandTotalExpense:    snap.Kpi.GrandTotalExpense,
			TotalOutstandingDebt: snap.Kpi.TotalOutstandingDebt,
		},
		RefreshedAt: snap.RefreshedAt,
	}
	for _, t := range snap.Transactions {
		out.Transactions = append(out.Transactions, transactionPayload{
			ID: t.ID, Type: string(t.Kind), Amount: amount{t.Amount},
			Category: t.Category, Date: t.Date.String(),
			Description: t.Description, InstallmentID: t.InstallmentID,
		})
	}
	for _, d := range snap.Debts {
		p := debtPayload{
			ID: d.ID, Type: string(d.Kind), PersonName: d.PersonName,
			Amount: amount{d.Amount}, PaidAmount: amount{d.PaidAmount},
			IsPaid: d.IsPaid, Description: d.Description,
		}
		if !d.DueDate.IsEmpty() {
			p.DueDate = d.DueDate.String()
		}
		out.Debts = append(out.Debts, p)
	}
	for _, r := range snap.Reminders {
		out.Reminders = append(out.Reminders, reminderPayload{
			ID: r.ID, Title: r.Title, Amount: amount{r.Amount},
			DayOfMonth: r.DayOfMonth, Type: string(r.Kind),
		})
	}
	for _, p := range snap.Installments {
		out.Installments = append(out.Installments, installmentPayload{
			ID: p.ID, Description: p.Description, TotalAmount: amount{p.TotalAmount},
			TotalMonths: p.TotalMonths, RemainingMonths: p.RemainingMonths,
			StartDate: p.StartDate.String(),
		})
	}
	for _, b := range snap.DailySpending {
		out.DailySpending = append(out.DailySpending, dailyBucketPayload{
			Date: b.Date.String(), Total: b.Total,
		})
	}
	return out
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toDashboardPayload(s.coordinator.Snapshot()))
}

func (s *Server) handleRefreshDashboard(w http.ResponseWriter, r *http.Request) {
	refreshed, err := s.coordinator.RefreshDashboard(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard refresh failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Refreshed bool             `json:"refreshed"`
		Dashboard dashboardPayload `json:"dashboard"`
	}{refreshed, toDashboardPayload(s.coordinator.Snapshot())})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPayload
	if !decodeBody(w, r, &req) {
		return
	}
	t, ok := s.transactionFromPayload(w, req)
	if !ok {
		return
	}
	id, err := s.coordinator.AddTransaction(r.Context(), t)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	req.ID = id
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req transactionPayload
	if !decodeBody(w, r, &req) {
		return
	}
	t, ok := s.transactionFromPayload(w, req)
	if !ok {
		return
	}
	t.ID = id
	if err := s.coordinator.UpdateTransaction(r.Context(), t); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.coordinator.DeleteTransaction(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) transactionFromPayload(w http.ResponseWriter, req transactionPayload) (core.Transaction, bool) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return core.Transaction{}, false
	}
	return core.Transaction{
		Kind:          core.TransactionKind(req.Type),
		Amount:        req.Amount.Decimal,
		Category:      req.Category,
		Date:          date,
		Description:   req.Description,
		InstallmentID: req.InstallmentID,
	}, true
}

func (s *Server) handleCreateInstallment(w http.ResponseWriter, r *http.Request) {
	var req installmentPayload
	if !decodeBody(w, r, &req) {
		return
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid startDate, expected YYYY-MM-DD")
		return
	}
	plan, err := s.coordinator.AddInstallment(r.Context(), core.InstallmentPlan{
		Description: req.Description,
		TotalAmount: req.TotalAmount.Decimal,
		TotalMonths: req.TotalMonths,
		StartDate:   start,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, installmentPayload{
		ID: plan.ID, Description: plan.Description, TotalAmount: amount{plan.TotalAmount},
		TotalMonths: plan.TotalMonths, RemainingMonths: plan.RemainingMonths,
		StartDate: plan.StartDate.String(),
	})
}

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	var req debtPayload
	if !decodeBody(w, r, &req) {
		return
	}
	d, ok := s.debtFromPayload(w, req)
	if !ok {
		return
	}
	id, err := s.coordinator.AddDebt(r.Context(), d)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	req.ID = id
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req debtPayload
	if !decodeBody(w, r, &req) {
		return
	}
	d, ok := s.debtFromPayload(w, req)
	if !ok {
		return
	}
	d.ID = id
	if err := s.coordinator.UpdateDebt(r.Context(), d); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.coordinator.DeleteDebt(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordDebtPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount amount `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := s.coordinator.RecordDebtPayment(r.Context(), id, req.Amount.Decimal)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, debtPayload{
		ID: d.ID, Type: string(d.Kind), PersonName: d.PersonName,
		Amount: amount{d.Amount}, PaidAmount: amount{d.PaidAmount},
		IsPaid: d.IsPaid, Description: d.Description,
	})
}

func (s *Server) debtFromPayload(w http.ResponseWriter, req debtPayload) (core.DebtRecord, bool) {
	d := core.DebtRecord{
		Kind:        core.DebtKind(req.Type),
		PersonName:  req.PersonName,
		Amount:      req.Amount.Decimal,
		PaidAmount:  req.PaidAmount.Decimal,
		IsPaid:      req.IsPaid,
		Description: req.Description,
	}
	if req.DueDate != "" {
		due, err := core.ParseDate(req.DueDate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid dueDate, expected YYYY-MM-DD")
			return core.DebtRecord{}, false
		}
		d.DueDate = due
	}
	return d, true
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderPayload
	if !decodeBody(w, r, &req) {
		return
	}
	hour := services.DefaultReminderHour
	minute := services.DefaultReminderMinute
	if req.Hour != nil {
		hour = *req.Hour
	}
	if req.Minute != nil {
		minute = *req.Minute
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		writeError(w, http.StatusUnprocessableEntity, "invalid reminder time")
		return
	}
	created, err := s.coordinator.AddReminder(r.Context(), core.Reminder{
		Title:      req.Title,
		Amount:     req.Amount.Decimal,
		DayOfMonth: req.DayOfMonth,
		Kind:       core.ReminderKind(req.Type),
	}, hour, minute)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reminderPayload{
		ID: created.ID, Title: created.Title, Amount: amount{created.Amount},
		DayOfMonth: created.DayOfMonth, Type: string(created.Kind),
	})
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.coordinator.DeleteReminder(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	snap := s.coordinator.Snapshot()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="kasa-export.xlsx"`)
	if err := export.WriteWorkbook(w, snap.Transactions, snap.Debts, snap.Reminders, snap.Installments); err != nil {
		// Headers are gone by now; all that is left is logging.
		s.logger.ErrorContext(r.Context(), "Excel export failed", "error", err)
	}
}

func (s *Server) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	snap := s.coordinator.Snapshot()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="kasa-backup.json"`)
	if err := export.WriteBackup(w, time.Now(), snap.Transactions, snap.Debts, snap.Reminders, snap.Installments); err != nil {
		s.logger.ErrorContext(r.Context(), "Backup export failed", "error", err)
	}
}

func (s *Server) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<20)
	ds, err := export.ReadBackup(r.Body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.coordinator.RestoreAll(r.Context(), ds.Transactions, ds.Debts, ds.Reminders, ds.Installments); err != nil {
		s.logger.ErrorContext(r.Context(), "Backup restore failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Transactions int `json:"transactions"`
		Debts        int `json:"debts"`
		Reminders    int `json:"reminders"`
		Installments int `json:"installments"`
	}{len(ds.Transactions), len(ds.Debts), len(ds.Reminders), len(ds.Installments)})
}
