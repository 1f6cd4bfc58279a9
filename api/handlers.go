/*
handlers.go - HTTP API handlers for the installment ledger

PURPOSE:
  Exposes the payment ledger and reporting engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic. No business rules live here.

ENDPOINTS:
  Payments:
    POST   /api/payments                     Post an installment
    DELETE /api/payments/{id}                Administrative delete
    GET    /api/payments/check               Pre-flight duplicate probe

  Expenses:
    POST   /api/expenses                     Record an expense
    DELETE /api/expenses/{id}                Administrative delete
    GET    /api/expenses                     Expenses for a month

  Units:
    GET    /api/units                        List units
    POST   /api/units                        Create unit
    GET    /api/units/{id}                   Get unit
    PUT    /api/units/{id}                   Update unit
    DELETE /api/units/{id}                   Delete unit
    GET    /api/units/{id}/payments          Payment history
    GET    /api/units/{id}/status            Settlement status for a month

  Reports:
    GET    /api/dashboard/stats              Headline numbers
    GET    /api/reports/aging                Receivables aging
    GET    /api/reports/trend?months=N       Monthly income trend
    GET    /api/reports/balance?year=&month= Monthly balance
    GET    /api/reports/due-soon?window=N    Upcoming due dates
    GET    /api/reports/matrix?year=Y        Status matrix for a year

  Audit:
    GET    /api/audit                        Query the audit trail

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Duplicate posting for the same unit/category/month
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. The service is designed to sit behind
  the portal's authenticating reverse proxy; the X-Actor-Id header is
  trusted as set by that proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warp/installment-ledger/applog"
	"github.com/warp/installment-ledger/ledger"
	"github.com/warp/installment-ledger/reports"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *ledger.Ledger
	Reports *reports.Engine
	Audit   ledger.AuditLog

	validate *validator.Validate
	log      *applog.Logger
}

// NewHandler creates a handler over the ledger and reporting engine.
func NewHandler(l *ledger.Ledger, r *reports.Engine, audit ledger.AuditLog, log *applog.Logger) *Handler {
	if audit == nil {
		audit = ledger.NopAuditLog{}
	}
	if log == nil {
		log = applog.Default()
	}
	return &Handler{
		Ledger:   l,
		Reports:  r,
		Audit:    audit,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.WithComponent("api"),
	}
}

// actorID identifies the operator behind a mutation. Set by the
// authenticating proxy in front of this service.
func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-Id")
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// CreatePayment posts one installment.
// POST /api/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	draft := ledger.PaymentDraft{
		UnitID:      ledger.UnitID(req.UnitID),
		Category:    ledger.Category(req.Category),
		Amount:      amount,
		Period:      req.Period.toDomain(),
		Status:      ledger.PaymentStatus(req.Status),
		Notes:       req.Notes,
		EvidenceRef: req.EvidenceRef,
		CreatedBy:   firstNonEmpty(req.CreatedBy, actorID(r)),
	}

	payment, err := h.Ledger.CreatePayment(r.Context(), draft)
	if err != nil {
		h.writeDomainError(w, "Failed to create payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, paymentDTO(payment))
}

// DeletePayment removes a posting. Surviving installment numbers keep
// their values.
// DELETE /api/payments/{id}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.PaymentID(chi.URLParam(r, "id"))

	if err := h.Ledger.DeletePayment(r.Context(), id, actorID(r)); err != nil {
		h.writeDomainError(w, "Failed to delete payment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckDuplicate answers the pre-flight probe the posting form uses to
// warn before submission. Advisory only: the commit path re-checks
// under lock.
// GET /api/payments/check?unit_id=&category=&year=&month=
func (h *Handler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unitID := ledger.UnitID(q.Get("unit_id"))
	category := ledger.Category(q.Get("category"))
	year, errY := strconv.Atoi(q.Get("year"))
	month, errM := strconv.Atoi(q.Get("month"))
	if unitID == "" || category == "" || errY != nil || errM != nil {
		writeError(w, http.StatusBadRequest, "unit_id, category, year and month are required", nil)
		return
	}

	period := ledger.NewPeriodKey(year, month)
	if err := period.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	existing, err := h.Ledger.CheckDuplicate(r.Context(), unitID, category, period)
	if err != nil {
		h.writeDomainError(w, "Failed to check for duplicate", err)
		return
	}

	resp := DuplicateCheckResponse{Duplicate: existing != nil}
	if existing != nil {
		dto := paymentDTO(*existing)
		resp.Existing = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// CreateExpense records one outgoing cash item.
// POST /api/expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	expense, err := h.Ledger.CreateExpense(r.Context(), ledger.ExpenseDraft{
		Payee:       req.Payee,
		Description: req.Description,
		Amount:      amount,
		Notes:       req.Notes,
		EvidenceRef: req.EvidenceRef,
		CreatedBy:   firstNonEmpty(req.CreatedBy, actorID(r)),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create expense", err)
		return
	}

	writeJSON(w, http.StatusCreated, expenseDTO(expense))
}

// DeleteExpense removes an expense record.
// DELETE /api/expenses/{id}
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := ledger.ExpenseID(chi.URLParam(r, "id"))

	if err := h.Ledger.DeleteExpense(r.Context(), id, actorID(r)); err != nil {
		h.writeDomainError(w, "Failed to delete expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListExpenses returns the expenses belonging to one calendar month.
// Membership is by creation time, not by a declared period.
// GET /api/expenses?year=&month=
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodFromQuery(w, r)
	if !ok {
		return
	}

	expenses, err := h.Ledger.ListExpensesByPeriod(r.Context(), period)
	if err != nil {
		h.writeDomainError(w, "Failed to list expenses", err)
		return
	}

	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = expenseDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

// ListUnits returns all units ordered by block code.
// GET /api/units
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Ledger.Units().List(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list units", err)
		return
	}

	dtos := make([]UnitDTO, len(units))
	for i, u := range units {
		dtos[i] = unitDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUnit returns a single unit.
// GET /api/units/{id}
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(chi.URLParam(r, "id"))

	unit, err := h.Ledger.Units().Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, unitDTO(*unit))
}

// CreateUnit registers a housing unit.
// POST /api/units
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	h.saveUnit(w, r, ledger.UnitID(uuid.NewString()), http.StatusCreated)
}

// UpdateUnit replaces a unit's reference data.
// PUT /api/units/{id}
func (h *Handler) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(chi.URLParam(r, "id"))

	existing, err := h.Ledger.Units().Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get unit", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}
	h.saveUnit(w, r, id, http.StatusOK)
}

func (h *Handler) saveUnit(w http.ResponseWriter, r *http.Request, id ledger.UnitID, okStatus int) {
	var req SaveUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	monthlyFee, err := ledger.ParseMoney(req.MonthlyFee)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid monthly fee", err)
		return
	}
	addonTotal := ledger.NewMoney(0)
	if req.AddonTotal != "" {
		addonTotal, err = ledger.ParseMoney(req.AddonTotal)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid addon total", err)
			return
		}
	}

	status := ledger.UnitStatus(req.Status)
	if status == "" {
		status = ledger.UnitActive
	}

	unit := ledger.Unit{
		ID:           id,
		BlockCode:    req.BlockCode,
		ResidentName: req.ResidentName,
		Phone:        req.Phone,
		DueDay:       req.DueDay,
		MonthlyFee:   monthlyFee,
		HasAddon:     req.HasAddon,
		AddonTotal:   addonTotal,
		Status:       status,
	}

	if err := h.Ledger.Units().Save(r.Context(), unit); err != nil {
		h.writeDomainError(w, "Failed to save unit", err)
		return
	}

	saved, err := h.Ledger.Units().Get(r.Context(), id)
	if err != nil || saved == nil {
		h.writeDomainError(w, "Failed to load saved unit", err)
		return
	}
	writeJSON(w, okStatus, unitDTO(*saved))
}

// DeleteUnit removes a unit.
// DELETE /api/units/{id}
func (h *Handler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(chi.URLParam(r, "id"))

	if err := h.Ledger.Units().Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete unit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUnitPayments returns a unit's payment history, newest first.
// GET /api/units/{id}/payments
func (h *Handler) GetUnitPayments(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(chi.URLParam(r, "id"))

	payments, err := h.Ledger.ListPaymentsByUnit(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = paymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUnitStatus classifies one unit for one billing month.
// GET /api/units/{id}/status?year=&month=
func (h *Handler) GetUnitStatus(w http.ResponseWriter, r *http.Request) {
	id := ledger.UnitID(chi.URLParam(r, "id"))
	period, ok := h.periodFromQuery(w, r)
	if !ok {
		return
	}

	status, err := h.Reports.StatusFor(r.Context(), id, period)
	if err != nil {
		h.writeDomainError(w, "Failed to classify unit", err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		UnitID: string(id),
		Period: periodDTO(period),
		Status: string(status),
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetStats returns the dashboard headline numbers for the current month.
// GET /api/dashboard/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reports.PaymentStats(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to compute stats", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		TotalThisMonth: stats.TotalThisMonth.String(),
		TotalUnits:     stats.TotalUnits,
		OverdueUnits:   stats.OverdueUnits,
	})
}

// GetAging returns the receivables aging report, most overdue first.
// GET /api/reports/aging
func (h *Handler) GetAging(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Reports.AgingReceivable(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to compute aging report", err)
		return
	}

	dtos := make([]AgingRowDTO, len(rows))
	for i, row := range rows {
		dto := AgingRowDTO{
			Unit:             unitDTO(row.Unit),
			DaysSincePayment: row.DaysSincePayment,
			TotalPaid:        row.TotalPaid.String(),
			NeverPaid:        row.NeverPaid,
		}
		if !row.NeverPaid {
			at := row.LastPaymentAt.Format(time.RFC3339)
			dto.LastPaymentAt = &at
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTrend returns the trailing monthly income totals, oldest first.
// GET /api/reports/trend?months=N
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	months, _ := strconv.Atoi(r.URL.Query().Get("months"))

	points, err := h.Reports.MonthlyIncomeTrend(r.Context(), months)
	if err != nil {
		h.writeDomainError(w, "Failed to compute income trend", err)
		return
	}

	dtos := make([]TrendPointDTO, len(points))
	for i, p := range points {
		dtos[i] = TrendPointDTO{
			Period: periodDTO(p.Period),
			Label:  p.Period.Canonical(),
			Total:  p.Total.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBalance returns one month's income/expense balance.
// GET /api/reports/balance?year=&month=
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodFromQuery(w, r)
	if !ok {
		return
	}

	balance, err := h.Reports.MonthlyBalance(r.Context(), period)
	if err != nil {
		h.writeDomainError(w, "Failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		Period:        periodDTO(balance.Period),
		TotalIncome:   balance.TotalIncome.String(),
		TotalExpenses: balance.TotalExpenses.String(),
		NetBalance:    balance.NetBalance.String(),
		PaymentCount:  balance.PaymentCount,
		ExpenseCount:  balance.ExpenseCount,
	})
}

// GetDueSoon lists units whose payment due day is coming up.
// GET /api/reports/due-soon?window=N
func (h *Handler) GetDueSoon(w http.ResponseWriter, r *http.Request) {
	window, _ := strconv.Atoi(r.URL.Query().Get("window"))

	rows, err := h.Reports.DueSoon(r.Context(), window)
	if err != nil {
		h.writeDomainError(w, "Failed to compute due-soon report", err)
		return
	}

	dtos := make([]DueSoonRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = DueSoonRowDTO{
			Unit:     unitDTO(row.Unit),
			DueDay:   row.Unit.DueDay,
			DaysLeft: row.DaysUntilDue,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMatrix returns every unit's settlement status for each month of a
// calendar year.
// GET /api/reports/matrix?year=Y
func (h *Handler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < ledger.MinYear {
		writeError(w, http.StatusBadRequest, "A valid year is required", err)
		return
	}

	rows, err := h.Reports.StatusMatrix(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, "Failed to compute status matrix", err)
		return
	}

	dtos := make([]MatrixRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = matrixRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// QueryAudit returns audit entries, newest first.
// GET /api/audit?actor_id=&action=&from=&to=
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ledger.AuditFilter

	if actor := q.Get("actor_id"); actor != "" {
		filter.ActorID = &actor
	}
	for _, a := range q["action"] {
		filter.Actions = append(filter.Actions, ledger.AuditAction(a))
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' timestamp", err)
			return
		}
		filter.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' timestamp", err)
			return
		}
		filter.To = &t
	}

	entries, err := h.Audit.Query(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = auditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// periodFromQuery parses ?year=&month= into a validated period key.
func (h *Handler) periodFromQuery(w http.ResponseWriter, r *http.Request) (ledger.PeriodKey, bool) {
	q := r.URL.Query()
	year, errY := strconv.Atoi(q.Get("year"))
	month, errM := strconv.Atoi(q.Get("month"))
	if errY != nil || errM != nil {
		writeError(w, http.StatusBadRequest, "year and month query parameters are required", nil)
		return ledger.PeriodKey{}, false
	}

	period := ledger.NewPeriodKey(year, month)
	if err := period.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return ledger.PeriodKey{}, false
	}
	return period, true
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrDuplicatePeriodPosting):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
