/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes crossing the HTTP boundary. Domain types never
  serialize directly: DTOs decouple the wire format from internal structs
  so the ledger core can evolve without breaking clients.

VALIDATION:
  Request DTOs carry go-playground/validator tags. Validation runs at the
  boundary before any domain call; the ledger re-validates its own
  invariants (amounts, periods, duplicates) authoritatively.

CONVENTIONS:
  - Months are 0-based on the wire, matching the period key
  - Amounts are decimal strings ("150000"), never floats
  - Timestamps are RFC3339

SEE ALSO:
  - handlers.go: Where these are decoded, validated and mapped
*/
package api

import (
	"time"

	"github.com/warp/installment-ledger/ledger"
	"github.com/warp/installment-ledger/reports"
)

// =============================================================================
// SHARED
// =============================================================================

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// PeriodDTO is the wire form of a billing period. Month is 0-based.
// Day is informational and never part of period identity.
type PeriodDTO struct {
	Year  int  `json:"year" validate:"required,min=2025"`
	Month int  `json:"month" validate:"min=0,max=11"`
	Day   *int `json:"day,omitempty" validate:"omitempty,min=1,max=31"`
}

func (d PeriodDTO) toDomain() ledger.PeriodKey {
	p := ledger.NewPeriodKey(d.Year, d.Month)
	p.Day = d.Day
	return p
}

func periodDTO(p ledger.PeriodKey) PeriodDTO {
	return PeriodDTO{Year: p.Year, Month: p.Month, Day: p.Day}
}

// =============================================================================
// PAYMENTS
// =============================================================================

// CreatePaymentRequest posts one installment.
type CreatePaymentRequest struct {
	UnitID      string    `json:"unit_id" validate:"required"`
	Category    string    `json:"category" validate:"required,oneof=principal addon"`
	Amount      string    `json:"amount" validate:"required"`
	Period      PeriodDTO `json:"period" validate:"required"`
	Status      string    `json:"status" validate:"omitempty,oneof=settled excused unpaid"`
	Notes       string    `json:"notes" validate:"max=1000"`
	EvidenceRef string    `json:"evidence_ref" validate:"max=500"`
	CreatedBy   string    `json:"created_by" validate:"max=100"`
}

// PaymentDTO is the wire form of a posted installment.
type PaymentDTO struct {
	ID            string    `json:"id"`
	UnitID        string    `json:"unit_id"`
	Category      string    `json:"category"`
	Amount        string    `json:"amount"`
	InstallmentNo int       `json:"installment_no"`
	Period        PeriodDTO `json:"period"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	EvidenceRef   string    `json:"evidence_ref,omitempty"`
	CreatedAt     string    `json:"created_at"`
	CreatedBy     string    `json:"created_by,omitempty"`
}

func paymentDTO(p ledger.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            string(p.ID),
		UnitID:        string(p.UnitID),
		Category:      string(p.Category),
		Amount:        p.Amount.String(),
		InstallmentNo: p.InstallmentNo,
		Period:        periodDTO(p.Period),
		Status:        string(p.Status),
		Notes:         p.Notes,
		EvidenceRef:   p.EvidenceRef,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		CreatedBy:     p.CreatedBy,
	}
}

// DuplicateCheckResponse answers the pre-flight duplicate probe. The
// result is advisory only; the commit re-checks under lock.
type DuplicateCheckResponse struct {
	Duplicate bool        `json:"duplicate"`
	Existing  *PaymentDTO `json:"existing,omitempty"`
}

// =============================================================================
// EXPENSES
// =============================================================================

// CreateExpenseRequest records one outgoing cash item.
type CreateExpenseRequest struct {
	Payee       string `json:"payee" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	Amount      string `json:"amount" validate:"required"`
	Notes       string `json:"notes" validate:"max=1000"`
	EvidenceRef string `json:"evidence_ref" validate:"max=500"`
	CreatedBy   string `json:"created_by" validate:"max=100"`
}

// ExpenseDTO is the wire form of an expense record.
type ExpenseDTO struct {
	ID          string `json:"id"`
	Payee       string `json:"payee"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
	Notes       string `json:"notes,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
	CreatedAt   string `json:"created_at"`
	CreatedBy   string `json:"created_by,omitempty"`
}

func expenseDTO(e ledger.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          string(e.ID),
		Payee:       e.Payee,
		Description: e.Description,
		Amount:      e.Amount.String(),
		Notes:       e.Notes,
		EvidenceRef: e.EvidenceRef,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		CreatedBy:   e.CreatedBy,
	}
}

// =============================================================================
// UNITS
// =============================================================================

// SaveUnitRequest creates or updates a housing unit.
type SaveUnitRequest struct {
	BlockCode    string `json:"block_code" validate:"required,max=20"`
	ResidentName string `json:"resident_name" validate:"required,max=200"`
	Phone        string `json:"phone" validate:"max=30"`
	DueDay       int    `json:"due_day" validate:"min=1,max=28"`
	MonthlyFee   string `json:"monthly_fee" validate:"required"`
	HasAddon     bool   `json:"has_addon"`
	AddonTotal   string `json:"addon_total"`
	Status       string `json:"status" validate:"omitempty,oneof=active pending_settlement fully_settled"`
}

// UnitDTO is the wire form of a housing unit.
type UnitDTO struct {
	ID           string `json:"id"`
	BlockCode    string `json:"block_code"`
	ResidentName string `json:"resident_name"`
	Phone        string `json:"phone,omitempty"`
	DueDay       int    `json:"due_day"`
	MonthlyFee   string `json:"monthly_fee"`
	HasAddon     bool   `json:"has_addon"`
	AddonTotal   string `json:"addon_total"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

func unitDTO(u ledger.Unit) UnitDTO {
	return UnitDTO{
		ID:           string(u.ID),
		BlockCode:    u.BlockCode,
		ResidentName: u.ResidentName,
		Phone:        u.Phone,
		DueDay:       u.DueDay,
		MonthlyFee:   u.MonthlyFee.String(),
		HasAddon:     u.HasAddon,
		AddonTotal:   u.AddonTotal.String(),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// REPORTS
// =============================================================================

// StatsDTO is the dashboard headline block.
type StatsDTO struct {
	TotalThisMonth string `json:"total_this_month"`
	TotalUnits     int    `json:"total_units"`
	OverdueUnits   int    `json:"overdue_units"`
}

// AgingRowDTO is one line of the receivables aging report.
// DaysSincePayment is -1 when the unit has never paid; never-paid rows
// sort after everything else.
type AgingRowDTO struct {
	Unit             UnitDTO `json:"unit"`
	LastPaymentAt    *string `json:"last_payment_at,omitempty"`
	DaysSincePayment int     `json:"days_since_payment"`
	TotalPaid        string  `json:"total_paid"`
	NeverPaid        bool    `json:"never_paid"`
}

// TrendPointDTO is one month of the income trend, oldest first.
type TrendPointDTO struct {
	Period PeriodDTO `json:"period"`
	Label  string    `json:"label"`
	Total  string    `json:"total"`
}

// BalanceDTO summarizes one month's cash movement.
type BalanceDTO struct {
	Period        PeriodDTO `json:"period"`
	TotalIncome   string    `json:"total_income"`
	TotalExpenses string    `json:"total_expenses"`
	NetBalance    string    `json:"net_balance"`
	PaymentCount  int       `json:"payment_count"`
	ExpenseCount  int       `json:"expense_count"`
}

// DueSoonRowDTO is one unit whose due day falls inside the window.
type DueSoonRowDTO struct {
	Unit     UnitDTO `json:"unit"`
	DueDay   int     `json:"due_day"`
	DaysLeft int     `json:"days_left"`
}

// MatrixRowDTO is one unit's settlement status across a calendar year.
// Months is indexed 0..11.
type MatrixRowDTO struct {
	Unit   UnitDTO    `json:"unit"`
	Months [12]string `json:"months"`
}

// StatusResponse answers a single unit/period status probe.
type StatusResponse struct {
	UnitID string    `json:"unit_id"`
	Period PeriodDTO `json:"period"`
	Status string    `json:"status"`
}

func matrixRowDTO(row reports.MatrixRow) MatrixRowDTO {
	out := MatrixRowDTO{Unit: unitDTO(row.Unit)}
	for i, s := range row.Months {
		out.Months[i] = string(s)
	}
	return out
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntryDTO is the wire form of one audit record.
type AuditEntryDTO struct {
	ID      string            `json:"id"`
	At      string            `json:"at"`
	ActorID string            `json:"actor_id,omitempty"`
	Action  string            `json:"action"`
	Details map[string]string `json:"details,omitempty"`
}

func auditEntryDTO(e ledger.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:      e.ID,
		At:      e.At.Format(time.RFC3339),
		ActorID: e.ActorID,
		Action:  string(e.Action),
		Details: e.Details,
	}
}
