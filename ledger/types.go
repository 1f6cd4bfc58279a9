/*
Package ledger provides the installment payment ledger and reconciliation core.

PURPOSE:
  This package records per-unit monthly installment payments for a housing
  development, prevents duplicate postings for the same billing period,
  and tracks outgoing expenses so reports can derive cash position.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount in the smallest unit, decimal-backed
  - Unit: A housing unit (reference data, read-only to the ledger)
  - Payment: An installment posting, never mutated after creation
  - Expense: An outgoing cash record, independent of the payment ledger

DESIGN PRINCIPLES:
  1. Whole-period postings: a payment settles a unit's month, no partials
  2. Append-mostly: payments are created and (rarely) deleted, never edited
  3. Precision: decimal.Decimal for all totals, no floating point
  4. Auditability: every posting records who created it and when

SEE ALSO:
  - ledger.go: Create/delete operations and invariants
  - period.go: PeriodKey identity rules
  - errors.go: Failure taxonomy
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount in the smallest unit (e.g. whole rupiah)
// =============================================================================

// Money is a currency amount. Amounts on postings must be positive whole
// numbers of the smallest currency unit; report totals use the same type.
type Money struct {
	value decimal.Decimal
}

// NewMoney creates a Money from an integer amount in the smallest unit.
func NewMoney(amount int64) Money {
	return Money{value: decimal.NewFromInt(amount)}
}

// MoneyFromDecimal wraps an existing decimal value.
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{value: d} }

// ParseMoney parses a decimal string from an untrusted source.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{value: d}, nil
}

// MustParseMoney parses a decimal string, returning zero on failure.
// Used when scanning stored amounts.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{value: decimal.Zero}
	}
	return Money{value: d}
}

func (m Money) Add(o Money) Money      { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money      { return Money{value: m.value.Sub(o.value)} }
func (m Money) Neg() Money             { return Money{value: m.value.Neg()} }
func (m Money) IsZero() bool           { return m.value.IsZero() }
func (m Money) IsPositive() bool       { return m.value.IsPositive() }
func (m Money) IsNegative() bool       { return m.value.IsNegative() }
func (m Money) Equal(o Money) bool     { return m.value.Equal(o.value) }
func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) String() string         { return m.value.String() }

// Int64 returns the amount as an integer of the smallest unit.
func (m Money) Int64() int64 { return m.value.IntPart() }

// IsWholeUnits reports whether the amount has no fractional part.
// Postings are validated to be whole units; totals always are by induction.
func (m Money) IsWholeUnits() bool { return m.value.Equal(m.value.Truncate(0)) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UnitID string
type PaymentID string
type ExpenseID string

// =============================================================================
// UNIT - Housing unit reference data (administered outside the ledger)
// =============================================================================

// UnitStatus is the manual administrative state of a whole unit.
// It is terminal for the unit, not a per-period fact, and always wins
// over ledger lookups in status classification.
type UnitStatus string

const (
	UnitActive            UnitStatus = "active"
	UnitPendingSettlement UnitStatus = "pending_settlement"
	UnitFullySettled      UnitStatus = "fully_settled"
)

// Unit is one housing unit. The ledger reads units, never writes them.
type Unit struct {
	ID           UnitID
	BlockCode    string // unique, e.g. "A-01"
	ResidentName string
	Phone        string
	DueDay       int // day of month the installment is due (1-31)
	MonthlyFee   Money
	HasAddon     bool  // extra construction on top of the base plan
	AddonTotal   Money // total cost of the addon work
	Status       UnitStatus
	CreatedAt    time.Time
}

// =============================================================================
// PAYMENT - One whole-period installment posting
// =============================================================================

// Category separates the base installment from addon-construction charges.
// A unit can have one posting per category per period.
type Category string

const (
	CategoryPrincipal Category = "principal"
	CategoryAddon     Category = "addon"
)

// PaymentStatus is the settlement state recorded on the posting itself.
type PaymentStatus string

const (
	PaymentSettled PaymentStatus = "settled"
	PaymentExcused PaymentStatus = "excused"
	PaymentUnpaid  PaymentStatus = "unpaid"
)

// Payment is an immutable installment posting. Created only through
// Ledger.CreatePayment; deleted only through Ledger.DeletePayment.
type Payment struct {
	ID            PaymentID
	UnitID        UnitID
	Category      Category
	Amount        Money
	InstallmentNo int
	Period        PeriodKey
	Status        PaymentStatus
	Notes         string
	EvidenceRef   string // opaque reference to uploaded proof, never interpreted
	CreatedAt     time.Time
	CreatedBy     string
}

// EffectivePeriod returns the recorded period, or one derived from
// CreatedAt when the period is missing (legacy imports). Reports use this
// so malformed history never breaks a dashboard.
func (p Payment) EffectivePeriod() PeriodKey {
	if p.Period.IsZero() {
		return PeriodOf(p.CreatedAt)
	}
	return p.Period
}

// =============================================================================
// EXPENSE - Outgoing cash, independent of the payment ledger
// =============================================================================

// Expense is an outgoing cash record. Expenses carry no explicit billing
// period; period membership is always derived from CreatedAt.
type Expense struct {
	ID          ExpenseID
	Payee       string
	Description string
	Amount      Money
	Notes       string
	EvidenceRef string
	CreatedAt   time.Time
	CreatedBy   string
}

// =============================================================================
// MONTHLY BALANCE - Derived reconciliation view (never stored)
// =============================================================================

// MonthlyBalance is the net cash position for one period.
// NetBalance is always TotalIncome - TotalExpenses.
type MonthlyBalance struct {
	Period        PeriodKey
	TotalIncome   Money
	TotalExpenses Money
	NetBalance    Money
	PaymentCount  int
	ExpenseCount  int
}
