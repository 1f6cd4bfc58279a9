/*
ledger.go - The installment ledger service

PURPOSE:
  The Ledger is the only writer of payments and expenses. It validates
  drafts, enforces the duplicate-posting invariant, assigns installment
  numbers, and emits audit events. All reads used by the UI go through it
  or through the report engine.

CRITICAL INVARIANTS:
  1. UNIQUENESS: at most one payment per (unit, category, period), where
     periods compare by calendar month only.
  2. COUNT-BASED NUMBERING: the installment number of a new payment is
     count(existing payments for unit+category) + 1. Deleting a payment
     does NOT renumber siblings, and a posting created after a deletion
     reuses whatever count then exists. Historical receipts keep their
     printed numbers; this exact semantics is a contract, not a bug.
  3. IMMUTABILITY: payments are never mutated; the only mutation is an
     explicit administrative delete.

WRITE SERIALIZATION:
  NextInstallmentNumber + duplicate-check + insert is a read-then-write
  sequence. A single write mutex serializes all ledger writes (writes are
  rare: one admin posting payments). Stores backed by a transactional
  unique constraint additionally enforce uniqueness at commit, so even a
  bypassing writer cannot corrupt the invariant.

AUDIT:
  Every successful command records an audit entry. Audit failures are
  logged and swallowed; they never block the write they describe.

SEE ALSO:
  - store.go: Persistence interfaces
  - reports/engine.go: Read-side aggregation over ledger snapshots
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/installment-ledger/applog"
)

// Ledger coordinates payment and expense commands over the backing stores.
// Safe for concurrent use: reads go straight to the stores, writes are
// serialized by an internal mutex.
type Ledger struct {
	payments PaymentStore
	expenses ExpenseStore
	units    UnitStore
	audit    AuditLog
	clock    Clock
	log      *applog.Logger

	writeMu sync.Mutex
}

// New creates a Ledger. Pass NopAuditLog{} to disable auditing and
// SystemClock{} outside of tests.
func New(payments PaymentStore, expenses ExpenseStore, units UnitStore, audit AuditLog, clock Clock, log *applog.Logger) *Ledger {
	if audit == nil {
		audit = NopAuditLog{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = applog.Default()
	}
	return &Ledger{
		payments: payments,
		expenses: expenses,
		units:    units,
		audit:    audit,
		clock:    clock,
		log:      log.WithComponent("ledger"),
	}
}

// Units exposes the unit registry for read access by API layers.
func (l *Ledger) Units() UnitStore { return l.units }

// =============================================================================
// PAYMENT COMMANDS
// =============================================================================

// PaymentDraft is the input to CreatePayment. InstallmentNo, ID and
// CreatedAt are assigned by the ledger at commit time.
type PaymentDraft struct {
	UnitID      UnitID
	Category    Category
	Amount      Money
	Period      PeriodKey
	Status      PaymentStatus
	Notes       string
	EvidenceRef string
	CreatedBy   string
}

// CreatePayment validates and appends a posting.
//
// Fails with ErrInvalidAmount when the amount is not a positive whole
// amount, ErrUnknownUnit when the unit does not resolve, ErrInvalidPeriod
// on a malformed period, and ErrDuplicatePeriodPosting when the same
// (unit, category, period) is already posted. The duplicate check a UI
// runs before submitting is advisory only; this re-check under the write
// lock is the authoritative one.
func (l *Ledger) CreatePayment(ctx context.Context, draft PaymentDraft) (Payment, error) {
	if err := draft.Period.Validate(); err != nil {
		return Payment{}, err
	}
	if !draft.Amount.IsPositive() || !draft.Amount.IsWholeUnits() {
		return Payment{}, &InvalidAmountError{UnitID: draft.UnitID, Amount: draft.Amount}
	}
	unit, err := l.units.Get(ctx, draft.UnitID)
	if err != nil {
		return Payment{}, fmt.Errorf("resolve unit: %w", err)
	}
	if unit == nil {
		return Payment{}, &UnknownUnitError{UnitID: draft.UnitID}
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	existing, err := l.findDuplicate(ctx, draft.UnitID, draft.Category, draft.Period)
	if err != nil {
		return Payment{}, err
	}
	if existing != nil {
		return Payment{}, &DuplicatePostingError{
			UnitID:   draft.UnitID,
			Category: draft.Category,
			Period:   draft.Period,
			Existing: *existing,
		}
	}

	no, err := l.installmentNumberLocked(ctx, draft.UnitID, draft.Category)
	if err != nil {
		return Payment{}, err
	}

	status := draft.Status
	if status == "" {
		status = PaymentSettled
	}

	p := Payment{
		ID:            PaymentID(uuid.NewString()),
		UnitID:        draft.UnitID,
		Category:      draft.Category,
		Amount:        draft.Amount,
		InstallmentNo: no,
		Period:        draft.Period,
		Status:        status,
		Notes:         draft.Notes,
		EvidenceRef:   draft.EvidenceRef,
		CreatedAt:     l.clock.Now(),
		CreatedBy:     draft.CreatedBy,
	}

	if err := l.payments.Insert(ctx, p); err != nil {
		// A store with its own unique constraint reports the race the
		// mutex cannot see (external writers on the same database).
		if errors.Is(err, ErrDuplicatePeriodPosting) {
			dup, _ := l.findDuplicate(ctx, draft.UnitID, draft.Category, draft.Period)
			dupErr := &DuplicatePostingError{UnitID: draft.UnitID, Category: draft.Category, Period: draft.Period}
			if dup != nil {
				dupErr.Existing = *dup
			}
			return Payment{}, dupErr
		}
		return Payment{}, fmt.Errorf("insert payment: %w", err)
	}

	l.recordAudit(ctx, draft.CreatedBy, AuditPaymentCreated, map[string]string{
		"payment_id": string(p.ID),
		"unit_id":    string(p.UnitID),
		"category":   string(p.Category),
		"period":     p.Period.Canonical(),
		"amount":     p.Amount.String(),
	})
	return p, nil
}

// DeletePayment removes a posting. Siblings keep their installment
// numbers; see the count-based numbering contract above.
func (l *Ledger) DeletePayment(ctx context.Context, id PaymentID, actorID string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	p, err := l.payments.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	if err := l.payments.Delete(ctx, id); err != nil {
		return err
	}

	l.recordAudit(ctx, actorID, AuditPaymentDeleted, map[string]string{
		"payment_id": string(id),
		"unit_id":    string(p.UnitID),
		"category":   string(p.Category),
		"period":     p.Period.Canonical(),
	})
	return nil
}

// =============================================================================
// PAYMENT QUERIES
// =============================================================================

// ListPaymentsByUnit returns a unit's postings, newest first.
func (l *Ledger) ListPaymentsByUnit(ctx context.Context, unitID UnitID) ([]Payment, error) {
	return l.payments.ListByUnit(ctx, unitID)
}

// NextInstallmentNumber returns the number the next posting for
// unit+category would receive: count of existing postings plus one.
// Advisory outside the write lock; CreatePayment recomputes at commit.
func (l *Ledger) NextInstallmentNumber(ctx context.Context, unitID UnitID, category Category) (int, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.installmentNumberLocked(ctx, unitID, category)
}

// CheckDuplicate returns the payment already posted for
// (unit, category, period), or nil. Periods compare by month.
func (l *Ledger) CheckDuplicate(ctx context.Context, unitID UnitID, category Category, period PeriodKey) (*Payment, error) {
	return l.findDuplicate(ctx, unitID, category, period)
}

func (l *Ledger) installmentNumberLocked(ctx context.Context, unitID UnitID, category Category) (int, error) {
	existing, err := l.payments.ListByUnitCategory(ctx, unitID, category)
	if err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return len(existing) + 1, nil
}

func (l *Ledger) findDuplicate(ctx context.Context, unitID UnitID, category Category, period PeriodKey) (*Payment, error) {
	existing, err := l.payments.ListByUnitCategory(ctx, unitID, category)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	for i := range existing {
		if existing[i].Period.Equal(period) {
			return &existing[i], nil
		}
	}
	return nil, nil
}

// =============================================================================
// EXPENSE COMMANDS AND QUERIES
// =============================================================================

// ExpenseDraft is the input to CreateExpense.
type ExpenseDraft struct {
	Payee       string
	Description string
	Amount      Money
	Notes       string
	EvidenceRef string
	CreatedBy   string
}

// CreateExpense validates and records an outgoing cash record.
func (l *Ledger) CreateExpense(ctx context.Context, draft ExpenseDraft) (Expense, error) {
	if !draft.Amount.IsPositive() || !draft.Amount.IsWholeUnits() {
		return Expense{}, &InvalidAmountError{Amount: draft.Amount}
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	e := Expense{
		ID:          ExpenseID(uuid.NewString()),
		Payee:       draft.Payee,
		Description: draft.Description,
		Amount:      draft.Amount,
		Notes:       draft.Notes,
		EvidenceRef: draft.EvidenceRef,
		CreatedAt:   l.clock.Now(),
		CreatedBy:   draft.CreatedBy,
	}
	if err := l.expenses.Insert(ctx, e); err != nil {
		return Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	l.recordAudit(ctx, draft.CreatedBy, AuditExpenseCreated, map[string]string{
		"expense_id": string(e.ID),
		"payee":      e.Payee,
		"amount":     e.Amount.String(),
	})
	return e, nil
}

// DeleteExpense removes an expense record.
func (l *Ledger) DeleteExpense(ctx context.Context, id ExpenseID, actorID string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	e, err := l.expenses.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}
	if e == nil {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	if err := l.expenses.Delete(ctx, id); err != nil {
		return err
	}

	l.recordAudit(ctx, actorID, AuditExpenseDeleted, map[string]string{
		"expense_id": string(id),
		"payee":      e.Payee,
	})
	return nil
}

// ListExpensesByPeriod returns expenses whose CreatedAt falls within the
// period's calendar month. Expenses have no explicit period field; period
// membership is derived from creation time, an intentional asymmetry with
// payments.
func (l *Ledger) ListExpensesByPeriod(ctx context.Context, period PeriodKey) ([]Expense, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return l.expenses.ListInRange(ctx, period.Start(), period.End())
}

// =============================================================================
// AUDIT
// =============================================================================

func (l *Ledger) recordAudit(ctx context.Context, actorID string, action AuditAction, details map[string]string) {
	entry := AuditEntry{
		ID:      uuid.NewString(),
		At:      l.clock.Now(),
		ActorID: actorID,
		Action:  action,
		Details: details,
	}
	if err := l.audit.Record(ctx, entry); err != nil {
		// Audit is fire-and-forget: the write it describes already happened.
		l.log.Warn("audit record failed", "action", string(action), "error", err)
	}
}
