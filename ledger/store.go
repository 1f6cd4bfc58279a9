/*
store.go - Persistence interfaces for payments, expenses, units and audit

PURPOSE:
  Defines the boundary between the ledger core and storage. The core is
  storage-agnostic: it works over an in-memory map or a SQL table as long
  as the implementation upholds the uniqueness invariant on
  (unit, category, period) at the storage boundary.

KEY INTERFACES:
  PaymentStore: Installment postings (insert, delete, list)
  ExpenseStore: Outgoing cash records
  UnitStore:    Unit registry (reference data; read-only to the core)
  AuditLog:     Who did what when; append-only

UNIQUENESS AT THE STORAGE BOUNDARY:
  PaymentStore.Insert MUST reject a payment whose (unit, category, period)
  collides with an existing record, returning ErrDuplicatePeriodPosting.
  The ledger re-checks before insert, but the store check is authoritative:
  it closes the time-of-check/time-of-use gap for implementations backed by
  a transactional unique constraint.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite with a unique index

SEE ALSO:
  - ledger.go: The service layered on these interfaces
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// PAYMENT STORE
// =============================================================================

// PaymentStore persists installment postings.
// Payments are immutable: no update operation exists. Corrections are an
// administrative delete followed by a fresh posting.
type PaymentStore interface {
	// Insert persists a payment. Returns ErrDuplicatePeriodPosting if a
	// payment with the same (unit, category, period) already exists.
	Insert(ctx context.Context, p Payment) error

	// Delete removes a payment. Returns ErrNotFound if the id is unknown.
	// Sibling payments are NOT renumbered.
	Delete(ctx context.Context, id PaymentID) error

	// Get returns a payment by id, or nil if it does not exist.
	Get(ctx context.Context, id PaymentID) (*Payment, error)

	// ListByUnit returns a unit's payments, newest first by CreatedAt.
	ListByUnit(ctx context.Context, unitID UnitID) ([]Payment, error)

	// ListByUnitCategory returns a unit's payments in one category,
	// newest first by CreatedAt. Used for installment numbering and
	// duplicate checks.
	ListByUnitCategory(ctx context.Context, unitID UnitID, category Category) ([]Payment, error)

	// ListAll returns a consistent snapshot of every payment.
	// Reports operate on this snapshot; a partially-written payment must
	// never be observable.
	ListAll(ctx context.Context) ([]Payment, error)
}

// =============================================================================
// EXPENSE STORE
// =============================================================================

// ExpenseStore persists outgoing cash records.
type ExpenseStore interface {
	Insert(ctx context.Context, e Expense) error

	// Delete removes an expense. Returns ErrNotFound if the id is unknown.
	Delete(ctx context.Context, id ExpenseID) error

	Get(ctx context.Context, id ExpenseID) (*Expense, error)

	// ListInRange returns expenses with CreatedAt in [from, to).
	ListInRange(ctx context.Context, from, to time.Time) ([]Expense, error)

	// ListAll returns a consistent snapshot of every expense.
	ListAll(ctx context.Context) ([]Expense, error)
}

// =============================================================================
// UNIT STORE - Reference data
// =============================================================================

// UnitStore is the unit registry. The ledger core only reads it; the
// save/delete operations exist for the administrative CRUD surface.
type UnitStore interface {
	// Get returns a unit by id, or nil if it does not exist.
	Get(ctx context.Context, id UnitID) (*Unit, error)

	// List returns all units ordered by block code.
	List(ctx context.Context) ([]Unit, error)

	Save(ctx context.Context, u Unit) error
	Delete(ctx context.Context, id UnitID) error
}

// =============================================================================
// AUDIT LOG - Separate from the ledger, fire-and-forget
// =============================================================================

// AuditAction names a recorded administrative action.
type AuditAction string

const (
	AuditPaymentCreated AuditAction = "payment_created"
	AuditPaymentDeleted AuditAction = "payment_deleted"
	AuditExpenseCreated AuditAction = "expense_created"
	AuditExpenseDeleted AuditAction = "expense_deleted"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID      string
	At      time.Time
	ActorID string
	Action  AuditAction
	Details map[string]string
}

// AuditLog stores audit entries. Append-only. A failing Record must never
// block the ledger write it describes; the ledger logs and continues.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter narrows an audit query. Nil fields match everything.
type AuditFilter struct {
	ActorID *string
	Actions []AuditAction
	From    *time.Time
	To      *time.Time
}

// NopAuditLog discards every entry. For callers that do not audit.
type NopAuditLog struct{}

func (NopAuditLog) Record(ctx context.Context, entry AuditEntry) error { return nil }
func (NopAuditLog) Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	return nil, nil
}
