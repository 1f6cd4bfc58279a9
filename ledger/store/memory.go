// Package store provides in-memory implementations of the ledger's
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/installment-ledger/ledger"
)

// =============================================================================
// MEMORY PAYMENT STORE
// =============================================================================

// MemoryPayments is an in-memory PaymentStore. Reads copy under an RLock,
// so report snapshots never observe a partially-written payment.
type MemoryPayments struct {
	mu       sync.RWMutex
	payments map[ledger.PaymentID]ledger.Payment
	// periodIndex mirrors the unique constraint a SQL store would carry:
	// canonicalPeriod -> payment id, keyed per unit+category.
	periodIndex map[postingKey]ledger.PaymentID
}

type postingKey struct {
	UnitID   ledger.UnitID
	Category ledger.Category
	Period   string
}

func NewMemoryPayments() *MemoryPayments {
	return &MemoryPayments{
		payments:    make(map[ledger.PaymentID]ledger.Payment),
		periodIndex: make(map[postingKey]ledger.PaymentID),
	}
}

func (m *MemoryPayments) Insert(_ context.Context, p ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := postingKey{UnitID: p.UnitID, Category: p.Category, Period: p.Period.Canonical()}
	if _, exists := m.periodIndex[k]; exists {
		return ledger.ErrDuplicatePeriodPosting
	}
	m.payments[p.ID] = p
	m.periodIndex[k] = p.ID
	return nil
}

func (m *MemoryPayments) Delete(_ context.Context, id ledger.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return ledger.ErrNotFound
	}
	delete(m.payments, id)
	delete(m.periodIndex, postingKey{UnitID: p.UnitID, Category: p.Category, Period: p.Period.Canonical()})
	return nil
}

func (m *MemoryPayments) Get(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryPayments) ListByUnit(_ context.Context, unitID ledger.UnitID) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Payment
	for _, p := range m.payments {
		if p.UnitID == unitID {
			result = append(result, p)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *MemoryPayments) ListByUnitCategory(_ context.Context, unitID ledger.UnitID, category ledger.Category) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Payment
	for _, p := range m.payments {
		if p.UnitID == unitID && p.Category == category {
			result = append(result, p)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *MemoryPayments) ListAll(_ context.Context) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		result = append(result, p)
	}
	sortNewestFirst(result)
	return result, nil
}

func sortNewestFirst(ps []ledger.Payment) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID // stable order for equal timestamps
	})
}

// =============================================================================
// MEMORY EXPENSE STORE
// =============================================================================

type MemoryExpenses struct {
	mu       sync.RWMutex
	expenses map[ledger.ExpenseID]ledger.Expense
}

func NewMemoryExpenses() *MemoryExpenses {
	return &MemoryExpenses{expenses: make(map[ledger.ExpenseID]ledger.Expense)}
}

func (m *MemoryExpenses) Insert(_ context.Context, e ledger.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.ID] = e
	return nil
}

func (m *MemoryExpenses) Delete(_ context.Context, id ledger.ExpenseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

func (m *MemoryExpenses) Get(_ context.Context, id ledger.ExpenseID) (*ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.expenses[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryExpenses) ListInRange(_ context.Context, from, to time.Time) ([]ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Expense
	for _, e := range m.expenses {
		at := e.CreatedAt.UTC()
		if !at.Before(from) && at.Before(to) {
			result = append(result, e)
		}
	}
	sortExpensesNewestFirst(result)
	return result, nil
}

func (m *MemoryExpenses) ListAll(_ context.Context) ([]ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		result = append(result, e)
	}
	sortExpensesNewestFirst(result)
	return result, nil
}

func sortExpensesNewestFirst(es []ledger.Expense) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].CreatedAt.Equal(es[j].CreatedAt) {
			return es[i].CreatedAt.After(es[j].CreatedAt)
		}
		return es[i].ID < es[j].ID
	})
}

// =============================================================================
// MEMORY UNIT STORE
// =============================================================================

type MemoryUnits struct {
	mu    sync.RWMutex
	units map[ledger.UnitID]ledger.Unit
}

func NewMemoryUnits() *MemoryUnits {
	return &MemoryUnits{units: make(map[ledger.UnitID]ledger.Unit)}
}

func (m *MemoryUnits) Get(_ context.Context, id ledger.UnitID) (*ledger.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryUnits) List(_ context.Context) ([]ledger.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Unit, 0, len(m.units))
	for _, u := range m.units {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BlockCode < result[j].BlockCode })
	return result, nil
}

func (m *MemoryUnits) Save(_ context.Context, u ledger.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[u.ID] = u
	return nil
}

func (m *MemoryUnits) Delete(_ context.Context, id ledger.UnitID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(m.units, id)
	return nil
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

type MemoryAudit struct {
	mu      sync.RWMutex
	entries []ledger.AuditEntry
}

func NewMemoryAudit() *MemoryAudit { return &MemoryAudit{} }

func (m *MemoryAudit) Record(_ context.Context, entry ledger.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryAudit) Query(_ context.Context, filter ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.AuditEntry
	for _, e := range m.entries {
		if filter.ActorID != nil && e.ActorID != *filter.ActorID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, e.Action) {
			continue
		}
		if filter.From != nil && e.At.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.At.Before(*filter.To) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func containsAction(actions []ledger.AuditAction, a ledger.AuditAction) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}
