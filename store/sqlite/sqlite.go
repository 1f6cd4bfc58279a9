/*
Package sqlite provides a SQLite-backed implementation of the ledger's
storage interfaces.

PURPOSE:
  Implements PaymentStore, ExpenseStore, UnitStore and AuditLog over a
  single SQLite database. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

UNIQUENESS ENFORCEMENT:
  The payments table carries a unique index on (unit_id, category, period)
  where period is the canonical "YYYY-MM" string. The constraint is the
  authoritative guard against duplicate postings: even a writer that
  bypasses the ledger's mutex cannot post the same unit/category/month
  twice. Constraint violations surface as ledger.ErrDuplicatePeriodPosting.

AMOUNTS:
  Stored as decimal strings, never floats, so totals stay exact.

KEY TABLES:
  units:     Housing unit reference data
  payments:  Installment postings (unique per unit/category/month)
  expenses:  Outgoing cash records (no period column)
  audit_log: Append-only mutation trail

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers do not
  block the single writer and report reads stay consistent.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/installment-ledger/ledger"
)

// Store implements the ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Housing units (reference data)
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		block_code TEXT NOT NULL UNIQUE,
		resident_name TEXT NOT NULL,
		phone TEXT,
		due_day INTEGER NOT NULL DEFAULT 1,
		monthly_fee TEXT NOT NULL,
		has_addon BOOLEAN NOT NULL DEFAULT FALSE,
		addon_total TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	-- Installment postings
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		installment_no INTEGER NOT NULL,
		period TEXT NOT NULL,
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		period_day INTEGER,
		status TEXT NOT NULL,
		notes TEXT,
		evidence_ref TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT
	);

	-- CRITICAL: one posting per unit/category/billing month
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_unique_period
		ON payments(unit_id, category, period);

	CREATE INDEX IF NOT EXISTS idx_payments_unit
		ON payments(unit_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_payments_period
		ON payments(period);

	-- Outgoing cash records (no period column; membership by created_at)
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		payee TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL,
		notes TEXT,
		evidence_ref TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_created_at
		ON expenses(created_at);

	-- Audit trail (append-only; no UPDATE or DELETE statements exist)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PAYMENT STORE (ledger.PaymentStore interface)
// =============================================================================

const paymentColumns = `id, unit_id, category, amount, installment_no,
	period_year, period_month, period_day, status, notes, evidence_ref,
	created_at, created_by`

// Insert persists a payment. Maps the unique-index violation to
// ledger.ErrDuplicatePeriodPosting.
func (s *Store) Insert(ctx context.Context, p ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payments
		(id, unit_id, category, amount, installment_no, period,
		 period_year, period_month, period_day, status, notes, evidence_ref,
		 created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var day any
	if p.Period.Day != nil {
		day = *p.Period.Day
	}

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.UnitID,
		p.Category,
		p.Amount.String(),
		p.InstallmentNo,
		p.Period.Canonical(),
		p.Period.Year,
		p.Period.Month,
		day,
		p.Status,
		nullString(p.Notes),
		nullString(p.EvidenceRef),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullString(p.CreatedBy),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicatePeriodPosting
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// Delete removes a payment. Surviving installment numbers are not
// renumbered here or anywhere else.
func (s *Store) Delete(ctx context.Context, id ledger.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// Get returns a payment by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	payments, err := s.queryPayments(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, nil
	}
	return &payments[0], nil
}

// ListByUnit returns a unit's payments, newest first.
func (s *Store) ListByUnit(ctx context.Context, unitID ledger.UnitID) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE unit_id = ?
		ORDER BY created_at DESC, id DESC`
	return s.queryPayments(ctx, query, unitID)
}

// ListByUnitCategory returns a unit's payments in one category, newest first.
func (s *Store) ListByUnitCategory(ctx context.Context, unitID ledger.UnitID, category ledger.Category) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE unit_id = ? AND category = ?
		ORDER BY created_at DESC, id DESC`
	return s.queryPayments(ctx, query, unitID, category)
}

// ListAll returns every payment, newest first.
func (s *Store) ListAll(ctx context.Context) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + paymentColumns + `
		FROM payments ORDER BY created_at DESC, id DESC`
	return s.queryPayments(ctx, query)
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]ledger.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(rows *sql.Rows) (ledger.Payment, error) {
	var (
		p           ledger.Payment
		amount      string
		periodYear  int
		periodMonth int
		periodDay   sql.NullInt64
		notes       sql.NullString
		evidenceRef sql.NullString
		createdAt   string
		createdBy   sql.NullString
	)

	err := rows.Scan(
		&p.ID, &p.UnitID, &p.Category, &amount, &p.InstallmentNo,
		&periodYear, &periodMonth, &periodDay, &p.Status, &notes,
		&evidenceRef, &createdAt, &createdBy,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.Amount = ledger.MustParseMoney(amount)
	p.Period = ledger.NewPeriodKey(periodYear, periodMonth)
	if periodDay.Valid {
		d := int(periodDay.Int64)
		p.Period.Day = &d
	}
	p.Notes = notes.String
	p.EvidenceRef = evidenceRef.String
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.CreatedBy = createdBy.String
	return p, nil
}

// =============================================================================
// EXPENSE STORE (ledger.ExpenseStore interface)
// =============================================================================

const expenseColumns = `id, payee, description, amount, notes, evidence_ref, created_at, created_by`

// InsertExpense persists an expense record.
func (s *Store) InsertExpense(ctx context.Context, e ledger.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO expenses
		(id, payee, description, amount, notes, evidence_ref, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Payee, nullString(e.Description), e.Amount.String(),
		nullString(e.Notes), nullString(e.EvidenceRef),
		e.CreatedAt.UTC().Format(time.RFC3339Nano), nullString(e.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense record.
func (s *Store) DeleteExpense(ctx context.Context, id ledger.ExpenseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// GetExpense returns an expense by id, or nil when absent.
func (s *Store) GetExpense(ctx context.Context, id ledger.ExpenseID) (*ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`
	expenses, err := s.queryExpenses(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, nil
	}
	return &expenses[0], nil
}

// ListExpensesInRange returns expenses created in [from, to), newest first.
func (s *Store) ListExpensesInRange(ctx context.Context, from, to time.Time) ([]ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + expenseColumns + `
		FROM expenses
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at DESC, id DESC`
	return s.queryExpenses(ctx, query,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
}

// ListAllExpenses returns every expense, newest first.
func (s *Store) ListAllExpenses(ctx context.Context) ([]ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + expenseColumns + `
		FROM expenses ORDER BY created_at DESC, id DESC`
	return s.queryExpenses(ctx, query)
}

func (s *Store) queryExpenses(ctx context.Context, query string, args ...any) ([]ledger.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []ledger.Expense
	for rows.Next() {
		var (
			e           ledger.Expense
			description sql.NullString
			amount      string
			notes       sql.NullString
			evidenceRef sql.NullString
			createdAt   string
			createdBy   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Payee, &description, &amount, &notes,
			&evidenceRef, &createdAt, &createdBy); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Description = description.String
		e.Amount = ledger.MustParseMoney(amount)
		e.Notes = notes.String
		e.EvidenceRef = evidenceRef.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		e.CreatedBy = createdBy.String
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// =============================================================================
// UNIT STORE (ledger.UnitStore interface)
// =============================================================================

const unitColumns = `id, block_code, resident_name, phone, due_day,
	monthly_fee, has_addon, addon_total, status, created_at`

// GetUnit returns a unit by id, or nil when absent.
func (s *Store) GetUnit(ctx context.Context, id ledger.UnitID) (*ledger.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + unitColumns + ` FROM units WHERE id = ?`
	units, err := s.queryUnits(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, nil
	}
	return &units[0], nil
}

// ListUnits returns all units ordered by block code.
func (s *Store) ListUnits(ctx context.Context) ([]ledger.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + unitColumns + ` FROM units ORDER BY block_code`
	return s.queryUnits(ctx, query)
}

// SaveUnit inserts or updates a unit record.
func (s *Store) SaveUnit(ctx context.Context, u ledger.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO units
		(id, block_code, resident_name, phone, due_day, monthly_fee,
		 has_addon, addon_total, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			block_code = excluded.block_code,
			resident_name = excluded.resident_name,
			phone = excluded.phone,
			due_day = excluded.due_day,
			monthly_fee = excluded.monthly_fee,
			has_addon = excluded.has_addon,
			addon_total = excluded.addon_total,
			status = excluded.status
	`
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.BlockCode, u.ResidentName, nullString(u.Phone), u.DueDay,
		u.MonthlyFee.String(), u.HasAddon, u.AddonTotal.String(), u.Status,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

// DeleteUnit removes a unit record.
func (s *Store) DeleteUnit(ctx context.Context, id ledger.UnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM units WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete unit: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]ledger.Unit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []ledger.Unit
	for rows.Next() {
		var (
			u          ledger.Unit
			phone      sql.NullString
			monthlyFee string
			addonTotal string
			createdAt  string
		)
		if err := rows.Scan(&u.ID, &u.BlockCode, &u.ResidentName, &phone,
			&u.DueDay, &monthlyFee, &u.HasAddon, &addonTotal, &u.Status,
			&createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		u.Phone = phone.String
		u.MonthlyFee = ledger.MustParseMoney(monthlyFee)
		u.AddonTotal = ledger.MustParseMoney(addonTotal)
		u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		units = append(units, u)
	}
	return units, rows.Err()
}

// =============================================================================
// AUDIT LOG (ledger.AuditLog interface)
// =============================================================================

// Record appends an audit entry.
func (s *Store) Record(ctx context.Context, entry ledger.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var details sql.NullString
	if len(entry.Details) > 0 {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log (id, at, actor_id, action, details_json) VALUES (?, ?, ?, ?, ?)",
		entry.ID,
		entry.At.UTC().Format(time.RFC3339Nano),
		nullString(entry.ActorID),
		entry.Action,
		details,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, at, actor_id, action, details_json FROM audit_log WHERE 1=1"
	var args []any

	if filter.ActorID != nil {
		query += " AND actor_id = ?"
		args = append(args, *filter.ActorID)
	}
	if len(filter.Actions) > 0 {
		query += " AND action IN (?" + strings.Repeat(",?", len(filter.Actions)-1) + ")"
		for _, a := range filter.Actions {
			args = append(args, a)
		}
	}
	if filter.From != nil {
		query += " AND at >= ?"
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if filter.To != nil {
		query += " AND at < ?"
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []ledger.AuditEntry
	for rows.Next() {
		var (
			e       ledger.AuditEntry
			at      string
			actorID sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &actorID, &e.Action, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.ActorID = actorID.String
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// INTERFACE VIEWS - Narrow the multi-interface Store for wiring
// =============================================================================

// Expenses returns the store narrowed to ledger.ExpenseStore.
func (s *Store) Expenses() ledger.ExpenseStore { return expenseView{s} }

// Units returns the store narrowed to ledger.UnitStore.
func (s *Store) Units() ledger.UnitStore { return unitView{s} }

type expenseView struct{ s *Store }

func (v expenseView) Insert(ctx context.Context, e ledger.Expense) error {
	return v.s.InsertExpense(ctx, e)
}
func (v expenseView) Delete(ctx context.Context, id ledger.ExpenseID) error {
	return v.s.DeleteExpense(ctx, id)
}
func (v expenseView) Get(ctx context.Context, id ledger.ExpenseID) (*ledger.Expense, error) {
	return v.s.GetExpense(ctx, id)
}
func (v expenseView) ListInRange(ctx context.Context, from, to time.Time) ([]ledger.Expense, error) {
	return v.s.ListExpensesInRange(ctx, from, to)
}
func (v expenseView) ListAll(ctx context.Context) ([]ledger.Expense, error) {
	return v.s.ListAllExpenses(ctx)
}

type unitView struct{ s *Store }

func (v unitView) Get(ctx context.Context, id ledger.UnitID) (*ledger.Unit, error) {
	return v.s.GetUnit(ctx, id)
}
func (v unitView) List(ctx context.Context) ([]ledger.Unit, error) { return v.s.ListUnits(ctx) }
func (v unitView) Save(ctx context.Context, u ledger.Unit) error   { return v.s.SaveUnit(ctx, u) }
func (v unitView) Delete(ctx context.Context, id ledger.UnitID) error {
	return v.s.DeleteUnit(ctx, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
