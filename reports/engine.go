/*
Package reports derives read views from the ledger: dashboard statistics,
aging receivables, income trend, monthly reconciliation and due-date
reminders.

PURPOSE:
  Everything here is a pure function over a snapshot of units, payments
  and expenses. The engine holds no state of its own, never mutates the
  ledger, and is safe to call repeatedly: two calls with no intervening
  writes return identical results.

TIME:
  "This month", aging and due-date windows depend on today. The engine
  takes an injected Clock so tests can pin the calendar.

RESILIENCE:
  Queries never fail on malformed history. A payment imported without a
  period falls back to the month of its creation timestamp
  (Payment.EffectivePeriod); dashboards keep rendering through partially
  migrated data.

SEE ALSO:
  - status.go: The per-period classifier used by matrix and map views
  - ledger/store.go: The snapshot contracts the engine reads through
*/
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/warp/installment-ledger/ledger"
)

// Engine computes report views over the ledger stores.
type Engine struct {
	payments ledger.PaymentStore
	expenses ledger.ExpenseStore
	units    ledger.UnitStore
	clock    ledger.Clock
}

// NewEngine creates a report engine. Pass SystemClock{} outside of tests.
func NewEngine(payments ledger.PaymentStore, expenses ledger.ExpenseStore, units ledger.UnitStore, clock ledger.Clock) *Engine {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	return &Engine{payments: payments, expenses: expenses, units: units, clock: clock}
}

func (e *Engine) currentPeriod() ledger.PeriodKey {
	return ledger.PeriodOf(e.clock.Now())
}

// =============================================================================
// DASHBOARD STATISTICS
// =============================================================================

// Stats is the dashboard headline: cash collected this month, total units
// under management, and units with no principal posting for this month.
type Stats struct {
	TotalThisMonth ledger.Money
	TotalUnits     int
	OverdueUnits   int
}

// PaymentStats computes the dashboard statistics for the current month.
func (e *Engine) PaymentStats(ctx context.Context) (Stats, error) {
	units, payments, err := e.loadUnitsAndPayments(ctx)
	if err != nil {
		return Stats{}, err
	}

	now := e.currentPeriod()
	total := ledger.NewMoney(0)
	paidPrincipal := make(map[ledger.UnitID]bool)

	for _, p := range payments {
		if !p.EffectivePeriod().Equal(now) {
			continue
		}
		total = total.Add(p.Amount)
		if p.Category == ledger.CategoryPrincipal {
			paidPrincipal[p.UnitID] = true
		}
	}

	overdue := 0
	for _, u := range units {
		if !paidPrincipal[u.ID] {
			overdue++
		}
	}

	return Stats{TotalThisMonth: total, TotalUnits: len(units), OverdueUnits: overdue}, nil
}

// =============================================================================
// AGING RECEIVABLE
// =============================================================================

// AgingRow is one overdue unit in the receivables list. A unit that has
// never paid carries NeverPaid=true and DaysSincePayment=-1; consumers
// must branch on the flag, not the number.
type AgingRow struct {
	Unit             ledger.Unit
	LastPaymentAt    time.Time
	DaysSincePayment int
	TotalPaid        ledger.Money
	NeverPaid        bool
}

// AgingReceivable lists units with no principal posting for the current
// month, ranked by how long since their last payment (descending).
// Units flagged fully settled owe nothing and are excluded. Never-paid
// units sort after every unit with a finite age.
func (e *Engine) AgingReceivable(ctx context.Context) ([]AgingRow, error) {
	units, payments, err := e.loadUnitsAndPayments(ctx)
	if err != nil {
		return nil, err
	}

	now := e.currentPeriod()
	today := e.clock.Now()

	byUnit := make(map[ledger.UnitID][]ledger.Payment)
	for _, p := range payments {
		byUnit[p.UnitID] = append(byUnit[p.UnitID], p)
	}

	var rows []AgingRow
	for _, u := range units {
		if u.Status == ledger.UnitFullySettled {
			continue
		}

		unitPayments := byUnit[u.ID]
		if hasPrincipalInPeriod(unitPayments, now) {
			continue
		}

		row := AgingRow{Unit: u, TotalPaid: ledger.NewMoney(0)}
		var last time.Time
		for _, p := range unitPayments {
			row.TotalPaid = row.TotalPaid.Add(p.Amount)
			if p.CreatedAt.After(last) {
				last = p.CreatedAt
			}
		}
		if last.IsZero() {
			row.NeverPaid = true
			row.DaysSincePayment = -1
		} else {
			row.LastPaymentAt = last
			row.DaysSincePayment = int(today.Sub(last).Hours() / 24)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		// Never-paid is the worst age, regardless of its -1 sentinel.
		if rows[i].NeverPaid != rows[j].NeverPaid {
			return rows[j].NeverPaid
		}
		return rows[i].DaysSincePayment > rows[j].DaysSincePayment
	})
	return rows, nil
}

func hasPrincipalInPeriod(payments []ledger.Payment, period ledger.PeriodKey) bool {
	for _, p := range payments {
		if p.Category == ledger.CategoryPrincipal && p.EffectivePeriod().Equal(period) {
			return true
		}
	}
	return false
}

// =============================================================================
// INCOME TREND
// =============================================================================

// TrendPoint is one month of collected income.
type TrendPoint struct {
	Period ledger.PeriodKey
	Total  ledger.Money
}

// MonthlyIncomeTrend returns totals for the trailing n calendar months
// ending at the current month, oldest first. n defaults to 6 when zero
// or negative.
func (e *Engine) MonthlyIncomeTrend(ctx context.Context, n int) ([]TrendPoint, error) {
	if n <= 0 {
		n = 6
	}
	payments, err := e.payments.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	totals := make(map[string]ledger.Money)
	for _, p := range payments {
		k := p.EffectivePeriod().Canonical()
		totals[k] = totals[k].Add(p.Amount)
	}

	now := e.currentPeriod()
	points := make([]TrendPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		period := now.AddMonths(-i)
		points = append(points, TrendPoint{Period: period, Total: totals[period.Canonical()]})
	}
	return points, nil
}

// =============================================================================
// MONTHLY BALANCE (RECONCILIATION)
// =============================================================================

// MonthlyBalance reconciles one period: income from payments posted
// against it, expenses by creation month, net = income - expenses.
func (e *Engine) MonthlyBalance(ctx context.Context, period ledger.PeriodKey) (ledger.MonthlyBalance, error) {
	payments, err := e.payments.ListAll(ctx)
	if err != nil {
		return ledger.MonthlyBalance{}, fmt.Errorf("load payments: %w", err)
	}
	expenses, err := e.expenses.ListInRange(ctx, period.Start(), period.End())
	if err != nil {
		return ledger.MonthlyBalance{}, fmt.Errorf("load expenses: %w", err)
	}

	income := ledger.NewMoney(0)
	paymentCount := 0
	for _, p := range payments {
		if p.EffectivePeriod().Equal(period) {
			income = income.Add(p.Amount)
			paymentCount++
		}
	}

	outgoing := ledger.NewMoney(0)
	for _, x := range expenses {
		outgoing = outgoing.Add(x.Amount)
	}

	return ledger.MonthlyBalance{
		Period:        period,
		TotalIncome:   income,
		TotalExpenses: outgoing,
		NetBalance:    income.Sub(outgoing),
		PaymentCount:  paymentCount,
		ExpenseCount:  len(expenses),
	}, nil
}

// =============================================================================
// DUE-SOON REMINDERS
// =============================================================================

// DueSoonRow is one unit approaching (or just past) its due day.
type DueSoonRow struct {
	Unit         ledger.Unit
	DaysUntilDue int
}

// DueSoon lists units whose due day-of-month is within [-2, windowDays]
// of today's day-of-month, ordered soonest first. windowDays defaults to
// 5 when zero or negative.
//
// The comparison is day-of-month only and does not account for month
// rollover: a unit due on the 2nd is not flagged on the 28th of the
// previous month. The surrounding product depends on this behavior.
func (e *Engine) DueSoon(ctx context.Context, windowDays int) ([]DueSoonRow, error) {
	if windowDays <= 0 {
		windowDays = 5
	}
	units, err := e.units.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load units: %w", err)
	}

	today := e.clock.Now().Day()
	var rows []DueSoonRow
	for _, u := range units {
		d := u.DueDay - today
		if d >= -2 && d <= windowDays {
			rows = append(rows, DueSoonRow{Unit: u, DaysUntilDue: d})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DaysUntilDue < rows[j].DaysUntilDue })
	return rows, nil
}

// =============================================================================
// STATUS VIEWS
// =============================================================================

// StatusFor classifies a single unit for a period.
func (e *Engine) StatusFor(ctx context.Context, unitID ledger.UnitID, period ledger.PeriodKey) (Status, error) {
	unit, err := e.units.Get(ctx, unitID)
	if err != nil {
		return "", fmt.Errorf("resolve unit: %w", err)
	}
	if unit == nil {
		return "", &ledger.UnknownUnitError{UnitID: unitID}
	}
	payments, err := e.payments.ListByUnit(ctx, unitID)
	if err != nil {
		return "", fmt.Errorf("load payments: %w", err)
	}
	return Classify(*unit, period, payments), nil
}

// StatusMatrix computes the unit x month status grid for one year.
func (e *Engine) StatusMatrix(ctx context.Context, year int) ([]MatrixRow, error) {
	units, payments, err := e.loadUnitsAndPayments(ctx)
	if err != nil {
		return nil, err
	}

	byUnit := make(map[ledger.UnitID][]ledger.Payment)
	for _, p := range payments {
		byUnit[p.UnitID] = append(byUnit[p.UnitID], p)
	}

	rows := make([]MatrixRow, 0, len(units))
	for _, u := range units {
		row := MatrixRow{Unit: u}
		for month := 0; month < 12; month++ {
			row.Months[month] = Classify(u, ledger.NewPeriodKey(year, month), byUnit[u.ID])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// =============================================================================
// SNAPSHOT LOADING
// =============================================================================

func (e *Engine) loadUnitsAndPayments(ctx context.Context) ([]ledger.Unit, []ledger.Payment, error) {
	units, err := e.units.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load units: %w", err)
	}
	payments, err := e.payments.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load payments: %w", err)
	}
	return units, payments, nil
}
