package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/installment-ledger/ledger"
	"github.com/warp/installment-ledger/ledger/store"
	"github.com/warp/installment-ledger/reports"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// June 10, 2025. All engine windows in these tests hang off this instant.
var engineNow = time.Date(2025, time.June, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	payments *store.MemoryPayments
	expenses *store.MemoryExpenses
	units    *store.MemoryUnits
	engine   *reports.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		payments: store.NewMemoryPayments(),
		expenses: store.NewMemoryExpenses(),
		units:    store.NewMemoryUnits(),
	}
	f.engine = reports.NewEngine(f.payments, f.expenses, f.units, ledger.FixedClock{At: engineNow})
	return f
}

func (f *fixture) addUnit(t *testing.T, id, block string, dueDay int, status ledger.UnitStatus) {
	t.Helper()
	require.NoError(t, f.units.Save(context.Background(), ledger.Unit{
		ID:           ledger.UnitID(id),
		BlockCode:    block,
		ResidentName: "Resident " + block,
		DueDay:       dueDay,
		MonthlyFee:   ledger.NewMoney(150000),
		Status:       status,
		CreatedAt:    engineNow.AddDate(-1, 0, 0),
	}))
}

func (f *fixture) addPayment(t *testing.T, id, unitID string, category ledger.Category, amount int64, period ledger.PeriodKey, createdAt time.Time) {
	t.Helper()
	require.NoError(t, f.payments.Insert(context.Background(), ledger.Payment{
		ID:            ledger.PaymentID(id),
		UnitID:        ledger.UnitID(unitID),
		Category:      category,
		Amount:        ledger.NewMoney(amount),
		InstallmentNo: 1,
		Period:        period,
		Status:        ledger.PaymentSettled,
		CreatedAt:     createdAt,
	}))
}

func (f *fixture) addExpense(t *testing.T, id string, amount int64, createdAt time.Time) {
	t.Helper()
	require.NoError(t, f.expenses.Insert(context.Background(), ledger.Expense{
		ID:        ledger.ExpenseID(id),
		Payee:     "Vendor",
		Amount:    ledger.NewMoney(amount),
		CreatedAt: createdAt,
	}))
}

// =============================================================================
// DASHBOARD STATISTICS
// =============================================================================

func TestPaymentStats_CurrentMonthOnly(t *testing.T) {
	// GIVEN: Two units; one paid June, one paid only May
	// THEN: June total counts only June money; the May-only unit is overdue

	f := newFixture(t)
	f.addUnit(t, "u1", "A1", 10, ledger.UnitActive)
	f.addUnit(t, "u2", "A2", 10, ledger.UnitActive)

	june := ledger.NewPeriodKey(2025, 5)
	may := ledger.NewPeriodKey(2025, 4)
	f.addPayment(t, "p1", "u1", ledger.CategoryPrincipal, 150000, june, engineNow)
	f.addPayment(t, "p2", "u2", ledger.CategoryPrincipal, 150000, may, engineNow.AddDate(0, -1, 0))

	stats, err := f.engine.PaymentStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "150000", stats.TotalThisMonth.String())
	assert.Equal(t, 2, stats.TotalUnits)
	assert.Equal(t, 1, stats.OverdueUnits)
}

func TestPaymentStats_AddonCountsTowardTotalNotSettlement(t *testing.T) {
	// An addon posting adds cash to the month's total but does not clear
	// the unit's principal obligation.

	f := newFixture(t)
	f.addUnit(t, "u1", "A1", 10, ledger.UnitActive)

	june := ledger.NewPeriodKey(2025, 5)
	f.addPayment(t, "p1", "u1", ledger.CategoryAddon, 100000, june, engineNow)

	stats, err := f.engine.PaymentStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "100000", stats.TotalThisMonth.String())
	assert.Equal(t, 1, stats.OverdueUnits)
}

// =============================================================================
// AGING RECEIVABLE
// =============================================================================

func TestAgingReceivable_OrderingAndSentinel(t *testing.T) {
	// GIVEN: Three delinquent units - last paid 30 days ago, 90 days ago,
	//        and never paid at all
	// THEN: Ordered most-overdue first, never-paid last despite its -1

	f := newFixture(t)
	f.addUnit(t, "u30", "A1", 10, ledger.UnitActive)
	f.addUnit(t, "u90", "A2", 10, ledger.UnitActive)
	f.addUnit(t, "never", "A3", 10, ledger.UnitActive)

	f.addPayment(t, "p30", "u30", ledger.CategoryPrincipal, 150000,
		ledger.NewPeriodKey(2025, 4), engineNow.AddDate(0, 0, -30))
	f.addPayment(t, "p90", "u90", ledger.CategoryPrincipal, 150000,
		ledger.NewPeriodKey(2025, 2), engineNow.AddDate(0, 0, -90))

	rows, err := f.engine.AgingReceivable(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, ledger.UnitID("u90"), rows[0].Unit.ID)
	assert.Equal(t, 90, rows[0].DaysSincePayment)
	assert.Equal(t, ledger.UnitID("u30"), rows[1].Unit.ID)
	assert.Equal(t, 30, rows[1].DaysSincePayment)

	assert.Equal(t, ledger.UnitID("never"), rows[2].Unit.ID)
	assert.True(t, rows[2].NeverPaid)
	assert.Equal(t, -1, rows[2].DaysSincePayment)
	assert.Equal(t, "0", rows[2].TotalPaid.String())
}

func TestAgingReceivable_ExcludesSettledAndCurrent(t *testing.T) {
	f := newFixture(t)
	f.addUnit(t, "paid", "A1", 10, ledger.UnitActive)
	f.addUnit(t, "done", "A2", 10, ledger.UnitFullySettled)
	f.addUnit(t, "late", "A3", 10, ledger.UnitActive)

	// "paid" has a June principal posting, so it owes nothing right now.
	f.addPayment(t, "p1", "paid", ledger.CategoryPrincipal, 150000,
		ledger.NewPeriodKey(2025, 5), engineNow)

	rows, err := f.engine.AgingReceivable(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.UnitID("late"), rows[0].Unit.ID)
}

// =============================================================================
// INCOME TREND
// =============================================================================

func TestMonthlyIncomeTrend_TrailingMonthsOldestFirst(t *testing.T) {
	f := newFixture(t)
	f.addUnit(t, "u1", "A1", 10, ledger.UnitActive)

	f.addPayment(t, "p-apr", "u1", ledger.CategoryPrincipal, 150000,
		ledger.NewPeriodKey(2025, 3), engineNow.AddDate(0, -2, 0))
	f.addPayment(t, "p-jun", "u1", ledger.CategoryPrincipal, 150000,
		ledger.NewPeriodKey(2025, 5), engineNow)
	f.addPayment(t, "p-jun2", "u1", ledger.CategoryAddon, 50000,
		ledger.NewPeriodKey(2025, 5), engineNow)

	points, err := f.engine.MonthlyIncomeTrend(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "2025-04", points[0].Period.Canonical())
	assert.Equal(t, "150000", points[0].Total.String())
	assert.Equal(t, "2025-05", points[1].Period.Canonical())
	assert.Equal(t, "0", points[1].Total.String(), "empty months report zero, not a gap")
	assert.Equal(t, "2025-06", points[2].Period.Canonical())
	assert.Equal(t, "200000", points[2].Total.String())
}

func TestMonthlyIncomeTrend_DefaultSixMonths(t *testing.T) {
	f := newFixture(t)

	points, err := f.engine.MonthlyIncomeTrend(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, points, 6)
	assert.Equal(t, "2025-01", points[0].Period.Canonical())
	assert.Equal(t, "2025-06", points[5].Period.Canonical())
}

// =============================================================================
// MONTHLY BALANCE
// =============================================================================

func TestMonthlyBalance_Identity(t *testing.T) {
	// net = income - expenses, exactly.

	f := newFixture(t)
	f.addUnit(t, "u1", "A1", 10, ledger.UnitActive)

	june := ledger.NewPeriodKey(2025, 5)
	f.addPayment(t, "p1", "u1", ledger.CategoryPrincipal, 150000, june, engineNow)
	f.addPayment(t, "p2", "u1", ledger.CategoryAddon, 100000, june, engineNow)
	f.addExpense(t, "x1", 90000, engineNow.AddDate(0, 0, -1))
	f.addExpense(t, "x2", 10000, engineNow)

	balance, err := f.engine.MonthlyBalance(context.Background(), june)
	require.NoError(t, err)

	assert.Equal(t, "250000", balance.TotalIncome.String())
	assert.Equal(t, "100000", balance.TotalExpenses.String())
	assert.Equal(t, "150000", balance.NetBalance.String())
	assert.Equal(t, 2, balance.PaymentCount)
	assert.Equal(t, 2, balance.ExpenseCount)
}

func TestMonthlyBalance_AsymmetricMembership(t *testing.T) {
	// GIVEN: A payment posted in July against June, and an expense created
	//        in July
	// THEN: June's balance includes the payment (declared period) but not
	//       the expense (creation month); July is the mirror image

	f := newFixture(t)
	f.addUnit(t, "u1", "A1", 10, ledger.UnitActive)

	june := ledger.NewPeriodKey(2025, 5)
	july := ledger.NewPeriodKey(2025, 6)
	julyTime := time.Date(2025, time.July, 3, 0, 0, 0, 0, time.UTC)

	f.addPayment(t, "p1", "u1", ledger.CategoryPrincipal, 150000, june, julyTime)
	f.addExpense(t, "x1", 50000, julyTime)

	juneBalance, err := f.engine.MonthlyBalance(context.Background(), june)
	require.NoError(t, err)
	assert.Equal(t, "150000", juneBalance.TotalIncome.String())
	assert.Equal(t, "0", juneBalance.TotalExpenses.String())

	julyBalance, err := f.engine.MonthlyBalance(context.Background(), july)
	require.NoError(t, err)
	assert.Equal(t, "0", julyBalance.TotalIncome.String())
	assert.Equal(t, "50000", julyBalance.TotalExpenses.String())
}

func TestMonthlyBalance_Idempotent(t *testing.T) {
	// Two reads with no intervening writes return identical results.

	f := newFixture(t)
	f.addUnit(t, "u1", "A1", 10, ledger.UnitActive)
	june := ledger.NewPeriodKey(2025, 5)
	f.addPayment(t, "p1", "u1", ledger.CategoryPrincipal, 150000, june, engineNow)
	f.addExpense(t, "x1", 40000, engineNow)

	first, err := f.engine.MonthlyBalance(context.Background(), june)
	require.NoError(t, err)
	second, err := f.engine.MonthlyBalance(context.Background(), june)
	require.NoError(t, err)

	assert.Equal(t, first.TotalIncome.String(), second.TotalIncome.String())
	assert.Equal(t, first.TotalExpenses.String(), second.TotalExpenses.String())
	assert.Equal(t, first.NetBalance.String(), second.NetBalance.String())
	assert.Equal(t, first.PaymentCount, second.PaymentCount)
	assert.Equal(t, first.ExpenseCount, second.ExpenseCount)
}

// =============================================================================
// DUE-SOON REMINDERS
// =============================================================================

func TestDueSoon_WindowAndOrdering(t *testing.T) {
	// Today is the 10th. Window [-2, +5] in day-of-month terms:
	// due day 8 (2 late), 12 (in 2 days), 15 (in 5 days) are in;
	// due day 5 and 20 are out.

	f := newFixture(t)
	f.addUnit(t, "u5", "A1", 5, ledger.UnitActive)
	f.addUnit(t, "u8", "A2", 8, ledger.UnitActive)
	f.addUnit(t, "u12", "A3", 12, ledger.UnitActive)
	f.addUnit(t, "u15", "A4", 15, ledger.UnitActive)
	f.addUnit(t, "u20", "A5", 20, ledger.UnitActive)

	rows, err := f.engine.DueSoon(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, ledger.UnitID("u8"), rows[0].Unit.ID)
	assert.Equal(t, -2, rows[0].DaysUntilDue)
	assert.Equal(t, ledger.UnitID("u12"), rows[1].Unit.ID)
	assert.Equal(t, 2, rows[1].DaysUntilDue)
	assert.Equal(t, ledger.UnitID("u15"), rows[2].Unit.ID)
	assert.Equal(t, 5, rows[2].DaysUntilDue)
}

func TestDueSoon_NoMonthRollover(t *testing.T) {
	// Day-of-month arithmetic only: on the 10th, a unit due on the 2nd of
	// next month is 22 days away in calendar terms but -8 in day-of-month
	// terms, so it does not appear. Downstream consumers rely on this.

	f := newFixture(t)
	f.addUnit(t, "u2", "A1", 2, ledger.UnitActive)

	rows, err := f.engine.DueSoon(context.Background(), 25)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// =============================================================================
// STATUS VIEWS
// =============================================================================

func TestStatusFor_UnknownUnit(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.StatusFor(context.Background(), "ghost", ledger.NewPeriodKey(2025, 5))
	assert.ErrorIs(t, err, ledger.ErrUnknownUnit)
}

func TestStatusMatrix_FullYear(t *testing.T) {
	f := newFixture(t)
	f.addUnit(t, "u1", "A1", 10, ledger.UnitActive)
	f.addUnit(t, "u2", "A2", 10, ledger.UnitFullySettled)

	f.addPayment(t, "p1", "u1", ledger.CategoryPrincipal, 150000,
		ledger.NewPeriodKey(2025, 0), time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC))
	f.addPayment(t, "p2", "u1", ledger.CategoryPrincipal, 150000,
		ledger.NewPeriodKey(2025, 5), engineNow)

	rows, err := f.engine.StatusMatrix(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Units come back in block-code order.
	u1 := rows[0]
	assert.Equal(t, ledger.UnitID("u1"), u1.Unit.ID)
	assert.Equal(t, reports.StatusPaid, u1.Months[0])
	assert.Equal(t, reports.StatusUnpaid, u1.Months[1])
	assert.Equal(t, reports.StatusPaid, u1.Months[5])

	u2 := rows[1]
	for month := 0; month < 12; month++ {
		assert.Equal(t, reports.StatusFullySettled, u2.Months[month])
	}
}
