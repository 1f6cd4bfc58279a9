package reports_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/installment-ledger/ledger"
	"github.com/warp/installment-ledger/reports"
)

func activeUnit(id string) ledger.Unit {
	return ledger.Unit{
		ID:           ledger.UnitID(id),
		BlockCode:    "A1",
		ResidentName: "Resident",
		MonthlyFee:   ledger.NewMoney(150000),
		Status:       ledger.UnitActive,
	}
}

func principalPayment(unitID string, period ledger.PeriodKey) ledger.Payment {
	return ledger.Payment{
		ID:        "p-1",
		UnitID:    ledger.UnitID(unitID),
		Category:  ledger.CategoryPrincipal,
		Amount:    ledger.NewMoney(150000),
		Period:    period,
		Status:    ledger.PaymentSettled,
		CreatedAt: period.Start(),
	}
}

// =============================================================================
// PRECEDENCE TESTS
// =============================================================================

func TestClassify_FullySettled_WinsOverEverything(t *testing.T) {
	// A fully settled unit shows fully_settled even for months with no
	// payment at all: the override describes the unit, not the month.

	unit := activeUnit("u1")
	unit.Status = ledger.UnitFullySettled

	status := reports.Classify(unit, ledger.NewPeriodKey(2025, 3), nil)
	assert.Equal(t, reports.StatusFullySettled, status)
}

func TestClassify_PendingSettlement_WinsOverPaid(t *testing.T) {
	unit := activeUnit("u1")
	unit.Status = ledger.UnitPendingSettlement
	period := ledger.NewPeriodKey(2025, 3)

	status := reports.Classify(unit, period, []ledger.Payment{principalPayment("u1", period)})
	assert.Equal(t, reports.StatusPendingSettlement, status)
}

func TestClassify_PrincipalInPeriod_Paid(t *testing.T) {
	unit := activeUnit("u1")
	period := ledger.NewPeriodKey(2025, 3)

	status := reports.Classify(unit, period, []ledger.Payment{principalPayment("u1", period)})
	assert.Equal(t, reports.StatusPaid, status)
}

func TestClassify_NoPayment_Unpaid(t *testing.T) {
	unit := activeUnit("u1")

	status := reports.Classify(unit, ledger.NewPeriodKey(2025, 3), nil)
	assert.Equal(t, reports.StatusUnpaid, status)
}

// =============================================================================
// MATCHING RULES
// =============================================================================

func TestClassify_AddonPayment_DoesNotCount(t *testing.T) {
	// Only the principal stream settles a month.

	unit := activeUnit("u1")
	period := ledger.NewPeriodKey(2025, 3)
	addon := principalPayment("u1", period)
	addon.Category = ledger.CategoryAddon

	status := reports.Classify(unit, period, []ledger.Payment{addon})
	assert.Equal(t, reports.StatusUnpaid, status)
}

func TestClassify_OtherUnitsPayment_DoesNotCount(t *testing.T) {
	unit := activeUnit("u1")
	period := ledger.NewPeriodKey(2025, 3)

	status := reports.Classify(unit, period, []ledger.Payment{principalPayment("u2", period)})
	assert.Equal(t, reports.StatusUnpaid, status)
}

func TestClassify_MissingPeriod_FallsBackToCreationMonth(t *testing.T) {
	// Imported payments may lack a declared period. They still settle the
	// month they were recorded in.

	unit := activeUnit("u1")
	p := ledger.Payment{
		ID:        "p-legacy",
		UnitID:    "u1",
		Category:  ledger.CategoryPrincipal,
		Amount:    ledger.NewMoney(150000),
		Status:    ledger.PaymentSettled,
		CreatedAt: time.Date(2025, time.April, 12, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, reports.StatusPaid, reports.Classify(unit, ledger.NewPeriodKey(2025, 3), []ledger.Payment{p}))
	assert.Equal(t, reports.StatusUnpaid, reports.Classify(unit, ledger.NewPeriodKey(2025, 4), []ledger.Payment{p}))
}

func TestClassify_DayIgnoredInPeriodMatch(t *testing.T) {
	unit := activeUnit("u1")
	posted := principalPayment("u1", ledger.NewPeriodKeyWithDay(2025, 3, 25))

	status := reports.Classify(unit, ledger.NewPeriodKey(2025, 3), []ledger.Payment{posted})
	assert.Equal(t, reports.StatusPaid, status)
}
