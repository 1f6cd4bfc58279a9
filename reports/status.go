/*
status.go - Per-unit, per-period payment status classification

PURPOSE:
  Derives the status shown in the payment matrix and the site map: one
  status per (unit, period). A manual administrative override on the unit
  record always wins over the period lookup, because fully-settled and
  pending-settlement describe a terminal state of the whole unit, not a
  fact about one month.

PRECEDENCE (first match wins):
  1. unit flagged fully settled        -> FullySettled
  2. unit flagged pending settlement   -> PendingSettlement
  3. principal payment exists in period -> Paid
  4. otherwise                          -> Unpaid
*/
package reports

import "github.com/warp/installment-ledger/ledger"

// Status is the classified payment state of one unit for one period.
type Status string

const (
	StatusFullySettled      Status = "fully_settled"
	StatusPendingSettlement Status = "pending_settlement"
	StatusPaid              Status = "paid"
	StatusUnpaid            Status = "unpaid"
)

// Classify derives the status of a unit for a period from the unit record
// and the unit's payments. Pure function; payments may include any
// category and any period, only principal payments matching the period
// count. Payments with a missing period fall back to their creation month.
func Classify(unit ledger.Unit, period ledger.PeriodKey, payments []ledger.Payment) Status {
	switch unit.Status {
	case ledger.UnitFullySettled:
		return StatusFullySettled
	case ledger.UnitPendingSettlement:
		return StatusPendingSettlement
	}

	for _, p := range payments {
		if p.UnitID != unit.ID || p.Category != ledger.CategoryPrincipal {
			continue
		}
		if p.EffectivePeriod().Equal(period) {
			return StatusPaid
		}
	}
	return StatusUnpaid
}

// MatrixRow is one unit's statuses across the twelve months of a year.
type MatrixRow struct {
	Unit   ledger.Unit
	Months [12]Status
}
