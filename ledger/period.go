/*
period.go - Billing period representation and equality

PURPOSE:
  A billing period is a calendar month. Payments are posted against a
  period, duplicate detection groups by period, and every report buckets
  by period. A specific day may be recorded for display (receipt dates),
  but it is NOT part of period identity.

IDENTITY RULE:
  Two PeriodKeys are equal iff Year and Month match. Day is informational.
  The canonical string "YYYY-MM" is the grouping key used everywhere:
  duplicate checks, installment lookups, monthly aggregation.

MONTH CONVENTION:
  Month is zero-based (0 = January, 11 = December), matching the wire
  format the portal frontend submits. The canonical string is one-based
  ("2026-01" for {2026, 0}) so it reads naturally.

SEE ALSO:
  - ledger.go: Uses PeriodKey for the uniqueness invariant
  - reports/engine.go: Groups payments and expenses by canonical period
*/
package ledger

import (
	"fmt"
	"time"
)

// MinYear is the earliest billing year the ledger accepts.
// The development started billing in 2025; anything earlier is a typo.
const MinYear = 2025

// PeriodKey identifies a billing period: a calendar month, optionally
// carrying the specific day shown on receipts.
//
// Month is zero-based: 0 = January, 11 = December.
type PeriodKey struct {
	Year  int  `json:"year"`
	Month int  `json:"month"`
	Day   *int `json:"day,omitempty"`
}

// NewPeriodKey creates a month-granular period key.
func NewPeriodKey(year, month int) PeriodKey {
	return PeriodKey{Year: year, Month: month}
}

// NewPeriodKeyWithDay creates a period key carrying a display day.
// The day does not participate in equality.
func NewPeriodKeyWithDay(year, month, day int) PeriodKey {
	return PeriodKey{Year: year, Month: month, Day: &day}
}

// PeriodOf derives the period containing t. Used as the fallback for
// legacy payments imported without an explicit period.
func PeriodOf(t time.Time) PeriodKey {
	d := t.Day()
	return PeriodKey{Year: t.Year(), Month: int(t.Month()) - 1, Day: &d}
}

// Equal reports whether two period keys identify the same billing month.
// Day is intentionally ignored.
func (p PeriodKey) Equal(other PeriodKey) bool {
	return p.Year == other.Year && p.Month == other.Month
}

// Canonical returns the stable "YYYY-MM" grouping key (one-based month).
func (p PeriodKey) Canonical() string {
	return fmt.Sprintf("%d-%02d", p.Year, p.Month+1)
}

// String implements fmt.Stringer.
func (p PeriodKey) String() string { return p.Canonical() }

// Validate checks the month range and the minimum year.
func (p PeriodKey) Validate() error {
	if p.Month < 0 || p.Month > 11 {
		return fmt.Errorf("%w: month %d out of range [0,11]", ErrInvalidPeriod, p.Month)
	}
	if p.Year < MinYear {
		return fmt.Errorf("%w: year %d before minimum %d", ErrInvalidPeriod, p.Year, MinYear)
	}
	return nil
}

// IsZero reports whether the key is the zero value (no period recorded).
func (p PeriodKey) IsZero() bool {
	return p.Year == 0 && p.Month == 0 && p.Day == nil
}

// MonthTime returns the time.Month (one-based) for this period.
func (p PeriodKey) MonthTime() time.Month { return time.Month(p.Month + 1) }

// Start returns midnight UTC on the first day of the period's month.
func (p PeriodKey) Start() time.Time {
	return time.Date(p.Year, p.MonthTime(), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month. Membership tests
// use the half-open interval [Start, End).
func (p PeriodKey) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the period's calendar month.
// Used for expense membership, which is derived from creation time.
func (p PeriodKey) Contains(t time.Time) bool {
	u := t.UTC()
	return !u.Before(p.Start()) && u.Before(p.End())
}

// AddMonths returns the period n months later (n may be negative).
func (p PeriodKey) AddMonths(n int) PeriodKey {
	t := p.Start().AddDate(0, n, 0)
	return PeriodKey{Year: t.Year(), Month: int(t.Month()) - 1}
}
