package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/installment-ledger/ledger"
)

// =============================================================================
// PERIOD IDENTITY TESTS
// =============================================================================

func TestPeriodKey_Equal_IgnoresDay(t *testing.T) {
	// GIVEN: Two periods for the same month, one with a day annotation
	// WHEN: Comparing them
	// THEN: They are equal - the day is informational only

	a := ledger.NewPeriodKey(2025, 2) // March 2025 (0-based month)
	b := ledger.NewPeriodKeyWithDay(2025, 2, 15)

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
}

func TestPeriodKey_Equal_DifferentMonths(t *testing.T) {
	a := ledger.NewPeriodKey(2025, 2)
	b := ledger.NewPeriodKey(2025, 3)
	c := ledger.NewPeriodKey(2026, 2)

	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestPeriodKey_Canonical(t *testing.T) {
	// Canonical form is 1-based and zero-padded: stable for indexing.
	assert.Equal(t, "2025-01", ledger.NewPeriodKey(2025, 0).Canonical())
	assert.Equal(t, "2025-12", ledger.NewPeriodKey(2025, 11).Canonical())
	assert.Equal(t, "2026-03", ledger.NewPeriodKeyWithDay(2026, 2, 9).Canonical())
}

func TestPeriodKey_Validate(t *testing.T) {
	assert.NoError(t, ledger.NewPeriodKey(2025, 0).Validate())
	assert.NoError(t, ledger.NewPeriodKey(2030, 11).Validate())

	assert.ErrorIs(t, ledger.NewPeriodKey(2025, 12).Validate(), ledger.ErrInvalidPeriod)
	assert.ErrorIs(t, ledger.NewPeriodKey(2025, -1).Validate(), ledger.ErrInvalidPeriod)
	assert.ErrorIs(t, ledger.NewPeriodKey(2024, 5).Validate(), ledger.ErrInvalidPeriod)
}

// =============================================================================
// TIME RANGE TESTS
// =============================================================================

func TestPeriodKey_StartEnd_HalfOpen(t *testing.T) {
	// GIVEN: January 2025
	// THEN: [Jan 1 00:00, Feb 1 00:00) in UTC

	p := ledger.NewPeriodKey(2025, 0)

	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), p.Start())
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), p.End())
}

func TestPeriodKey_Contains(t *testing.T) {
	p := ledger.NewPeriodKey(2025, 0)

	assert.True(t, p.Contains(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)))
}

func TestPeriodKey_December_RangeCrossesYear(t *testing.T) {
	p := ledger.NewPeriodKey(2025, 11)

	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), p.Start())
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), p.End())
}

func TestPeriodKey_AddMonths(t *testing.T) {
	nov := ledger.NewPeriodKey(2025, 10)

	assert.Equal(t, ledger.NewPeriodKey(2026, 1), nov.AddMonths(3), "wraps forward across year end")
	assert.Equal(t, ledger.NewPeriodKey(2025, 4), nov.AddMonths(-6), "walks backward within the year")
	assert.True(t, nov.AddMonths(0).Equal(nov))
}

func TestPeriodOf(t *testing.T) {
	at := time.Date(2025, time.June, 17, 9, 30, 0, 0, time.UTC)
	p := ledger.PeriodOf(at)

	assert.Equal(t, 2025, p.Year)
	assert.Equal(t, 5, p.Month, "month is 0-based")
	assert.Nil(t, p.Day)
}
