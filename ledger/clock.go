package ledger

import "time"

// Clock supplies the current time to the ledger and the report engine.
// Injected rather than read from the ambient environment so "this month"
// statistics and due-date windows are testable with a fixed today.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. For tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
