/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejection carries enough context (unit, category, period) for the
  caller to render a user-facing message. Nothing here is fatal to the
  process; the ledger never silently corrects or drops invalid input.

ERROR CATEGORIES:
  1. Posting errors - duplicate period, invalid amount, unknown unit
  2. Lookup errors  - delete of a nonexistent record
  3. Period errors  - malformed period keys

USAGE:
  if errors.Is(err, ledger.ErrDuplicatePeriodPosting) {
      var dup *ledger.DuplicatePostingError
      errors.As(err, &dup) // dup.Existing is the conflicting payment
  }

SEE ALSO:
  - ledger.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicatePeriodPosting is returned when a payment already exists
	// for the same (unit, category, period). This enforces the central
	// uniqueness invariant; the caller must not overwrite.
	ErrDuplicatePeriodPosting = errors.New("duplicate posting for period")

	// ErrInvalidAmount is returned when a posting amount is not a positive
	// whole number of the smallest currency unit.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnknownUnit is returned when a referenced unit does not resolve
	// in the unit registry.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrNotFound is returned when deleting a record that does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidPeriod is returned when a period key is malformed
	// (month out of range, year before the configured minimum).
	ErrInvalidPeriod = errors.New("invalid period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicatePostingError reports the conflicting payment so the UI can show
// which posting already covers the period.
type DuplicatePostingError struct {
	UnitID   UnitID
	Category Category
	Period   PeriodKey
	Existing Payment
}

func (e *DuplicatePostingError) Error() string {
	return fmt.Sprintf("duplicate posting: unit %s already has a %s payment for %s (payment %s)",
		e.UnitID, e.Category, e.Period.Canonical(), e.Existing.ID)
}

func (e *DuplicatePostingError) Unwrap() error { return ErrDuplicatePeriodPosting }

// InvalidAmountError reports the rejected amount.
type InvalidAmountError struct {
	UnitID UnitID
	Amount Money
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s for unit %s: must be a positive whole amount", e.Amount, e.UnitID)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// UnknownUnitError reports the unresolvable unit reference.
type UnknownUnitError struct {
	UnitID UnitID
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unknown unit %s", e.UnitID)
}

func (e *UnknownUnitError) Unwrap() error { return ErrUnknownUnit }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicatePeriodPosting) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownUnit) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
