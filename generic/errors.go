/*
errors.go - Centralized error types for the fee engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The resolvers never return errors; everything here belongs to the write
  path (creating fees, appending adjustments, disabling) and the stores.

ERROR CATEGORIES:
  1. Reference errors - A fee, year or linked fee does not exist
  2. Validation errors - Invariant violations on input (amount, scope, actor)
  3. Store errors - Duplicate idempotency keys, persistence failures

USAGE:
  if errors.Is(err, generic.ErrYearNotFound) {
      // 404 or 400 depending on the caller
  }

SEE ALSO:
  - fees/ledger.go: Uses these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when an adjustment with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	ErrDuplicateFee = errors.New("fee item already exists")

	ErrFeeNotFound  = errors.New("fee item not found")
	ErrYearNotFound = errors.New("academic year not found")
	ErrTermNotFound = errors.New("term not found")

	// ErrYearLocked is returned when an adjustment would start in a locked year.
	ErrYearLocked = errors.New("academic year is locked")

	ErrInvalidScope      = errors.New("invalid temporal scope")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidAdjustment = errors.New("invalid adjustment")

	// ErrActorRequired is returned when a mutation has no actor attribution.
	ErrActorRequired = errors.New("actor is required")

	ErrNotDiscount       = errors.New("fee item is not a discount")
	ErrInvalidLink       = errors.New("invalid discount link")
	ErrAlreadyActive     = errors.New("fee item is already active")
	ErrDuplicateYear     = errors.New("duplicate academic year sequence")
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ScopeError describes a malformed temporal scope.
type ScopeError struct {
	Scope  TemporalScope
	Reason string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("invalid scope %s: %s", e.Scope.Type, e.Reason)
}

func (e *ScopeError) Unwrap() error {
	return ErrInvalidScope
}

// ReferenceError names the missing object behind a not-found sentinel.
type ReferenceError struct {
	Kind string // "fee", "year", "term", "linked fee"
	ID   string
	Err  error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.ID, e.Err)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScope) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidAdjustment) ||
		errors.Is(err, ErrActorRequired) ||
		errors.Is(err, ErrYearLocked) ||
		errors.Is(err, ErrNotDiscount) ||
		errors.Is(err, ErrInvalidLink) ||
		errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrDuplicateYear)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFeeNotFound) ||
		errors.Is(err, ErrYearNotFound) ||
		errors.Is(err, ErrTermNotFound)
}

// IsConflict returns true if the write was already applied.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicateFee)
}
