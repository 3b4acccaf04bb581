/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error kinds in one place. Callers classify with errors.Is; the
  structured types carry the detail needed for user-facing messages.

ERROR CATEGORIES:
  1. Validation errors - bad input, no state change
  2. Authorization errors - wrong actor or wrong turn, no state change
  3. Race-outcome errors - a deterministic terminal state was still
     committed (BalanceExhausted, RequestAlreadyFinalized)
  4. Operator errors - CorruptBalance, surfaced and never repaired

SEE ALSO:
  - balance.go: InsufficientBalanceError, CorruptBalanceError
  - request.go: OverlapError
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a date range ends before it
	// starts, or contains no countable days.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInsufficientBalance is returned when a debit or reserve check
	// exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverlappingRequest is returned when a submission overlaps an
	// existing pending or approved request for the same staff member.
	ErrOverlappingRequest = errors.New("overlapping leave request")

	// ErrOutOfOrder is returned when an approver acts on a step that is
	// not the lowest pending step of the request.
	ErrOutOfOrder = errors.New("approval step acted out of order")

	// ErrNotAuthorized is returned when the acting staff member does
	// not hold the required role for this requester's org position.
	ErrNotAuthorized = errors.New("not authorized to act on this request")

	// ErrBalanceExhausted is returned when the final-approval debit
	// fails because a concurrent request consumed the entitlement. The
	// request is still committed as rejected.
	ErrBalanceExhausted = errors.New("balance exhausted at final approval")

	// ErrRequestAlreadyFinalized is returned when acting on or
	// cancelling a request that already reached a terminal state.
	ErrRequestAlreadyFinalized = errors.New("request already finalized")

	// ErrCorruptBalance signals consumed exceeding entitlement plus
	// unexpired carry-forward. It indicates an upstream debit bug and
	// must reach an operator; it is never silently clamped.
	ErrCorruptBalance = errors.New("corrupt balance record")

	// ErrAlreadyProcessed is returned by rollover when the period was
	// already closed for a staff member. Informational, not a failure.
	ErrAlreadyProcessed = errors.New("period already processed")

	// ErrDeclarationRequired is returned when a submission arrives
	// without the declaration accepted.
	ErrDeclarationRequired = errors.New("declaration must be accepted")

	// ErrConcurrentModification is returned by stores when an
	// optimistic version check fails.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrStaffNotFound is returned when the directory has no position
	// for a staff identifier.
	ErrStaffNotFound = errors.New("staff member not found")

	// ErrRequestNotFound is returned when a request identifier does
	// not resolve.
	ErrRequestNotFound = errors.New("leave request not found")

	// ErrAccountNotFound is returned when no balance account exists
	// for a (staff, leave type) pair.
	ErrAccountNotFound = errors.New("balance account not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	StaffID   StaffID
	Type      Type
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: available %s, requested %s",
		e.Type, e.StaffID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// CorruptBalanceError provides details about a consumed > entitlement
// violation found on read.
type CorruptBalanceError struct {
	StaffID  StaffID
	Type     Type
	Consumed decimal.Decimal
	Ceiling  decimal.Decimal
}

func (e *CorruptBalanceError) Error() string {
	return fmt.Sprintf("corrupt %s balance for %s: consumed %s exceeds ceiling %s",
		e.Type, e.StaffID, e.Consumed, e.Ceiling)
}

func (e *CorruptBalanceError) Unwrap() error { return ErrCorruptBalance }

// OverlapError identifies the existing request that blocks a submission.
type OverlapError struct {
	ExistingID RequestID
	Start, End Date
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("request overlaps %s (%s to %s)", e.ExistingID, e.Start, e.End)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingRequest }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller
// input and safe to return as a 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrOverlappingRequest) ||
		errors.Is(err, ErrDeclarationRequired) ||
		errors.Is(err, ErrRequestAlreadyFinalized)
}

// IsAuthError reports whether the error is an authorization failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthorized) || errors.Is(err, ErrOutOfOrder)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStaffNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}
