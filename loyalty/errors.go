/*
errors.go - Centralized error types for the loyalty engine

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  Handlers map these to HTTP statuses; the engine and stores return them.

ERROR CATEGORIES:
  1. Validation errors - invalid input (non-positive amounts, missing ids)
  2. Not-found errors  - membership or reward absent
  3. Conflict errors   - unique-key violations (duplicate membership)
  4. Store errors      - connection/timeout failures, safe to retry

USAGE:
  if errors.Is(err, loyalty.ErrInsufficientPoints) {
      // reject with 400, balance unchanged
  }
*/
package loyalty

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a credit or debit amount is not
	// strictly positive.
	ErrInvalidAmount = errors.New("points amount must be positive")

	// ErrMembershipNotFound is returned when a user has no membership.
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrRewardNotFound is returned when a reward is absent or inactive.
	ErrRewardNotFound = errors.New("reward not found or inactive")

	// ErrInsufficientPoints is returned when a debit exceeds the current balance.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrDuplicateMembership is returned when the unique-key constraint on
	// user_id rejects a membership insert. Callers treat this as "already
	// exists, re-read it", not as a hard failure.
	ErrDuplicateMembership = errors.New("membership already exists")

	// ErrStoreUnavailable is returned on connection or timeout failures.
	// Safe for the caller to retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError reports how far short a balance fell.
type InsufficientPointsError struct {
	UserID    UserID
	Available int64
	Required  int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points for user %d: have %d, need %d",
		e.UserID, e.Available, e.Required)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMembershipNotFound) ||
		errors.Is(err, ErrRewardNotFound)
}

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientPoints)
}

// IsRetryable reports whether the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
