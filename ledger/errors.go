/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxonomy maps to how callers must react:

  1. Validation errors - rejected before any mutation, user-facing
  2. Conflict errors   - concurrent write collisions, retryable
  3. Not-found errors  - missing referenced entity
  4. Persistence errors - store failures, rolled back, surfaced generically

USAGE:
  The HTTP layer classifies with the helpers:

    if ledger.IsValidation(err) { ... 400 ... }
    if ledger.IsConflict(err)   { ... 409/503 ... }
    if ledger.IsNotFound(err)   { ... 404 ... }

SEE ALSO:
  - recorder.go: Produces overdraft and conflict errors
  - lifecycle.go: Produces plot availability errors
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for non-positive amounts or a deposit
	// outside [0, price].
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidMethod is returned for an unknown payment method.
	ErrInvalidMethod = errors.New("invalid payment method")

	// ErrPlotNotAvailable is returned when creating a sale against a plot
	// that is already booked or sold.
	ErrPlotNotAvailable = errors.New("plot not available")

	// ErrSaleNotActive is returned when recording a payment against a
	// completed or cancelled sale.
	ErrSaleNotActive = errors.New("sale not active")

	// ErrPaymentExceedsBalance is returned when a payment would overdraw
	// the sale's outstanding balance. Hard validation, never partial-apply.
	ErrPaymentExceedsBalance = errors.New("payment exceeds outstanding balance")

	// ErrConcurrentModification is returned when the optimistic version
	// check detects a concurrent writer on the same sale.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrRetriesExhausted is returned after bounded conflict retries fail.
	// Callers should surface this as "please retry".
	ErrRetriesExhausted = errors.New("conflict retries exhausted, please retry")

	// Not-found sentinels for referenced entities.
	ErrProjectNotFound = errors.New("project not found")
	ErrPlotNotFound    = errors.New("plot not found")
	ErrClientNotFound  = errors.New("client not found")
	ErrAgentNotFound   = errors.New("agent not found")
	ErrLeadNotFound    = errors.New("lead not found")
	ErrSaleNotFound    = errors.New("sale not found")
	ErrPaymentNotFound = errors.New("payment not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverdraftError details a rejected payment that exceeded the balance.
type OverdraftError struct {
	SaleID    SaleID
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverdraftError) Error() string {
	return fmt.Sprintf("payment of %s exceeds outstanding balance %s on sale %s",
		e.Requested, e.Balance, e.SaleID)
}

func (e *OverdraftError) Unwrap() error { return ErrPaymentExceedsBalance }

// PlotUnavailableError details a plot that cannot be sold.
type PlotUnavailableError struct {
	PlotID PlotID
	Status PlotStatus
}

func (e *PlotUnavailableError) Error() string {
	return fmt.Sprintf("plot %s is %s, not available", e.PlotID, e.Status)
}

func (e *PlotUnavailableError) Unwrap() error { return ErrPlotNotAvailable }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid caller input.
// Validation errors are rejected before any mutation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidMethod) ||
		errors.Is(err, ErrPlotNotAvailable) ||
		errors.Is(err, ErrSaleNotActive) ||
		errors.Is(err, ErrPaymentExceedsBalance)
}

// IsConflict returns true for concurrent write collisions.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrRetriesExhausted)
}

// IsRetryable returns true if the operation might succeed on retry.
// Covers version conflicts and transactions aborted by their deadline:
// neither mutated anything, both are safe to re-issue.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrPlotNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrLeadNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
