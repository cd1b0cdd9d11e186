/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Ledger packages return these; the API layer maps them to HTTP statuses.

ERROR CATEGORIES:
  1. Validation errors - malformed or out-of-range input, nothing written
  2. Not-found errors  - referenced product/account/posting is missing
  3. Partial-completion errors - a multi-step write stopped half way
  4. Conflict errors   - uniqueness violation or lost compare-and-swap

PROPAGATION:
  Ledger-level errors (inventory, banking) propagate unchanged to the
  orchestrators. Orchestrator errors are what the caller sees. Nothing in
  the core retries store failures; only version conflicts are re-read.

USAGE:
  if core.IsNotFound(err) { ... }

  var partial *core.PartialCompletionError
  if errors.As(err, &partial) {
      log.Printf("failed at %s after %v", partial.FailedStep, partial.Completed)
  }

SEE ALSO:
  - saga.go: builds PartialCompletionError from its step log
  - api/handlers.go: HTTP status mapping
*/
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input is rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrPartialCompletion is returned when a multi-step operation failed
	// after some of its steps were committed.
	ErrPartialCompletion = errors.New("partially completed")

	// ErrConflict is returned for store-level uniqueness violations and for
	// version conflicts that survived every retry.
	ErrConflict = errors.New("conflict")

	// ErrConcurrentModification is returned by a store when a
	// compare-and-swap write finds a different version than expected.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrNegativeStock is returned when a manual adjustment would take a
	// product below zero.
	ErrNegativeStock = errors.New("stock cannot be negative")

	// ErrNoShop is returned when no shop identity is bound to the call.
	ErrNoShop = errors.New("no shop bound to caller")

	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // optional more specific sentinel, e.g. ErrNegativeStock
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "product", "account", "posting", ...
	ID   string
}

func NotFound(kind string, id any) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a uniqueness violation or an exhausted
// compare-and-swap.
type ConflictError struct {
	Kind  string
	Field string
	ID    string
	Err   error // ErrConcurrentModification for version conflicts
}

func (e *ConflictError) Error() string {
	switch {
	case e.Err != nil && errors.Is(e.Err, ErrConcurrentModification):
		return fmt.Sprintf("%s %q was modified concurrently, try again", e.Kind, e.ID)
	case e.Field != "":
		return fmt.Sprintf("%s with this %s already exists", e.Kind, e.Field)
	default:
		return fmt.Sprintf("%s already exists", e.Kind)
	}
}

func (e *ConflictError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConflict, e.Err}
	}
	return []error{ErrConflict}
}

// PartialCompletionError is returned when a multi-step operation stopped
// after committing some of its steps. No automatic rollback happens; the
// caller decides whether to complete the work by hand or to Compensate.
type PartialCompletionError struct {
	Operation  string
	FailedStep Step
	Completed  []Step
	EntityID   string // the header that was created, e.g. the sale ID
	Err        error

	saga *Saga
}

func (e *PartialCompletionError) Error() string {
	done := make([]string, len(e.Completed))
	for i, s := range e.Completed {
		done[i] = string(s)
	}
	return fmt.Sprintf("%s partially completed (id %s): step %s failed after [%s]: %v",
		e.Operation, e.EntityID, e.FailedStep, strings.Join(done, ", "), e.Err)
}

func (e *PartialCompletionError) Unwrap() []error {
	return []error{ErrPartialCompletion, e.Err}
}

// Done reports whether step committed before the failure.
func (e *PartialCompletionError) Done(step Step) bool {
	for _, s := range e.Completed {
		if s == step {
			return true
		}
	}
	return false
}

// Compensate runs the recorded inverse actions, newest first.
func (e *PartialCompletionError) Compensate(ctx context.Context) error {
	if e.saga == nil {
		return nil
	}
	return e.saga.Compensate(ctx)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNoShop)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for uniqueness and version conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrConcurrentModification)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsPartial returns true if the error left committed steps behind.
func IsPartial(err error) bool {
	return errors.Is(err, ErrPartialCompletion)
}
