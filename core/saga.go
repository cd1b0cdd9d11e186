/*
saga.go - Compensation log for multi-step writes

PURPOSE:
  The record store commits one row (or one batch of rows in one
  collection) at a time. A logical operation such as "create a sale"
  spans several commits. The Saga records each committed step together
  with the action that undoes it, so a failure half way can be reported
  precisely and, if the caller wants, reversed.

CONTRACT:
  - Record() is called only AFTER a step committed.
  - Fail() never rolls anything back. It returns a PartialCompletionError
    that carries the log; compensation is the caller's decision.
  - Compensate() runs undo actions newest first. Steps whose undo
    succeeded are dropped, so calling it again only retries what failed.

EXAMPLE:
  saga := core.NewSaga("create_sale")
  sale, err := store.InsertSale(ctx, header)
  if err != nil {
      return err // nothing committed yet
  }
  saga.Record(StepHeader, func(ctx context.Context) error {
      return store.DeleteSale(ctx, sale.ID)
  })
  if _, err := store.InsertSaleItems(ctx, items); err != nil {
      return saga.Fail(StepItems, string(sale.ID), err)
  }

SEE ALSO:
  - errors.go: PartialCompletionError
  - sales/orchestrator.go, banking/postings.go: users
*/
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Step names one committed unit of a multi-step operation.
type Step string

// Undo reverses the effect of a committed step.
type Undo func(ctx context.Context) error

type sagaStep struct {
	step Step
	undo Undo
}

// Saga is an append-only log of committed steps and their inverses.
type Saga struct {
	operation string

	mu    sync.Mutex
	steps []sagaStep
}

func NewSaga(operation string) *Saga {
	return &Saga{operation: operation}
}

// Operation returns the logical operation name.
func (s *Saga) Operation() string { return s.operation }

// Record appends a committed step. undo may be nil when the step has no
// independent inverse (e.g. rows removed by a cascade of an earlier undo).
func (s *Saga) Record(step Step, undo Undo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, sagaStep{step: step, undo: undo})
}

// Completed lists recorded steps in commit order.
func (s *Saga) Completed() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Step, len(s.steps))
	for i, st := range s.steps {
		out[i] = st.step
	}
	return out
}

// Fail builds the error reported when step failed after the recorded ones.
func (s *Saga) Fail(step Step, entityID string, cause error) *PartialCompletionError {
	return &PartialCompletionError{
		Operation:  s.operation,
		FailedStep: step,
		Completed:  s.Completed(),
		EntityID:   entityID,
		Err:        cause,
		saga:       s,
	}
}

// Compensate runs every pending undo, newest first. It keeps going after
// an undo fails and returns all failures joined.
func (s *Saga) Compensate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	var remaining []sagaStep
	for i := len(s.steps) - 1; i >= 0; i-- {
		st := s.steps[i]
		if st.undo == nil {
			continue
		}
		if err := st.undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", st.step, err))
			remaining = append([]sagaStep{st}, remaining...)
		}
	}
	s.steps = remaining
	return errors.Join(errs...)
}
