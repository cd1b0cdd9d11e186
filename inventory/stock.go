/*
stock.go - Stock ledger for product on-hand quantities

PURPOSE:
  Maintains each product's on-hand quantity. Every mutation is a read of
  the product followed by one conditional write of the new quantity.

OPERATIONS:
  Decrement(id, qty): stock = max(0, stock - qty). Never rejects for lack
                      of stock: a sale is not blocked by a stock race, but
                      stock cannot go negative (floor semantics).
  Increment(id, qty): stock = stock + qty.
  Adjust(id, delta):  manual correction. Rejected with ErrNegativeStock
                      if the result would be negative.

SERVICES:
  Services carry no stock. Decrement/Increment on a service return a
  StockChange with Skipped=true and write nothing. Adjust on a service is
  a validation error.

CONCURRENCY:
  The write is a compare-and-swap on Product.Version. When another writer
  got there first, the ledger re-reads and recomputes, up to MaxAttempts
  times, then reports a ConflictError. Store errors are never retried.

POLICIES:
  PolicyStrict:     the caller propagates stock errors (sales).
  PolicyBestEffort: the caller logs stock errors and carries on (purchases).

SEE ALSO:
  - sales/orchestrator.go: strict decrement per product line
  - purchasing/receipt.go: best-effort increment per purchase
*/
package inventory

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/tenant"
)

// DefaultMaxAttempts bounds compare-and-swap retries.
const DefaultMaxAttempts = 3

// =============================================================================
// POLICIES
// =============================================================================

// Policy names how a caller treats a failed stock mutation.
type Policy string

const (
	// PolicyStrict propagates the error to the caller.
	PolicyStrict Policy = "strict"
	// PolicyBestEffort swallows the error; the triggering record is kept.
	PolicyBestEffort Policy = "best_effort"
)

// Handle returns the error the caller should surface under this policy.
func (p Policy) Handle(err error) error {
	if p == PolicyBestEffort {
		return nil
	}
	return err
}

// =============================================================================
// STOCK CHANGE
// =============================================================================

// StockChange describes one applied mutation.
type StockChange struct {
	ProductID core.ProductID
	Before    int64
	After     int64
	Skipped   bool // service: nothing written
}

// Delta is the signed quantity actually applied.
func (c StockChange) Delta() int64 { return c.After - c.Before }

// Removed is the quantity a floored decrement actually took away.
func (c StockChange) Removed() int64 {
	if d := c.Delta(); d < 0 {
		return -d
	}
	return 0
}

// =============================================================================
// STOCK LEDGER
// =============================================================================

type StockLedger struct {
	store       core.ProductStore
	maxAttempts int
	log         zerolog.Logger
}

type Option func(*StockLedger)

// WithMaxAttempts sets how many compare-and-swap attempts a call makes.
func WithMaxAttempts(n int) Option {
	return func(l *StockLedger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *StockLedger) { l.log = log }
}

func NewStockLedger(store core.ProductStore, opts ...Option) *StockLedger {
	l := &StockLedger{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Decrement removes qty from stock, flooring at zero.
func (l *StockLedger) Decrement(ctx context.Context, id core.ProductID, qty int64) (StockChange, error) {
	if qty <= 0 {
		return StockChange{ProductID: id}, core.Invalid("quantity", "must be positive, got %d", qty)
	}
	return l.mutate(ctx, id, "decrement", true, func(onHand int64) (int64, error) {
		return max(0, onHand-qty), nil
	})
}

// Increment adds qty to stock.
func (l *StockLedger) Increment(ctx context.Context, id core.ProductID, qty int64) (StockChange, error) {
	if qty <= 0 {
		return StockChange{ProductID: id}, core.Invalid("quantity", "must be positive, got %d", qty)
	}
	return l.mutate(ctx, id, "increment", true, func(onHand int64) (int64, error) {
		if qty > math.MaxInt64-onHand {
			return 0, core.Invalid("quantity", "%d on top of %d overflows stock", qty, onHand)
		}
		return onHand + qty, nil
	})
}

// Adjust applies a manual correction and refuses to go below zero.
func (l *StockLedger) Adjust(ctx context.Context, id core.ProductID, delta int64) (StockChange, error) {
	if delta == 0 {
		return StockChange{ProductID: id}, core.Invalid("delta", "must not be zero")
	}
	return l.mutate(ctx, id, "adjust", false, func(onHand int64) (int64, error) {
		if delta > 0 && onHand > math.MaxInt64-delta {
			return 0, core.Invalid("delta", "%d on top of %d overflows stock", delta, onHand)
		}
		next := onHand + delta
		if next < 0 {
			return 0, &core.ValidationError{
				Field:  "delta",
				Reason: "stock cannot be negative",
				Err:    core.ErrNegativeStock,
			}
		}
		return next, nil
	})
}

// mutate is the read-then-CAS loop shared by every operation.
func (l *StockLedger) mutate(ctx context.Context, id core.ProductID, op string, servicesExempt bool, next func(onHand int64) (int64, error)) (StockChange, error) {
	log := l.log.With().Str("op", op).Str("product_id", string(id)).Logger()

	for attempt := 1; ; attempt++ {
		p, err := l.store.GetProduct(ctx, id)
		if err != nil {
			return StockChange{ProductID: id}, err
		}
		// a bound caller never touches another shop's stock
		if shopID, err := tenant.ShopFrom(ctx); err == nil && p.ShopID != shopID {
			return StockChange{ProductID: id}, core.NotFound("product", id)
		}
		if !p.TracksStock() {
			if servicesExempt {
				log.Debug().Msg("service product, stock untouched")
				return StockChange{ProductID: id, Skipped: true}, nil
			}
			return StockChange{ProductID: id}, core.Invalid("product", "%s is a service and has no stock", p.Name)
		}

		after, err := next(p.Stock)
		if err != nil {
			return StockChange{ProductID: id}, err
		}

		updated, err := l.store.UpdateProductStock(ctx, id, after, p.Version)
		if errors.Is(err, core.ErrConcurrentModification) {
			if attempt < l.maxAttempts {
				log.Debug().Int("attempt", attempt).Msg("stock version moved, re-reading")
				continue
			}
			log.Warn().Int("attempts", attempt).Msg("stock update lost every compare-and-swap")
			return StockChange{ProductID: id}, &core.ConflictError{Kind: "product", ID: string(id), Err: core.ErrConcurrentModification}
		}
		if err != nil {
			return StockChange{ProductID: id}, err
		}

		change := StockChange{ProductID: id, Before: p.Stock, After: updated.Stock}
		log.Debug().Int64("before", change.Before).Int64("after", change.After).Msg("stock updated")
		return change, nil
	}
}
