/*
Package banking keeps money account balances consistent with their postings.

PURPOSE:
  An account's Balance is a cached derived value:

      Balance = OpeningBalance + Σ credits - Σ debits

  BalanceLedger mutates that cache one posting at a time. PostingService
  (postings.go) creates and deletes postings and keeps the cache in step,
  compensating when the second write of a pair fails.

KEY CONCEPTS:
  - Post(credit) adds, Post(debit) subtracts
  - Reverse(direction) is Post(direction.Opposite())
  - Balances may go negative (overdraft is the shop's business)
  - Each write is a compare-and-swap on Account.Version, retried on
    conflict up to MaxAttempts

SEE ALSO:
  - inventory/stock.go: the same read-then-CAS loop for stock
  - api/scheduler.go: BalanceAuditor recomputes balances from postings
*/
package banking

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/tenant"
)

// DefaultMaxAttempts bounds compare-and-swap retries.
const DefaultMaxAttempts = 3

// BalanceChange describes one applied balance mutation.
type BalanceChange struct {
	AccountID core.AccountID
	Before    decimal.Decimal
	After     decimal.Decimal
}

// BalanceLedger applies postings to cached account balances.
type BalanceLedger struct {
	store       core.AccountStore
	maxAttempts int
	log         zerolog.Logger
}

type Option func(*BalanceLedger)

// WithMaxAttempts sets how many compare-and-swap attempts a call makes.
func WithMaxAttempts(n int) Option {
	return func(l *BalanceLedger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *BalanceLedger) { l.log = log }
}

func NewBalanceLedger(store core.AccountStore, opts ...Option) *BalanceLedger {
	l := &BalanceLedger{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post applies amount to the account in the given direction.
func (l *BalanceLedger) Post(ctx context.Context, id core.AccountID, dir core.Direction, amount decimal.Decimal) (BalanceChange, error) {
	if err := validateAmount(dir, amount); err != nil {
		return BalanceChange{AccountID: id}, err
	}
	return l.apply(ctx, id, dir.Signed(amount))
}

// Reverse undoes a Post of the same direction and amount.
func (l *BalanceLedger) Reverse(ctx context.Context, id core.AccountID, dir core.Direction, amount decimal.Decimal) (BalanceChange, error) {
	if err := validateAmount(dir, amount); err != nil {
		return BalanceChange{AccountID: id}, err
	}
	return l.apply(ctx, id, dir.Opposite().Signed(amount))
}

func validateAmount(dir core.Direction, amount decimal.Decimal) error {
	if !dir.Valid() {
		return core.Invalid("direction", "must be credit or debit, got %q", dir)
	}
	if !amount.IsPositive() {
		return core.Invalid("amount", "must be positive, got %s", amount)
	}
	return nil
}

func (l *BalanceLedger) apply(ctx context.Context, id core.AccountID, delta decimal.Decimal) (BalanceChange, error) {
	log := l.log.With().Str("account_id", string(id)).Str("delta", delta.String()).Logger()

	for attempt := 1; ; attempt++ {
		acct, err := l.store.GetAccount(ctx, id)
		if err != nil {
			return BalanceChange{AccountID: id}, err
		}
		if shopID, err := tenant.ShopFrom(ctx); err == nil && acct.ShopID != shopID {
			return BalanceChange{AccountID: id}, core.NotFound("account", id)
		}

		updated, err := l.store.UpdateAccountBalance(ctx, id, acct.Balance.Add(delta), acct.Version)
		if errors.Is(err, core.ErrConcurrentModification) {
			if attempt < l.maxAttempts {
				log.Debug().Int("attempt", attempt).Msg("balance version moved, re-reading")
				continue
			}
			log.Warn().Int("attempts", attempt).Msg("balance update lost every compare-and-swap")
			return BalanceChange{AccountID: id}, &core.ConflictError{Kind: "account", ID: string(id), Err: core.ErrConcurrentModification}
		}
		if err != nil {
			return BalanceChange{AccountID: id}, err
		}

		log.Debug().Str("balance", updated.Balance.String()).Msg("balance updated")
		return BalanceChange{AccountID: id, Before: acct.Balance, After: updated.Balance}, nil
	}
}
