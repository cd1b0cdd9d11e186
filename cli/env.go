/*
Package cli holds the operator commands of ledgerctl.

Each command is a google/subcommands Command bound to an Env: the
ledgers over one store, the shop being operated on, the display
currency and the output writer. Commands go through the same ledger
operations as the HTTP API; they never write to the store directly.
*/
package cli

import (
	"context"
	"io"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/banking"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/inventory"
	"github.com/warp/shop-ledger/purchasing"
	"github.com/warp/shop-ledger/tenant"
)

// Env is what every command runs against.
type Env struct {
	Store     core.Store
	Stock     *inventory.StockLedger
	Purchases *purchasing.ReceiptHandler
	Postings  *banking.PostingService

	ShopID   core.ShopID
	Currency string
	Out      io.Writer
}

// NewEnv wires the ledgers over store.
func NewEnv(store core.Store, shopID core.ShopID, currency string, maxAttempts int, out io.Writer, log zerolog.Logger) *Env {
	stock := inventory.NewStockLedger(store, inventory.WithMaxAttempts(maxAttempts), inventory.WithLogger(log))
	balances := banking.NewBalanceLedger(store, banking.WithMaxAttempts(maxAttempts), banking.WithLogger(log))
	return &Env{
		Store:     store,
		Stock:     stock,
		Purchases: purchasing.NewReceiptHandler(store, stock, log),
		Postings:  banking.NewPostingService(store, balances, log),
		ShopID:    shopID,
		Currency:  currency,
		Out:       out,
	}
}

// Context binds the operated shop.
func (e *Env) Context(ctx context.Context) context.Context {
	return tenant.WithShop(ctx, e.ShopID)
}

// Money formats amount in the display currency.
func (e *Env) Money(amount decimal.Decimal) string { return FormatMoney(amount, e.Currency) }

// Register adds every command to c.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&stockCmd{env: env}, "stock")
	c.Register(&adjustCmd{env: env}, "stock")
	c.Register(&receiveCmd{env: env}, "stock")

	c.Register(&accountsCmd{env: env}, "accounts")
	c.Register(&postCmd{env: env}, "accounts")
	c.Register(&unpostCmd{env: env}, "accounts")
}
