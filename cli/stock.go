package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/purchasing"
	"github.com/warp/shop-ledger/tenant"
)

// =============================================================================
// stock
// =============================================================================

type stockCmd struct {
	env *Env
	low int64
}

func (*stockCmd) Name() string     { return "stock" }
func (*stockCmd) Synopsis() string { return "list products with their stock on hand" }
func (*stockCmd) Usage() string {
	return `ledgerctl stock [-low <threshold>]

  Lists the shop's products ordered by name. With -low, only
  stock-tracked products below the threshold are shown.
`
}

func (c *stockCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.low, "low", 0, "Only products with stock below this threshold.")
}

func (c *stockCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := core.ProductFilter{}
	if c.low > 0 {
		filter.StockBelow = &c.low
	}
	shopID, err := tenant.ShopFrom(c.env.Context(ctx))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	products, err := c.env.Store.ListProducts(ctx, shopID, filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(c.env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tSTOCK\tPRICE")
	for _, p := range products {
		stock := fmt.Sprint(p.Stock)
		if !p.TracksStock() {
			stock = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Kind, stock, c.env.Money(p.SalePrice))
	}
	w.Flush()
	return subcommands.ExitSuccess
}

// =============================================================================
// adjust
// =============================================================================

type adjustCmd struct {
	env     *Env
	product string
	delta   int64
}

func (*adjustCmd) Name() string     { return "adjust" }
func (*adjustCmd) Synopsis() string { return "apply a manual stock correction" }
func (*adjustCmd) Usage() string {
	return `ledgerctl adjust -product <id> -delta <n>

  Adds delta (negative to remove) to the product's stock. Refuses to take
  stock below zero.
`
}

func (c *adjustCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.product, "product", "", "Product ID.")
	f.Int64Var(&c.delta, "delta", 0, "Signed stock correction.")
}

func (c *adjustCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.product == "" {
		fmt.Fprintln(os.Stderr, "-product is required")
		return subcommands.ExitUsageError
	}
	change, err := c.env.Stock.Adjust(c.env.Context(ctx), core.ProductID(c.product), c.delta)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.env.Out, "%s: %d -> %d\n", change.ProductID, change.Before, change.After)
	return subcommands.ExitSuccess
}

// =============================================================================
// receive
// =============================================================================

type receiveCmd struct {
	env      *Env
	supplier string
	product  string
	invoice  string
	qty      int64
	cost     string
}

func (*receiveCmd) Name() string     { return "receive" }
func (*receiveCmd) Synopsis() string { return "record a goods receipt and add it to stock" }
func (*receiveCmd) Usage() string {
	return `ledgerctl receive -supplier <name> -product <id> -qty <n> -cost <unit cost> [-invoice <no>]

  Records the purchase, then adds qty to the product's stock. If stock
  cannot be updated the purchase is kept and a warning is printed.
`
}

func (c *receiveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.supplier, "supplier", "", "Supplier name.")
	f.StringVar(&c.product, "product", "", "Product ID.")
	f.StringVar(&c.invoice, "invoice", "", "Supplier invoice number.")
	f.Int64Var(&c.qty, "qty", 0, "Quantity received.")
	f.StringVar(&c.cost, "cost", "0", "Unit cost.")
}

func (c *receiveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cost, err := decimal.NewFromString(c.cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -cost %q: %v\n", c.cost, err)
		return subcommands.ExitUsageError
	}
	product, err := c.env.Store.GetProduct(ctx, core.ProductID(c.product))
	itemName := c.product
	if err == nil && product.ShopID == c.env.ShopID {
		itemName = product.Name
	}

	receipt, err := c.env.Purchases.ReceivePurchase(c.env.Context(ctx), purchasing.PurchaseInput{
		InvoiceNo:    c.invoice,
		SupplierName: c.supplier,
		ProductID:    core.ProductID(c.product),
		ItemName:     itemName,
		Quantity:     c.qty,
		UnitCost:     cost,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(c.env.Out, "purchase %s: %d x %s = %s\n", receipt.Purchase.ID, c.qty, itemName, c.env.Money(receipt.Purchase.Total))
	if receipt.StockUpdated {
		fmt.Fprintf(c.env.Out, "stock %d -> %d\n", receipt.StockChange.Before, receipt.StockChange.After)
	} else {
		fmt.Fprintf(c.env.Out, "warning: stock not updated: %s\n", receipt.StockError)
	}
	return subcommands.ExitSuccess
}
