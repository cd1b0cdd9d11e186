/*
Package purchasing records goods receipts and adds the received quantity
to stock.

PURPOSE:
  A purchase is two writes: the purchase row, then a stock increment. The
  increment runs under inventory.PolicyBestEffort: if the product cannot
  be found or the stock write fails, the purchase is kept, a warning is
  logged, and the Receipt reports StockUpdated=false with the reason. The
  operator fixes stock with a manual adjustment.

SEE ALSO:
  - inventory/stock.go: Increment and the policies
  - reports/reports.go: supplier totals over purchases
*/
package purchasing

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/inventory"
	"github.com/warp/shop-ledger/tenant"
)

// StockIncrementer adds received quantity to stock.
type StockIncrementer interface {
	Increment(ctx context.Context, id core.ProductID, qty int64) (inventory.StockChange, error)
}

type PurchaseInput struct {
	Date         time.Time // zero = now
	InvoiceNo    string
	SupplierName string
	ProductID    core.ProductID
	ItemName     string
	Quantity     int64
	UnitCost     decimal.Decimal
}

// Receipt is the outcome of ReceivePurchase.
type Receipt struct {
	Purchase     core.Purchase
	StockUpdated bool
	StockChange  inventory.StockChange
	StockError   string // why stock was not updated
}

type ReceiptHandler struct {
	purchases core.PurchaseStore
	stock     StockIncrementer
	policy    inventory.Policy
	log       zerolog.Logger
}

func NewReceiptHandler(purchases core.PurchaseStore, stock StockIncrementer, log zerolog.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		purchases: purchases,
		stock:     stock,
		policy:    inventory.PolicyBestEffort,
		log:       log,
	}
}

// ReceivePurchase inserts the purchase, then increments stock best-effort.
func (h *ReceiptHandler) ReceivePurchase(ctx context.Context, in PurchaseInput) (*Receipt, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	supplier := strings.TrimSpace(in.SupplierName)
	switch {
	case supplier == "":
		return nil, core.Invalid("supplier_name", "is required")
	case in.ProductID == "":
		return nil, core.Invalid("product_id", "is required")
	case in.Quantity <= 0:
		return nil, core.Invalid("quantity", "must be positive, got %d", in.Quantity)
	case in.UnitCost.IsNegative():
		return nil, core.Invalid("unit_cost", "must not be negative")
	}

	purchase, err := h.purchases.InsertPurchase(ctx, core.Purchase{
		ShopID:       shopID,
		Date:         in.Date,
		InvoiceNo:    strings.TrimSpace(in.InvoiceNo),
		SupplierName: supplier,
		ProductID:    in.ProductID,
		ItemName:     strings.TrimSpace(in.ItemName),
		Quantity:     in.Quantity,
		UnitCost:     in.UnitCost,
		Total:        in.UnitCost.Mul(decimal.NewFromInt(in.Quantity)),
	})
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{Purchase: purchase}
	log := h.log.With().
		Str("purchase_id", string(purchase.ID)).
		Str("product_id", string(in.ProductID)).
		Logger()

	change, err := h.stock.Increment(ctx, in.ProductID, in.Quantity)
	if err != nil {
		log.Warn().Err(err).Int64("quantity", in.Quantity).Msg("purchase kept, stock not updated")
		receipt.StockError = err.Error()
		return receipt, h.policy.Handle(err)
	}

	receipt.StockUpdated = !change.Skipped
	receipt.StockChange = change
	if change.Skipped {
		receipt.StockError = "product is a service"
	}
	log.Info().Int64("stock", change.After).Msg("purchase received")
	return receipt, nil
}

// ListPurchases returns the bound shop's purchases, newest first.
func (h *ReceiptHandler) ListPurchases(ctx context.Context, filter core.PurchaseFilter) ([]core.Purchase, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	return h.purchases.ListPurchases(ctx, shopID, filter)
}

// SupplierTotal is the running total purchased from one supplier.
func (h *ReceiptHandler) SupplierTotal(ctx context.Context, supplier string) (decimal.Decimal, error) {
	list, err := h.ListPurchases(ctx, core.PurchaseFilter{SupplierName: strings.TrimSpace(supplier)})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range list {
		total = total.Add(p.Total)
	}
	return total, nil
}
