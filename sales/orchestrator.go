/*
Package sales creates sales: an invoice header, its line items, and the
stock decrements of its product lines.

PURPOSE:
  A sale spans three writes the store cannot commit together:

      1. insert_header    one row in sales
      2. insert_items     one batch in sale_items
      3. decrement_stock  one CAS per product line

  The orchestrator runs them in order and records each committed step in a
  core.Saga. It never rolls back on its own: a failure after the header
  returns a *core.PartialCompletionError listing what committed, and the
  caller may call Compensate on it.

STOCK RULES:
  - Only lines of kind "product" touch stock, under inventory.PolicyStrict
  - Decrements floor at zero; a sale is never refused for lack of stock
  - service, recharge and insurance lines never touch stock
  - Return bills decrement like invoices

COMPENSATION (newest first):
  decrement_stock:<id> -> increment the quantity actually removed
  insert_items         -> nothing, items cascade with the header
  insert_header        -> delete the sale

DISCARD:
  The orchestrator holds the log of every partial sale it produced until
  DiscardSale is called with its ID, so callers that only see the error
  over the wire can still undo it. A sale with no held log (completed, or
  left partial by an earlier process) is discarded by returning each
  product line's quantity to stock, then deleting the header.

SEE ALSO:
  - core/saga.go: compensation log
  - inventory/stock.go: Decrement semantics
*/
package sales

//go:generate mockgen -destination=mocks/mock_sales.go -source=orchestrator.go -package=mock_sales

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/inventory"
	"github.com/warp/shop-ledger/tenant"
)

const (
	StepHeader core.Step = "insert_header"
	StepItems  core.Step = "insert_items"
	StepStock  core.Step = "decrement_stock"

	StepRestock      core.Step = "increment_stock"
	StepDeleteHeader core.Step = "delete_header"
)

// StockStep names the decrement step of one product.
func StockStep(id core.ProductID) core.Step {
	return StepStock + core.Step(":"+string(id))
}

// RestockStep names the increment step of one product during a discard.
func RestockStep(id core.ProductID) core.Step {
	return StepRestock + core.Step(":"+string(id))
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// SaleStore is the slice of the record store a sale needs.
type SaleStore interface {
	InsertSale(ctx context.Context, s core.Sale) (core.Sale, error)
	InsertSaleItems(ctx context.Context, items []core.SaleItem) ([]core.SaleItem, error)
	GetSale(ctx context.Context, id core.SaleID) (core.Sale, error)
	ListSaleItems(ctx context.Context, saleID core.SaleID) ([]core.SaleItem, error)
	ListSales(ctx context.Context, shopID core.ShopID, filter core.SaleFilter) ([]core.Sale, error)
	DeleteSale(ctx context.Context, id core.SaleID) error
}

// StockMover moves product stock. *inventory.StockLedger implements it.
type StockMover interface {
	Decrement(ctx context.Context, id core.ProductID, qty int64) (inventory.StockChange, error)
	Increment(ctx context.Context, id core.ProductID, qty int64) (inventory.StockChange, error)
}

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

type LineInput struct {
	ProductID core.ProductID
	Name      string
	Quantity  int64
	Rate      decimal.Decimal
	Discount  decimal.Decimal
	Kind      core.LineKind // empty = product

	ValidFrom *time.Time
	ValidTo   *time.Time
	PolicyRef string
}

type SaleInput struct {
	InvoiceDate     time.Time // zero = now
	CustomerName    string
	CustomerContact string
	Paid            decimal.Decimal
	PaymentMode     core.PaymentMode // empty = cash
	BillType        core.BillType    // empty = invoice
	DueDate         *time.Time
	Items           []LineInput
}

type SaleResult struct {
	Sale         core.Sale
	Items        []core.SaleItem
	StockChanges []inventory.StockChange
}

// SaleWithItems is a stored sale and its lines.
type SaleWithItems struct {
	Sale  core.Sale
	Items []core.SaleItem
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type Orchestrator struct {
	sales  SaleStore
	stock  StockMover
	policy inventory.Policy
	log    zerolog.Logger

	mu      sync.Mutex
	pending map[core.SaleID]*core.PartialCompletionError
}

func NewOrchestrator(sales SaleStore, stock StockMover, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		sales:   sales,
		stock:   stock,
		policy:  inventory.PolicyStrict,
		log:     log,
		pending: make(map[core.SaleID]*core.PartialCompletionError),
	}
}

// CreateSale validates in, then writes header, items and stock in order.
func (o *Orchestrator) CreateSale(ctx context.Context, in SaleInput) (*SaleResult, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	header, items, err := build(shopID, in)
	if err != nil {
		return nil, err
	}

	saga := core.NewSaga("create_sale")

	sale, err := o.sales.InsertSale(ctx, header)
	if err != nil {
		return nil, err
	}
	log := o.log.With().Str("sale_id", string(sale.ID)).Logger()
	saga.Record(StepHeader, func(ctx context.Context) error {
		return o.sales.DeleteSale(ctx, sale.ID)
	})

	for i := range items {
		items[i].SaleID = sale.ID
	}
	stored, err := o.sales.InsertSaleItems(ctx, items)
	if err != nil {
		log.Error().Err(err).Str("step", string(StepItems)).Msg("sale partially completed")
		return nil, o.hold(saga.Fail(StepItems, string(sale.ID), err))
	}
	saga.Record(StepItems, nil)

	var changes []inventory.StockChange
	for _, it := range stored {
		if !it.Kind.AffectsStock() {
			continue
		}
		change, err := o.stock.Decrement(ctx, it.ProductID, it.Quantity)
		if err := o.policy.Handle(err); err != nil {
			step := StockStep(it.ProductID)
			log.Error().Err(err).Str("step", string(step)).Msg("sale partially completed")
			return nil, o.hold(saga.Fail(step, string(sale.ID), err))
		}
		changes = append(changes, change)
		if removed := change.Removed(); removed > 0 {
			productID := it.ProductID
			saga.Record(StockStep(productID), func(ctx context.Context) error {
				_, err := o.stock.Increment(ctx, productID, removed)
				return err
			})
		}
	}

	log.Info().
		Str("total", sale.Total.String()).
		Int("items", len(stored)).
		Int("stock_changes", len(changes)).
		Msg("sale created")
	return &SaleResult{Sale: sale, Items: stored, StockChanges: changes}, nil
}

// hold keeps a partial sale's compensation log until it is discarded.
func (o *Orchestrator) hold(partial *core.PartialCompletionError) error {
	o.mu.Lock()
	o.pending[core.SaleID(partial.EntityID)] = partial
	o.mu.Unlock()
	return partial
}

// Pending reports whether id is a partial sale awaiting DiscardSale.
func (o *Orchestrator) Pending(id core.SaleID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending[id] != nil
}

// DiscardSale deletes a sale of the bound shop and gives its stock back.
func (o *Orchestrator) DiscardSale(ctx context.Context, id core.SaleID) error {
	existing, err := o.GetSale(ctx, id)
	if err != nil {
		return err
	}
	log := o.log.With().Str("sale_id", string(id)).Logger()

	o.mu.Lock()
	partial := o.pending[id]
	o.mu.Unlock()
	if partial != nil {
		// failed undos stay in the log, so a second discard retries them
		if err := partial.Compensate(ctx); err != nil {
			log.Error().Err(err).Msg("partial sale not fully undone")
			return err
		}
		o.mu.Lock()
		delete(o.pending, id)
		o.mu.Unlock()
		log.Info().Str("failed_step", string(partial.FailedStep)).Msg("partial sale discarded")
		return nil
	}

	saga := core.NewSaga("discard_sale")
	for _, it := range existing.Items {
		if !it.Kind.AffectsStock() {
			continue
		}
		step := RestockStep(it.ProductID)
		change, err := o.stock.Increment(ctx, it.ProductID, it.Quantity)
		if core.IsNotFound(err) {
			log.Warn().Str("product_id", string(it.ProductID)).Msg("product gone, nothing to restock")
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("step", string(step)).Msg("discard partially completed")
			return saga.Fail(step, string(id), err)
		}
		if added := change.Delta(); added > 0 {
			productID := it.ProductID
			saga.Record(step, func(ctx context.Context) error {
				_, err := o.stock.Decrement(ctx, productID, added)
				return err
			})
		}
	}
	if err := o.sales.DeleteSale(ctx, id); err != nil {
		log.Error().Err(err).Str("step", string(StepDeleteHeader)).Msg("discard partially completed")
		return saga.Fail(StepDeleteHeader, string(id), err)
	}
	log.Info().Int("items", len(existing.Items)).Msg("sale discarded")
	return nil
}

// GetSale returns a sale of the bound shop with its items.
func (o *Orchestrator) GetSale(ctx context.Context, id core.SaleID) (*SaleWithItems, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	sale, err := o.sales.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.ShopID != shopID {
		return nil, core.NotFound("sale", id)
	}
	items, err := o.sales.ListSaleItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SaleWithItems{Sale: sale, Items: items}, nil
}

// ListSales returns the bound shop's sales, newest first.
func (o *Orchestrator) ListSales(ctx context.Context, filter core.SaleFilter) ([]core.Sale, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	return o.sales.ListSales(ctx, shopID, filter)
}

// =============================================================================
// VALIDATION
// =============================================================================

// build validates in and produces the header and items to insert.
func build(shopID core.ShopID, in SaleInput) (core.Sale, []core.SaleItem, error) {
	if len(in.Items) == 0 {
		return core.Sale{}, nil, core.Invalid("items", "a sale needs at least one line")
	}
	if in.Paid.IsNegative() {
		return core.Sale{}, nil, core.Invalid("paid", "must not be negative")
	}
	mode := in.PaymentMode
	if mode == "" {
		mode = core.PaymentCash
	}
	if !mode.Valid() {
		return core.Sale{}, nil, core.Invalid("payment_mode", "unknown mode %q", mode)
	}
	billType := in.BillType
	if billType == "" {
		billType = core.BillInvoice
	}
	if !billType.Valid() {
		return core.Sale{}, nil, core.Invalid("bill_type", "unknown type %q", billType)
	}

	total := decimal.Zero
	items := make([]core.SaleItem, len(in.Items))
	for i, line := range in.Items {
		item, err := buildLine(shopID, i, line)
		if err != nil {
			return core.Sale{}, nil, err
		}
		total = total.Add(item.Total)
		items[i] = item
	}

	balance := total.Sub(in.Paid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	header := core.Sale{
		ShopID:          shopID,
		InvoiceDate:     in.InvoiceDate,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerContact: strings.TrimSpace(in.CustomerContact),
		Total:           total,
		Paid:            in.Paid,
		Balance:         balance,
		PaymentMode:     mode,
		BillType:        billType,
		DueDate:         in.DueDate,
	}
	return header, items, nil
}

func buildLine(shopID core.ShopID, i int, line LineInput) (core.SaleItem, error) {
	kind := line.Kind
	if kind == "" {
		kind = core.LineProduct
	}
	field := func(name string) string { return "items[" + strconv.Itoa(i) + "]." + name }

	switch {
	case !kind.Valid():
		return core.SaleItem{}, core.Invalid(field("kind"), "unknown kind %q", kind)
	case strings.TrimSpace(line.Name) == "":
		return core.SaleItem{}, core.Invalid(field("name"), "is required")
	case line.Quantity <= 0:
		return core.SaleItem{}, core.Invalid(field("quantity"), "must be positive, got %d", line.Quantity)
	case line.Rate.IsNegative():
		return core.SaleItem{}, core.Invalid(field("rate"), "must not be negative")
	case line.Discount.IsNegative():
		return core.SaleItem{}, core.Invalid(field("discount"), "must not be negative")
	case kind.AffectsStock() && line.ProductID == "":
		return core.SaleItem{}, core.Invalid(field("product_id"), "product lines must reference a product")
	case line.ValidFrom != nil && line.ValidTo != nil && line.ValidTo.Before(*line.ValidFrom):
		return core.SaleItem{}, core.Invalid(field("valid_to"), "ends before valid_from")
	}

	total := core.LineTotal(line.Quantity, line.Rate, line.Discount)
	if total.IsNegative() {
		return core.SaleItem{}, core.Invalid(field("discount"), "exceeds the line amount")
	}

	return core.SaleItem{
		ShopID:      shopID,
		ProductID:   line.ProductID,
		ProductName: strings.TrimSpace(line.Name),
		Quantity:    line.Quantity,
		Rate:        line.Rate,
		Discount:    line.Discount,
		Total:       total,
		Kind:        kind,
		ValidFrom:   line.ValidFrom,
		ValidTo:     line.ValidTo,
		PolicyRef:   strings.TrimSpace(line.PolicyRef),
	}, nil
}
