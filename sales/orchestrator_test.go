package sales_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/core/store"
	"github.com/warp/shop-ledger/inventory"
	"github.com/warp/shop-ledger/sales"
	mock_sales "github.com/warp/shop-ledger/sales/mocks"
	"github.com/warp/shop-ledger/tenant"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func shopCtx() context.Context {
	return tenant.WithShop(context.Background(), "shop-1")
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	mem          *store.Memory
	orchestrator *sales.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	ledger := inventory.NewStockLedger(mem)
	return &fixture{mem: mem, orchestrator: sales.NewOrchestrator(mem, ledger, zerolog.Nop())}
}

func (f *fixture) product(t *testing.T, name string, kind core.ProductKind, stock int64) core.Product {
	t.Helper()
	p, err := f.mem.InsertProduct(context.Background(), core.Product{ShopID: "shop-1", Name: name, Kind: kind, Stock: stock})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id core.ProductID) int64 {
	t.Helper()
	p, err := f.mem.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestCreateSale_HappyPath(t *testing.T) {
	// GIVEN: Product P with stock 10
	f := newFixture(t)
	p := f.product(t, "Tempered glass", core.KindProduct, 10)

	// WHEN: Selling 2 @ 50 and 1 @ 20 of P
	res, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		CustomerName: "Asha",
		Paid:         money("100"),
		Items: []sales.LineInput{
			{ProductID: p.ID, Name: p.Name, Quantity: 2, Rate: money("50")},
			{ProductID: p.ID, Name: p.Name, Quantity: 1, Rate: money("20")},
		},
	})

	// THEN: Stock 7, total 120, two items summing to 120
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.stock(t, p.ID))
	assert.True(t, res.Sale.Total.Equal(money("120")))
	assert.True(t, res.Sale.Balance.Equal(money("20")))
	assert.Equal(t, core.PaymentCash, res.Sale.PaymentMode)
	assert.Equal(t, core.BillInvoice, res.Sale.BillType)
	require.Len(t, res.StockChanges, 2)

	stored, err := f.orchestrator.GetSale(shopCtx(), res.Sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	sum := decimal.Zero
	for _, it := range stored.Items {
		assert.Equal(t, res.Sale.ID, it.SaleID)
		assert.Equal(t, p.ID, it.ProductID)
		sum = sum.Add(it.Total)
	}
	assert.True(t, sum.Equal(money("120")))
}

func TestCreateSale_OverpaidBalanceIsZero(t *testing.T) {
	f := newFixture(t)
	res, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Paid:  money("500"),
		Items: []sales.LineInput{{Name: "Screen repair", Kind: core.LineService, Quantity: 1, Rate: money("450")}},
	})
	require.NoError(t, err)
	assert.True(t, res.Sale.Balance.IsZero())
}

func TestCreateSale_NonProductLinesLeaveStock(t *testing.T) {
	// GIVEN: A stocked product and a service product
	f := newFixture(t)
	p := f.product(t, "Charger", core.KindProduct, 5)
	svc := f.product(t, "Software flash", core.KindService, 0)

	// WHEN: A sale has a service, a recharge, an insurance and a product line
	res, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{
			{ProductID: svc.ID, Name: svc.Name, Kind: core.LineService, Quantity: 1, Rate: money("300")},
			{Name: "Prepaid 299", Kind: core.LineRecharge, Quantity: 1, Rate: money("299")},
			{Name: "Screen cover", Kind: core.LineInsurance, Quantity: 1, Rate: money("999"), PolicyRef: "POL-7"},
			{ProductID: p.ID, Name: p.Name, Quantity: 1, Rate: money("650")},
		},
	})

	// THEN: Only the product line moved stock
	require.NoError(t, err)
	require.Len(t, res.StockChanges, 1)
	assert.Equal(t, p.ID, res.StockChanges[0].ProductID)
	assert.Equal(t, int64(4), f.stock(t, p.ID))
	assert.Equal(t, int64(0), f.stock(t, svc.ID))
	assert.True(t, res.Sale.Total.Equal(money("2248")))
}

func TestCreateSale_StockFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Cable", core.KindProduct, 1)

	res, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{{ProductID: p.ID, Name: p.Name, Quantity: 3, Rate: money("10")}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.stock(t, p.ID))
	assert.Equal(t, int64(1), res.StockChanges[0].Removed())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCreateSale_Validation(t *testing.T) {
	line := sales.LineInput{ProductID: "p-1", Name: "Case", Quantity: 1, Rate: money("10")}
	withLine := func(mut func(*sales.LineInput)) sales.SaleInput {
		l := line
		mut(&l)
		return sales.SaleInput{Items: []sales.LineInput{l}}
	}

	tests := []struct {
		name  string
		in    sales.SaleInput
		field string
	}{
		{"no lines", sales.SaleInput{}, "items"},
		{"negative paid", sales.SaleInput{Paid: money("-1"), Items: []sales.LineInput{line}}, "paid"},
		{"bad payment mode", sales.SaleInput{PaymentMode: "cheque", Items: []sales.LineInput{line}}, "payment_mode"},
		{"zero quantity", withLine(func(l *sales.LineInput) { l.Quantity = 0 }), "items[0].quantity"},
		{"negative rate", withLine(func(l *sales.LineInput) { l.Rate = money("-5") }), "items[0].rate"},
		{"discount over amount", withLine(func(l *sales.LineInput) { l.Discount = money("11") }), "items[0].discount"},
		{"product without id", withLine(func(l *sales.LineInput) { l.ProductID = "" }), "items[0].product_id"},
		{"unknown kind", withLine(func(l *sales.LineInput) { l.Kind = "gift" }), "items[0].kind"},
		{"missing name", withLine(func(l *sales.LineInput) { l.Name = " " }), "items[0].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No store call may happen before validation passes
			o := sales.NewOrchestrator(mock_sales.NewMockSaleStore(ctrl), mock_sales.NewMockStockMover(ctrl), zerolog.Nop())

			_, err := o.CreateSale(shopCtx(), tt.in)

			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateSale_RequiresShop(t *testing.T) {
	ctrl := gomock.NewController(t)
	o := sales.NewOrchestrator(mock_sales.NewMockSaleStore(ctrl), mock_sales.NewMockStockMover(ctrl), zerolog.Nop())

	_, err := o.CreateSale(context.Background(), sales.SaleInput{})
	assert.ErrorIs(t, err, core.ErrNoShop)
}

// =============================================================================
// FAILURE VISIBILITY
// =============================================================================

// echoItems returns the batch it was given, with IDs assigned.
func echoItems(_ context.Context, items []core.SaleItem) ([]core.SaleItem, error) {
	out := make([]core.SaleItem, len(items))
	for i, it := range items {
		it.ID = core.SaleItemID("item-" + string(it.ProductID))
		out[i] = it
	}
	return out, nil
}

func TestCreateSale_HeaderFailureWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock_sales.NewMockSaleStore(ctrl)
	stock := mock_sales.NewMockStockMover(ctrl)
	boom := errors.New("insert failed")

	store.EXPECT().InsertSale(gomock.Any(), gomock.Any()).Return(core.Sale{}, boom)

	o := sales.NewOrchestrator(store, stock, zerolog.Nop())
	_, err := o.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{{ProductID: "p-1", Name: "Case", Quantity: 1, Rate: money("10")}},
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, core.IsPartial(err))
}

func TestCreateSale_ItemsFailureIsPartial(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock_sales.NewMockSaleStore(ctrl)
	stock := mock_sales.NewMockStockMover(ctrl)
	boom := errors.New("batch rejected")

	store.EXPECT().InsertSale(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s core.Sale) (core.Sale, error) { s.ID = "sale-1"; return s, nil })
	store.EXPECT().InsertSaleItems(gomock.Any(), gomock.Any()).Return(nil, boom)

	o := sales.NewOrchestrator(store, stock, zerolog.Nop())
	_, err := o.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{{ProductID: "p-1", Name: "Case", Quantity: 1, Rate: money("10")}},
	})

	var partial *core.PartialCompletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, sales.StepItems, partial.FailedStep)
	assert.Equal(t, []core.Step{sales.StepHeader}, partial.Completed)
	assert.Equal(t, "sale-1", partial.EntityID)
	assert.ErrorIs(t, err, boom)

	// Compensation deletes the header
	store.EXPECT().DeleteSale(gomock.Any(), core.SaleID("sale-1")).Return(nil)
	require.NoError(t, partial.Compensate(context.Background()))
}

func TestCreateSale_StockFailureIsPartialAndCompensable(t *testing.T) {
	// GIVEN: Two product lines, the second product's stock write fails
	ctrl := gomock.NewController(t)
	store := mock_sales.NewMockSaleStore(ctrl)
	stock := mock_sales.NewMockStockMover(ctrl)
	boom := errors.New("stock store unreachable")

	gomock.InOrder(
		store.EXPECT().InsertSale(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, s core.Sale) (core.Sale, error) { s.ID = "sale-1"; return s, nil }),
		store.EXPECT().InsertSaleItems(gomock.Any(), gomock.Len(2)).DoAndReturn(echoItems),
		stock.EXPECT().Decrement(gomock.Any(), core.ProductID("p-1"), int64(2)).
			Return(inventory.StockChange{ProductID: "p-1", Before: 10, After: 8}, nil),
		stock.EXPECT().Decrement(gomock.Any(), core.ProductID("p-2"), int64(1)).
			Return(inventory.StockChange{ProductID: "p-2"}, boom),
	)

	o := sales.NewOrchestrator(store, stock, zerolog.Nop())

	// WHEN: Creating the sale
	res, err := o.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{
			{ProductID: "p-1", Name: "Case", Quantity: 2, Rate: money("150")},
			{ProductID: "p-2", Name: "Glass", Quantity: 1, Rate: money("99")},
		},
	})

	// THEN: The caller sees which step failed and what committed
	assert.Nil(t, res)
	var partial *core.PartialCompletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "create_sale", partial.Operation)
	assert.Equal(t, sales.StockStep("p-2"), partial.FailedStep)
	assert.Equal(t, []core.Step{sales.StepHeader, sales.StepItems, sales.StockStep("p-1")}, partial.Completed)
	assert.ErrorIs(t, err, boom)

	// AND: Compensation restores p-1 then deletes the header
	gomock.InOrder(
		stock.EXPECT().Increment(gomock.Any(), core.ProductID("p-1"), int64(2)).
			Return(inventory.StockChange{ProductID: "p-1", Before: 8, After: 10}, nil),
		store.EXPECT().DeleteSale(gomock.Any(), core.SaleID("sale-1")).Return(nil),
	)
	require.NoError(t, partial.Compensate(context.Background()))
}

func TestCreateSale_MissingProductIsPartial(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{{ProductID: "deleted", Name: "Old case", Quantity: 1, Rate: money("10")}},
	})

	var partial *core.PartialCompletionError
	require.ErrorAs(t, err, &partial)
	assert.True(t, core.IsNotFound(err))

	// Compensating removes the orphan header and its items
	require.NoError(t, partial.Compensate(context.Background()))
	list, err := f.orchestrator.ListSales(shopCtx(), core.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateSale_CompensationRestoresStock(t *testing.T) {
	// GIVEN: Real stock, but the second product does not exist
	f := newFixture(t)
	p := f.product(t, "Case", core.KindProduct, 10)

	_, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{
			{ProductID: p.ID, Name: p.Name, Quantity: 4, Rate: money("150")},
			{ProductID: "ghost", Name: "Ghost", Quantity: 1, Rate: money("1")},
		},
	})
	var partial *core.PartialCompletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, int64(6), f.stock(t, p.ID))

	// WHEN: The caller compensates
	require.NoError(t, partial.Compensate(context.Background()))

	// THEN: Stock is back and the sale is gone
	assert.Equal(t, int64(10), f.stock(t, p.ID))
	_, err = f.mem.GetSale(context.Background(), core.SaleID(partial.EntityID))
	assert.True(t, core.IsNotFound(err))
}

// =============================================================================
// DISCARD
// =============================================================================

func TestDiscardSale_PartialRestoresExactlyWhatWasRemoved(t *testing.T) {
	// GIVEN: 2 cases in stock, a sale of 4 cases and a missing product
	f := newFixture(t)
	p := f.product(t, "Case", core.KindProduct, 2)

	_, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{
			{ProductID: p.ID, Name: p.Name, Quantity: 4, Rate: money("150")},
			{ProductID: "ghost", Name: "Ghost", Quantity: 1, Rate: money("1")},
		},
	})
	var partial *core.PartialCompletionError
	require.ErrorAs(t, err, &partial)
	saleID := core.SaleID(partial.EntityID)
	assert.True(t, f.orchestrator.Pending(saleID))
	assert.Equal(t, int64(0), f.stock(t, p.ID))

	// WHEN: The caller discards it by ID only
	require.NoError(t, f.orchestrator.DiscardSale(shopCtx(), saleID))

	// THEN: Stock gets back the 2 removed, not the 4 ordered, and the header is gone
	assert.Equal(t, int64(2), f.stock(t, p.ID))
	assert.False(t, f.orchestrator.Pending(saleID))
	list, err := f.orchestrator.ListSales(shopCtx(), core.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// AND: A second discard finds nothing
	assert.True(t, core.IsNotFound(f.orchestrator.DiscardSale(shopCtx(), saleID)))
}

func TestDiscardSale_CompletedSaleRestocksProductLines(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Charger", core.KindProduct, 10)
	res, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{
			{ProductID: p.ID, Name: p.Name, Quantity: 3, Rate: money("699")},
			{Name: "Recharge", Kind: core.LineRecharge, Quantity: 1, Rate: money("199")},
		},
	})
	require.NoError(t, err)
	assert.False(t, f.orchestrator.Pending(res.Sale.ID))
	assert.Equal(t, int64(7), f.stock(t, p.ID))

	require.NoError(t, f.orchestrator.DiscardSale(shopCtx(), res.Sale.ID))

	assert.Equal(t, int64(10), f.stock(t, p.ID))
	_, err = f.mem.GetSale(context.Background(), res.Sale.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestDiscardSale_OtherShopIsNotFound(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Case", core.KindProduct, 5)
	res, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{{ProductID: p.ID, Name: p.Name, Quantity: 1, Rate: money("150")}},
	})
	require.NoError(t, err)

	err = f.orchestrator.DiscardSale(tenant.WithShop(context.Background(), "shop-2"), res.Sale.ID)

	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, int64(4), f.stock(t, p.ID))
}

func TestDiscardSale_DeleteFailureIsPartial(t *testing.T) {
	// GIVEN: A stored sale of 2 x p-1 whose header cannot be deleted
	ctrl := gomock.NewController(t)
	store := mock_sales.NewMockSaleStore(ctrl)
	stock := mock_sales.NewMockStockMover(ctrl)
	boom := errors.New("store unreachable")

	gomock.InOrder(
		store.EXPECT().GetSale(gomock.Any(), core.SaleID("sale-1")).
			Return(core.Sale{ID: "sale-1", ShopID: "shop-1"}, nil),
		store.EXPECT().ListSaleItems(gomock.Any(), core.SaleID("sale-1")).
			Return([]core.SaleItem{{SaleID: "sale-1", ProductID: "p-1", Quantity: 2, Kind: core.LineProduct}}, nil),
		stock.EXPECT().Increment(gomock.Any(), core.ProductID("p-1"), int64(2)).
			Return(inventory.StockChange{ProductID: "p-1", Before: 5, After: 7}, nil),
		store.EXPECT().DeleteSale(gomock.Any(), core.SaleID("sale-1")).Return(boom),
	)
	o := sales.NewOrchestrator(store, stock, zerolog.Nop())

	// WHEN: Discarding
	err := o.DiscardSale(shopCtx(), "sale-1")

	// THEN: The restock is reported as committed and can be undone
	var partial *core.PartialCompletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "discard_sale", partial.Operation)
	assert.Equal(t, sales.StepDeleteHeader, partial.FailedStep)
	assert.Equal(t, []core.Step{sales.RestockStep("p-1")}, partial.Completed)

	stock.EXPECT().Decrement(gomock.Any(), core.ProductID("p-1"), int64(2)).
		Return(inventory.StockChange{ProductID: "p-1", Before: 7, After: 5}, nil)
	require.NoError(t, partial.Compensate(context.Background()))
}

// =============================================================================
// READS
// =============================================================================

func TestGetSale_OtherShopIsNotFound(t *testing.T) {
	f := newFixture(t)
	res, err := f.orchestrator.CreateSale(shopCtx(), sales.SaleInput{
		Items: []sales.LineInput{{Name: "Recharge", Kind: core.LineRecharge, Quantity: 1, Rate: money("199")}},
	})
	require.NoError(t, err)

	other := tenant.WithShop(context.Background(), "shop-2")
	_, err = f.orchestrator.GetSale(other, res.Sale.ID)
	assert.True(t, core.IsNotFound(err))

	list, err := f.orchestrator.ListSales(other, core.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
