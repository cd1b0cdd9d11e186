package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/core/store"
)

func TestMemory_ProductCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	p, err := m.InsertProduct(ctx, core.Product{ShopID: "s1", Name: "Cable", Kind: core.KindProduct, Stock: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)

	updated, err := m.UpdateProductStock(ctx, p.ID, 7, p.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.Stock)
	assert.Equal(t, int64(2), updated.Version)

	// Stale version loses
	_, err = m.UpdateProductStock(ctx, p.ID, 5, p.Version)
	assert.ErrorIs(t, err, core.ErrConcurrentModification)

	_, err = m.UpdateProductStock(ctx, "missing", 5, 1)
	assert.True(t, core.IsNotFound(err))
}

func TestMemory_ProductNameUniquePerShop(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.InsertProduct(ctx, core.Product{ShopID: "s1", Name: "Charger", Kind: core.KindProduct})
	require.NoError(t, err)

	_, err = m.InsertProduct(ctx, core.Product{ShopID: "s1", Name: "charger", Kind: core.KindProduct})
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = m.InsertProduct(ctx, core.Product{ShopID: "s2", Name: "Charger", Kind: core.KindProduct})
	assert.NoError(t, err)
}

func TestMemory_ServicesHoldNoStock(t *testing.T) {
	m := store.NewMemory()
	p, err := m.InsertProduct(context.Background(), core.Product{ShopID: "s1", Name: "Repair", Kind: core.KindService, Stock: 4})
	require.NoError(t, err)
	assert.Zero(t, p.Stock)
}

func TestMemory_ListProductsLowStock(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, p := range []core.Product{
		{ShopID: "s1", Name: "B", Kind: core.KindProduct, Stock: 2},
		{ShopID: "s1", Name: "A", Kind: core.KindProduct, Stock: 9},
		{ShopID: "s1", Name: "C", Kind: core.KindService},
		{ShopID: "s2", Name: "D", Kind: core.KindProduct, Stock: 1},
	} {
		_, err := m.InsertProduct(ctx, p)
		require.NoError(t, err)
	}

	all, err := m.ListProducts(ctx, "s1", core.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].Name)

	threshold := int64(5)
	low, err := m.ListProducts(ctx, "s1", core.ProductFilter{StockBelow: &threshold})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "B", low[0].Name)
}

func TestMemory_DeleteSaleCascadesItems(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	sale, err := m.InsertSale(ctx, core.Sale{ShopID: "s1", Total: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = m.InsertSaleItems(ctx, []core.SaleItem{{SaleID: sale.ID, Quantity: 1, Kind: core.LineService}})
	require.NoError(t, err)

	require.NoError(t, m.DeleteSale(ctx, sale.ID))
	items, err := m.ListSaleItems(ctx, sale.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.True(t, core.IsNotFound(m.DeleteSale(ctx, sale.ID)))
}

func TestMemory_SaleItemsBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	sale, err := m.InsertSale(ctx, core.Sale{ShopID: "s1"})
	require.NoError(t, err)

	_, err = m.InsertSaleItems(ctx, []core.SaleItem{
		{SaleID: sale.ID, Quantity: 1},
		{SaleID: "ghost", Quantity: 1},
	})
	require.Error(t, err)

	items, err := m.ListSaleItems(ctx, sale.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemory_ListSalesFilters(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, _ = m.InsertSale(ctx, core.Sale{ShopID: "s1", InvoiceDate: day, PaymentMode: core.PaymentCash})
	_, _ = m.InsertSale(ctx, core.Sale{ShopID: "s1", InvoiceDate: day.Add(24 * time.Hour), PaymentMode: core.PaymentUPI})
	_, _ = m.InsertSale(ctx, core.Sale{ShopID: "s1", InvoiceDate: day.Add(48 * time.Hour), PaymentMode: core.PaymentCash})

	from, to := day, day.Add(48*time.Hour)
	got, err := m.ListSales(ctx, "s1", core.SaleFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].InvoiceDate.After(got[1].InvoiceDate))

	cash, err := m.ListSales(ctx, "s1", core.SaleFilter{PaymentMode: core.PaymentCash})
	require.NoError(t, err)
	assert.Len(t, cash, 2)
}

func TestMemory_PostingRequiresAccount(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.InsertPosting(ctx, core.Posting{AccountID: "nope", Direction: core.Credit, Amount: decimal.NewFromInt(1)})
	assert.True(t, core.IsNotFound(err))

	acct, err := m.InsertAccount(ctx, core.Account{ShopID: "s1", Name: "Till", Type: core.AccountWallet})
	require.NoError(t, err)
	p, err := m.InsertPosting(ctx, core.Posting{AccountID: acct.ID, Direction: core.Credit, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.False(t, p.PostedAt.IsZero())

	_, err = m.UpdateAccountBalance(ctx, acct.ID, decimal.NewFromInt(1), acct.Version+1)
	assert.ErrorIs(t, err, core.ErrConcurrentModification)
}

func TestMemory_ShopForUser(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	u, err := m.InsertUser(ctx, core.User{Email: "owner@example.com"})
	require.NoError(t, err)

	shopID, err := m.ShopForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, shopID)

	shop, err := m.InsertShop(ctx, core.Shop{Name: "Corner", OwnerID: u.ID, Active: true})
	require.NoError(t, err)
	shopID, err = m.ShopForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, shop.ID, shopID)

	_, err = m.SetShopActive(ctx, shop.ID, false)
	require.NoError(t, err)
	shopID, err = m.ShopForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, shopID)

	_, err = m.InsertShop(ctx, core.Shop{Name: "Second", OwnerID: u.ID})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestMemory_CashClosingOncePerDay(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := m.InsertCashClosing(ctx, core.CashClosing{ShopID: "s1", Date: day, PhysicalCash: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = m.InsertCashClosing(ctx, core.CashClosing{ShopID: "s1", Date: day})
	assert.True(t, core.IsConflict(err))
	_, err = m.InsertCashClosing(ctx, core.CashClosing{ShopID: "s2", Date: day})
	require.NoError(t, err)

	list, err := m.ListCashClosings(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "10", list[0].PhysicalCash.String())
}
