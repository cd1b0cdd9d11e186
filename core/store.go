/*
store.go - Record store capabilities

PURPOSE:
  Defines the interface between the ledger logic and the remote record
  store. The store offers durable keyed records with filtered reads and
  single-row writes. It does NOT offer a commit spanning collections; the
  ledger never assumes one.

KEY INTERFACES:
  ProductStore:  products and their on-hand stock
  SaleStore:     sale headers and their line items
  PurchaseStore: goods receipts
  AccountStore:  money accounts and their cached balance
  PostingStore:  credit/debit postings
  ClosingStore:  end of day cash closings
  TenantStore:   user -> shop resolution
  AdminStore:    shops, users and roles for the admin side-channel

WRITE CONTRACT:
  - Insert*: assigns an ID when empty, stamps CreatedAt, returns the row.
  - Update*: conditional on the expected Version. A mismatch returns
    ErrConcurrentModification, a missing row returns a NotFoundError.
  - Delete*: a missing row returns a NotFoundError.
  - Unique violations return a ConflictError.
  - InsertSaleItems writes one batch into one collection; it is the only
    multi-row write and it never spans collections.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via sqlx
  - core/store/memory.go: In-memory for testing and the demo CLI

SEE ALSO:
  - inventory/stock.go, banking/balance.go: read-then-CAS users
*/
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTERS
// =============================================================================

type ProductFilter struct {
	Kind       ProductKind // empty = all kinds
	StockBelow *int64      // only stock-tracked products with Stock < value
}

type SaleFilter struct {
	From            *time.Time // InvoiceDate >= From
	To              *time.Time // InvoiceDate < To
	CustomerContact string
	PaymentMode     PaymentMode
}

type PurchaseFilter struct {
	SupplierName string
	ProductID    ProductID
	From         *time.Time
	To           *time.Time
}

// =============================================================================
// COLLECTION STORES
// =============================================================================

type ProductStore interface {
	InsertProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id ProductID) (Product, error)
	// ListProducts returns a shop's products ordered by name.
	ListProducts(ctx context.Context, shopID ShopID, filter ProductFilter) ([]Product, error)
	// UpdateProductStock writes stock if the row is still at expectedVersion.
	UpdateProductStock(ctx context.Context, id ProductID, stock int64, expectedVersion int64) (Product, error)
	DeleteProduct(ctx context.Context, id ProductID) error
}

type SaleStore interface {
	InsertSale(ctx context.Context, s Sale) (Sale, error)
	InsertSaleItems(ctx context.Context, items []SaleItem) ([]SaleItem, error)
	GetSale(ctx context.Context, id SaleID) (Sale, error)
	ListSaleItems(ctx context.Context, saleID SaleID) ([]SaleItem, error)
	// ListSales returns a shop's sales, newest invoice first.
	ListSales(ctx context.Context, shopID ShopID, filter SaleFilter) ([]Sale, error)
	// DeleteSale removes the header; its items cascade.
	DeleteSale(ctx context.Context, id SaleID) error
	// ListExpiringItems returns a shop's recharge and insurance lines whose
	// ValidTo falls in [from, to), soonest first.
	ListExpiringItems(ctx context.Context, shopID ShopID, from, to time.Time) ([]SaleItem, error)
}

type PurchaseStore interface {
	InsertPurchase(ctx context.Context, p Purchase) (Purchase, error)
	GetPurchase(ctx context.Context, id PurchaseID) (Purchase, error)
	// ListPurchases returns a shop's purchases, newest first.
	ListPurchases(ctx context.Context, shopID ShopID, filter PurchaseFilter) ([]Purchase, error)
}

type AccountStore interface {
	InsertAccount(ctx context.Context, a Account) (Account, error)
	GetAccount(ctx context.Context, id AccountID) (Account, error)
	ListAccounts(ctx context.Context, shopID ShopID) ([]Account, error)
	// UpdateAccountBalance writes balance if the row is still at expectedVersion.
	UpdateAccountBalance(ctx context.Context, id AccountID, balance decimal.Decimal, expectedVersion int64) (Account, error)
}

type PostingStore interface {
	InsertPosting(ctx context.Context, p Posting) (Posting, error)
	GetPosting(ctx context.Context, id PostingID) (Posting, error)
	// ListPostings returns an account's postings, newest first.
	ListPostings(ctx context.Context, accountID AccountID) ([]Posting, error)
	DeletePosting(ctx context.Context, id PostingID) error
}

type ClosingStore interface {
	// InsertCashClosing rejects a second closing for the same shop and day
	// with a ConflictError.
	InsertCashClosing(ctx context.Context, c CashClosing) (CashClosing, error)
	// ListCashClosings returns a shop's closings, newest day first.
	ListCashClosings(ctx context.Context, shopID ShopID) ([]CashClosing, error)
}

// TenantStore resolves the shop a user operates. An empty ShopID with a
// nil error means the user has no (active) shop.
type TenantStore interface {
	ShopForUser(ctx context.Context, userID UserID) (ShopID, error)
}

type AdminStore interface {
	InsertUser(ctx context.Context, u User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	GrantRole(ctx context.Context, userID UserID, role Role) error
	HasRole(ctx context.Context, userID UserID, role Role) (bool, error)

	InsertShop(ctx context.Context, s Shop) (Shop, error)
	GetShop(ctx context.Context, id ShopID) (Shop, error)
	ListShops(ctx context.Context) ([]Shop, error)
	SetShopActive(ctx context.Context, id ShopID, active bool) (Shop, error)
}

// Store is the full record store capability.
type Store interface {
	ProductStore
	SaleStore
	PurchaseStore
	AccountStore
	PostingStore
	ClosingStore
	TenantStore
	AdminStore
}
