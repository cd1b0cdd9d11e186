/*
Package core provides the shared model of the shop ledger.

PURPOSE:
  This package contains the entities, identifiers and store capabilities
  shared by every ledger component. Stock, balances, sales, purchases and
  postings are all expressed here; the packages inventory, banking, sales
  and purchasing add the behavior on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: ShopID, ProductID, SaleID, ... (type-safe strings)
  - Product: stock-tracked item or non-stock service
  - Sale / SaleItem: an invoice header and its line items
  - Purchase: a goods receipt that increments stock
  - Account / Posting: a money account and its credit/debit postings

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, quantities are int64
  2. Stable joins: stock is keyed by ProductID, names are display snapshots
  3. Tenancy: every row carries the ShopID it was written under
  4. Versioning: Product and Account carry a Version for compare-and-swap

SEE ALSO:
  - errors.go: error taxonomy
  - store.go: record store capabilities
  - saga.go: compensation log for multi-step writes
*/
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ShopID string
type UserID string
type ProductID string
type SaleID string
type SaleItemID string
type PurchaseID string
type AccountID string
type PostingID string
type CashClosingID string

// =============================================================================
// PRODUCT - Stock-tracked item or service
// =============================================================================

type ProductKind string

const (
	KindProduct ProductKind = "product"
	KindService ProductKind = "service"
)

func (k ProductKind) Valid() bool {
	return k == KindProduct || k == KindService
}

type Product struct {
	ID        ProductID
	ShopID    ShopID
	Name      string
	CostPrice decimal.Decimal
	SalePrice decimal.Decimal
	Stock     int64
	Category  string
	Kind      ProductKind
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TracksStock reports whether the product's quantity is ledger-managed.
// Services always report zero stock.
func (p Product) TracksStock() bool { return p.Kind != KindService }

// =============================================================================
// SALE - Invoice header
// =============================================================================

type PaymentMode string

const (
	PaymentCash PaymentMode = "cash"
	PaymentUPI  PaymentMode = "upi"
	PaymentCard PaymentMode = "card"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentUPI, PaymentCard:
		return true
	}
	return false
}

type BillType string

const (
	BillInvoice BillType = "invoice"
	BillReturn  BillType = "return"
)

func (b BillType) Valid() bool { return b == BillInvoice || b == BillReturn }

type Sale struct {
	ID              SaleID
	ShopID          ShopID
	InvoiceDate     time.Time
	CustomerName    string
	CustomerContact string
	Total           decimal.Decimal
	Paid            decimal.Decimal
	Balance         decimal.Decimal // Total - Paid, never negative
	PaymentMode     PaymentMode
	BillType        BillType
	DueDate         *time.Time
	CreatedAt       time.Time
}

// =============================================================================
// SALE ITEM - One invoice line
// =============================================================================

type LineKind string

const (
	LineProduct   LineKind = "product"
	LineService   LineKind = "service"
	LineRecharge  LineKind = "recharge"
	LineInsurance LineKind = "insurance"
)

func (k LineKind) Valid() bool {
	switch k {
	case LineProduct, LineService, LineRecharge, LineInsurance:
		return true
	}
	return false
}

// AffectsStock reports whether a line of this kind decrements stock.
// Only product lines do; services, recharges and insurance never do.
func (k LineKind) AffectsStock() bool { return k == LineProduct }

// Renewable reports whether lines of this kind expire and come up for renewal.
func (k LineKind) Renewable() bool { return k == LineRecharge || k == LineInsurance }

type SaleItem struct {
	ID          SaleItemID
	ShopID      ShopID
	SaleID      SaleID
	ProductID   ProductID // empty for non-product lines
	ProductName string    // display snapshot at sale time
	Quantity    int64
	Rate        decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal // Quantity * Rate - Discount
	Kind        LineKind

	// Recharge and insurance lines
	ValidFrom *time.Time
	ValidTo   *time.Time
	PolicyRef string

	CreatedAt time.Time
}

// LineTotal computes Quantity * Rate - Discount.
func LineTotal(qty int64, rate, discount decimal.Decimal) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(qty)).Sub(discount)
}

// =============================================================================
// PURCHASE - Goods receipt
// =============================================================================

type Purchase struct {
	ID           PurchaseID
	ShopID       ShopID
	Date         time.Time
	InvoiceNo    string
	SupplierName string
	ProductID    ProductID
	ItemName     string // display snapshot
	Quantity     int64
	UnitCost     decimal.Decimal
	Total        decimal.Decimal
	CreatedAt    time.Time
}

// =============================================================================
// ACCOUNT & POSTING - Money accounts and their credits/debits
// =============================================================================

type AccountType string

const (
	AccountBank        AccountType = "bank"
	AccountWallet      AccountType = "wallet"
	AccountMobileMoney AccountType = "mobile_money"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountWallet, AccountMobileMoney:
		return true
	}
	return false
}

type Account struct {
	ID             AccountID
	ShopID         ShopID
	Name           string
	Provider       string
	Type           AccountType
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal // derived cache, mutated with each posting
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Direction string

const (
	Credit Direction = "credit" // increases balance
	Debit  Direction = "debit"  // decreases balance
)

func (d Direction) Valid() bool { return d == Credit || d == Debit }

// Signed returns amount with the sign this direction applies to a balance.
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == Debit {
		return amount.Neg()
	}
	return amount
}

// Opposite returns the direction that undoes d.
func (d Direction) Opposite() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

type Posting struct {
	ID        PostingID
	ShopID    ShopID
	AccountID AccountID
	Direction Direction
	Amount    decimal.Decimal // always > 0
	PostedAt  time.Time
	Memo      string
	Reference string
	CreatedAt time.Time
}

// =============================================================================
// CASH CLOSING - End of day till count
// =============================================================================

// CashClosing records one day's till count. Difference is
// PhysicalCash - (OpeningCash + SystemCash): negative means cash is short.
type CashClosing struct {
	ID           CashClosingID
	ShopID       ShopID
	Date         time.Time // day, midnight UTC
	OpeningCash  decimal.Decimal
	SystemCash   decimal.Decimal
	PhysicalCash decimal.Decimal
	Difference   decimal.Decimal
	CreatedAt    time.Time
}

// =============================================================================
// TENANCY & ADMINISTRATION
// =============================================================================

type Shop struct {
	ID        ShopID
	Name      string
	OwnerID   UserID
	Active    bool
	CreatedAt time.Time
}

type User struct {
	ID        UserID
	Email     string
	CreatedAt time.Time
}

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleShopOwner  Role = "shop_owner"
)
