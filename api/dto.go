/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain types from the wire contract. Money travels as
  decimal strings ("120.50"), never as floats.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done by the ledger packages, not in DTOs. DTOs are pure
  data carriers; handlers only parse formats (dates, decimals).

SEE ALSO:
  - handlers.go: Uses these types
  - admin.go: Admin side-channel request/response
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/banking"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/inventory"
	"github.com/warp/shop-ledger/purchasing"
	"github.com/warp/shop-ledger/reports"
)

const dateLayout = "2006-01-02"

// =============================================================================
// PRODUCTS
// =============================================================================

type ProductDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Category  string `json:"category,omitempty"`
	CostPrice string `json:"cost_price"`
	SalePrice string `json:"sale_price"`
	Stock     int64  `json:"stock"`
	Version   int64  `json:"version"`
}

type CreateProductRequest struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Category  string          `json:"category"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Stock     int64           `json:"stock"`
}

type AdjustStockRequest struct {
	Delta int64 `json:"delta"`
}

type StockChangeDTO struct {
	ProductID string `json:"product_id"`
	Before    int64  `json:"before"`
	After     int64  `json:"after"`
	Skipped   bool   `json:"skipped,omitempty"`
}

func toProductDTO(p core.Product) ProductDTO {
	return ProductDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Kind:      string(p.Kind),
		Category:  p.Category,
		CostPrice: p.CostPrice.String(),
		SalePrice: p.SalePrice.String(),
		Stock:     p.Stock,
		Version:   p.Version,
	}
}

func toStockChangeDTO(c inventory.StockChange) StockChangeDTO {
	return StockChangeDTO{ProductID: string(c.ProductID), Before: c.Before, After: c.After, Skipped: c.Skipped}
}

// =============================================================================
// SALES
// =============================================================================

type SaleLineRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Rate      decimal.Decimal `json:"rate"`
	Discount  decimal.Decimal `json:"discount"`
	Kind      string          `json:"kind"`
	ValidFrom string          `json:"valid_from,omitempty"`
	ValidTo   string          `json:"valid_to,omitempty"`
	PolicyRef string          `json:"policy_ref,omitempty"`
}

type CreateSaleRequest struct {
	InvoiceDate     string            `json:"invoice_date,omitempty"`
	CustomerName    string            `json:"customer_name"`
	CustomerContact string            `json:"customer_contact"`
	Paid            decimal.Decimal   `json:"paid"`
	PaymentMode     string            `json:"payment_mode"`
	BillType        string            `json:"bill_type"`
	DueDate         string            `json:"due_date,omitempty"`
	Items           []SaleLineRequest `json:"items"`
}

type SaleDTO struct {
	ID              string        `json:"id"`
	InvoiceDate     string        `json:"invoice_date"`
	CustomerName    string        `json:"customer_name,omitempty"`
	CustomerContact string        `json:"customer_contact,omitempty"`
	Total           string        `json:"total"`
	Paid            string        `json:"paid"`
	Balance         string        `json:"balance"`
	PaymentMode     string        `json:"payment_mode"`
	BillType        string        `json:"bill_type"`
	DueDate         *string       `json:"due_date,omitempty"`
	Items           []SaleItemDTO `json:"items,omitempty"`
}

type SaleItemDTO struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id,omitempty"`
	ProductName string  `json:"product_name"`
	Kind        string  `json:"kind"`
	Quantity    int64   `json:"quantity"`
	Rate        string  `json:"rate"`
	Discount    string  `json:"discount"`
	Total       string  `json:"total"`
	ValidFrom   *string `json:"valid_from,omitempty"`
	ValidTo     *string `json:"valid_to,omitempty"`
	PolicyRef   string  `json:"policy_ref,omitempty"`
}

type CreateSaleResponse struct {
	Sale         SaleDTO          `json:"sale"`
	StockChanges []StockChangeDTO `json:"stock_changes"`
}

func toSaleDTO(s core.Sale, items []core.SaleItem) SaleDTO {
	dto := SaleDTO{
		ID:              string(s.ID),
		InvoiceDate:     s.InvoiceDate.Format(time.RFC3339),
		CustomerName:    s.CustomerName,
		CustomerContact: s.CustomerContact,
		Total:           s.Total.String(),
		Paid:            s.Paid.String(),
		Balance:         s.Balance.String(),
		PaymentMode:     string(s.PaymentMode),
		BillType:        string(s.BillType),
		DueDate:         formatDate(s.DueDate),
	}
	for _, it := range items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ID:          string(it.ID),
			ProductID:   string(it.ProductID),
			ProductName: it.ProductName,
			Kind:        string(it.Kind),
			Quantity:    it.Quantity,
			Rate:        it.Rate.String(),
			Discount:    it.Discount.String(),
			Total:       it.Total.String(),
			ValidFrom:   formatDate(it.ValidFrom),
			ValidTo:     formatDate(it.ValidTo),
			PolicyRef:   it.PolicyRef,
		})
	}
	return dto
}

// =============================================================================
// PURCHASES
// =============================================================================

type ReceivePurchaseRequest struct {
	Date         string          `json:"date,omitempty"`
	InvoiceNo    string          `json:"invoice_no"`
	SupplierName string          `json:"supplier_name"`
	ProductID    string          `json:"product_id"`
	ItemName     string          `json:"item_name"`
	Quantity     int64           `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

type PurchaseDTO struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	InvoiceNo    string `json:"invoice_no,omitempty"`
	SupplierName string `json:"supplier_name"`
	ProductID    string `json:"product_id"`
	ItemName     string `json:"item_name"`
	Quantity     int64  `json:"quantity"`
	UnitCost     string `json:"unit_cost"`
	Total        string `json:"total"`
}

// ReceiptDTO reports the purchase and whether stock followed it.
type ReceiptDTO struct {
	Purchase     PurchaseDTO     `json:"purchase"`
	StockUpdated bool            `json:"stock_updated"`
	StockChange  *StockChangeDTO `json:"stock_change,omitempty"`
	StockError   string          `json:"stock_error,omitempty"`
}

func toPurchaseDTO(p core.Purchase) PurchaseDTO {
	return PurchaseDTO{
		ID:           string(p.ID),
		Date:         p.Date.Format(time.RFC3339),
		InvoiceNo:    p.InvoiceNo,
		SupplierName: p.SupplierName,
		ProductID:    string(p.ProductID),
		ItemName:     p.ItemName,
		Quantity:     p.Quantity,
		UnitCost:     p.UnitCost.String(),
		Total:        p.Total.String(),
	}
}

func toReceiptDTO(r *purchasing.Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		Purchase:     toPurchaseDTO(r.Purchase),
		StockUpdated: r.StockUpdated,
		StockError:   r.StockError,
	}
	if r.StockUpdated {
		c := toStockChangeDTO(r.StockChange)
		dto.StockChange = &c
	}
	return dto
}

// =============================================================================
// ACCOUNTS & POSTINGS
// =============================================================================

type OpenAccountRequest struct {
	Name           string          `json:"name"`
	Provider       string          `json:"provider"`
	Type           string          `json:"type"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type AccountDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Provider       string `json:"provider,omitempty"`
	Type           string `json:"type"`
	OpeningBalance string `json:"opening_balance"`
	Balance        string `json:"balance"`
}

type CreatePostingRequest struct {
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	PostedAt  string          `json:"posted_at,omitempty"`
	Memo      string          `json:"memo"`
	Reference string          `json:"reference"`
}

type PostingDTO struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
	PostedAt  string `json:"posted_at"`
	Memo      string `json:"memo,omitempty"`
	Reference string `json:"reference,omitempty"`
}

func toAccountDTO(a core.Account) AccountDTO {
	return AccountDTO{
		ID:             string(a.ID),
		Name:           a.Name,
		Provider:       a.Provider,
		Type:           string(a.Type),
		OpeningBalance: a.OpeningBalance.String(),
		Balance:        a.Balance.String(),
	}
}

func toPostingDTO(p core.Posting) PostingDTO {
	return PostingDTO{
		ID:        string(p.ID),
		AccountID: string(p.AccountID),
		Direction: string(p.Direction),
		Amount:    p.Amount.String(),
		PostedAt:  p.PostedAt.Format(time.RFC3339),
		Memo:      p.Memo,
		Reference: p.Reference,
	}
}

func toPostingInput(accountID core.AccountID, req CreatePostingRequest, postedAt time.Time) banking.NewPosting {
	return banking.NewPosting{
		AccountID: accountID,
		Direction: core.Direction(req.Direction),
		Amount:    req.Amount,
		PostedAt:  postedAt,
		Memo:      req.Memo,
		Reference: req.Reference,
	}
}

// =============================================================================
// REPORTS
// =============================================================================

type SummaryDTO struct {
	SaleCount       int    `json:"sale_count"`
	TotalSales      string `json:"total_sales"`
	TodayCollection string `json:"today_collection"`
	TotalDues       string `json:"total_dues"`
}

type CustomerDueDTO struct {
	CustomerName    string `json:"customer_name"`
	CustomerContact string `json:"customer_contact"`
	Due             string `json:"due"`
	Sales           int    `json:"sales"`
}

type SupplierTotalDTO struct {
	SupplierName string `json:"supplier_name"`
	Total        string `json:"total"`
	Purchases    int    `json:"purchases"`
}

type SystemCashDTO struct {
	Date string `json:"date"`
	Cash string `json:"cash"`
}

type RenewalDTO struct {
	SaleID          string `json:"sale_id"`
	ItemID          string `json:"item_id"`
	ProductName     string `json:"product_name"`
	Kind            string `json:"kind"`
	ValidTo         string `json:"valid_to"`
	PolicyRef       string `json:"policy_ref,omitempty"`
	CustomerName    string `json:"customer_name"`
	CustomerContact string `json:"customer_contact,omitempty"`
	DaysLeft        int    `json:"days_left"`
}

func toRenewalDTOs(list []reports.Renewal) []RenewalDTO {
	out := make([]RenewalDTO, len(list))
	for i, rn := range list {
		out[i] = RenewalDTO{
			SaleID:          string(rn.Item.SaleID),
			ItemID:          string(rn.Item.ID),
			ProductName:     rn.Item.ProductName,
			Kind:            string(rn.Item.Kind),
			ValidTo:         *formatDate(rn.Item.ValidTo),
			PolicyRef:       rn.Item.PolicyRef,
			CustomerName:    rn.CustomerName,
			CustomerContact: rn.CustomerContact,
			DaysLeft:        rn.DaysLeft,
		}
	}
	return out
}

func toSummaryDTO(s reports.Summary) SummaryDTO {
	return SummaryDTO{
		SaleCount:       s.SaleCount,
		TotalSales:      s.TotalSales.String(),
		TodayCollection: s.TodayCollection.String(),
		TotalDues:       s.TotalDues.String(),
	}
}

// =============================================================================
// CASH CLOSING DTOs
// =============================================================================

type CloseCashRequest struct {
	Date         string          `json:"date,omitempty"` // YYYY-MM-DD, empty = today
	OpeningCash  decimal.Decimal `json:"opening_cash"`
	PhysicalCash decimal.Decimal `json:"physical_cash"`
}

type CashClosingDTO struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	OpeningCash  string `json:"opening_cash"`
	SystemCash   string `json:"system_cash"`
	PhysicalCash string `json:"physical_cash"`
	Difference   string `json:"difference"`
	CreatedAt    string `json:"created_at"`
}

func toCashClosingDTO(c core.CashClosing) CashClosingDTO {
	return CashClosingDTO{
		ID:           string(c.ID),
		Date:         c.Date.Format(dateLayout),
		OpeningCash:  c.OpeningCash.String(),
		SystemCash:   c.SystemCash.String(),
		PhysicalCash: c.PhysicalCash.String(),
		Difference:   c.Difference.String(),
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// AUDIT
// =============================================================================

type DriftDTO struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Cached    string `json:"cached"`
	Derived   string `json:"derived"`
}

type AuditDTO struct {
	RanAt    string     `json:"ran_at,omitempty"`
	Accounts int        `json:"accounts"`
	Drift    []DriftDTO `json:"drift"`
	Error    string     `json:"error,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details any         `json:"details,omitempty"`
	Partial *PartialDTO `json:"partial,omitempty"`
}

// PartialDTO describes a multi-step operation that stopped half way.
type PartialDTO struct {
	Operation  string   `json:"operation"`
	EntityID   string   `json:"entity_id"`
	FailedStep string   `json:"failed_step"`
	Completed  []string `json:"completed"`
}

func toPartialDTO(e *core.PartialCompletionError) *PartialDTO {
	done := make([]string, len(e.Completed))
	for i, s := range e.Completed {
		done[i] = string(s)
	}
	return &PartialDTO{
		Operation:  e.Operation,
		EntityID:   e.EntityID,
		FailedStep: string(e.FailedStep),
		Completed:  done,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
