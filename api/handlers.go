/*
handlers.go - HTTP API handlers for the shop ledger

PURPOSE:
  Exposes the ledger operations via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the ledger
  packages. Every handler below runs with a shop bound to the request
  context (see auth.go).

ENDPOINTS:
  Products:
    GET    /api/products                 List products (?kind=)
    POST   /api/products                 Create product or service
    GET    /api/products/low-stock       Products below threshold (?threshold=)
    POST   /api/products/{id}/adjust     Manual stock adjustment

  Sales:
    POST   /api/sales                    Create sale (header, items, stock)
    GET    /api/sales                    List sales (?from=&to=&contact=&mode=)
    GET    /api/sales/{id}               Sale with its items
    DELETE /api/sales/{id}               Discard a sale, returning its stock

  Purchases:
    POST   /api/purchases                Receive goods
    GET    /api/purchases                List purchases (?supplier=)

  Accounts:
    GET    /api/accounts                 List accounts
    POST   /api/accounts                 Open account
    GET    /api/accounts/{id}/postings   Posting history
    POST   /api/accounts/{id}/postings   Credit or debit
    DELETE /api/postings/{id}            Delete posting, reversing it

  Reports:
    GET    /api/reports/summary          Sales summary
    GET    /api/reports/customer-dues    Dues by customer (?contact=)
    GET    /api/reports/supplier-totals  Purchases by supplier
    GET    /api/reports/system-cash      Cash sales of a day (?date=)
    GET    /api/reports/renewals         Recharge/insurance expiring soon (?days=)

  Cash closing:
    GET    /api/cash-closings            Past closings
    POST   /api/cash-closings            Close a day's till

  Audit:
    GET    /api/audit/balances           Cached vs derived account balances

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, no shop bound
  - 403: Forbidden
  - 404: Resource not found
  - 409: Conflict (duplicate, concurrent modification)
  - 422: Partial completion; the body lists completed and failed steps
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: JWT and tenant binding
  - admin.go: Admin side-channel
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/shop-ledger/banking"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/inventory"
	"github.com/warp/shop-ledger/logger"
	"github.com/warp/shop-ledger/purchasing"
	"github.com/warp/shop-ledger/reports"
	"github.com/warp/shop-ledger/sales"
	"github.com/warp/shop-ledger/tenant"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    core.Store
	Resolver *tenant.Resolver

	Stock     *inventory.StockLedger
	Sales     *sales.Orchestrator
	Purchases *purchasing.ReceiptHandler
	Postings  *banking.PostingService
	Reports   *reports.Reporter
	Auditor   *BalanceAuditor

	secret []byte
	log    zerolog.Logger
}

// Options configures NewHandler.
type Options struct {
	JWTSecret   string
	MaxAttempts int // compare-and-swap attempts for both ledgers
	Logger      zerolog.Logger
}

// NewHandler wires the ledgers over store.
func NewHandler(store core.Store, opts Options) *Handler {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = inventory.DefaultMaxAttempts
	}
	log := opts.Logger

	stock := inventory.NewStockLedger(store,
		inventory.WithMaxAttempts(maxAttempts),
		inventory.WithLogger(log.With().Str("component", "stock").Logger()))
	balances := banking.NewBalanceLedger(store,
		banking.WithMaxAttempts(maxAttempts),
		banking.WithLogger(log.With().Str("component", "balance").Logger()))

	return &Handler{
		Store:     store,
		Resolver:  tenant.NewResolver(store),
		Stock:     stock,
		Sales:     sales.NewOrchestrator(store, stock, log.With().Str("component", "sales").Logger()),
		Purchases: purchasing.NewReceiptHandler(store, stock, log.With().Str("component", "purchasing").Logger()),
		Postings:  banking.NewPostingService(store, balances, log.With().Str("component", "postings").Logger()),
		Reports:   reports.NewReporter(store),
		Auditor:   NewBalanceAuditor(store, log.With().Str("component", "audit").Logger()),
		secret:    []byte(opts.JWTSecret),
		log:       log,
	}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns the shop's catalog.
// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	shopID, _ := tenant.ShopFrom(r.Context())
	filter := core.ProductFilter{Kind: core.ProductKind(r.URL.Query().Get("kind"))}

	products, err := h.Store.ListProducts(r.Context(), shopID, filter)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list products", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

// CreateProduct adds a product or service to the catalog.
// POST /api/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	shopID, _ := tenant.ShopFrom(r.Context())

	product, err := newProduct(shopID, req)
	if err != nil {
		h.writeDomainError(w, r, "Invalid product", err)
		return
	}
	created, err := h.Store.InsertProduct(r.Context(), product)
	if err != nil {
		h.writeDomainError(w, r, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(created))
}

func newProduct(shopID core.ShopID, req CreateProductRequest) (core.Product, error) {
	kind := core.ProductKind(req.Kind)
	if kind == "" {
		kind = core.KindProduct
	}
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return core.Product{}, core.Invalid("name", "is required")
	case !kind.Valid():
		return core.Product{}, core.Invalid("kind", "must be product or service, got %q", req.Kind)
	case req.Stock < 0:
		return core.Product{}, core.Invalid("stock", "must not be negative")
	case req.CostPrice.IsNegative():
		return core.Product{}, core.Invalid("cost_price", "must not be negative")
	case req.SalePrice.IsNegative():
		return core.Product{}, core.Invalid("sale_price", "must not be negative")
	}
	p := core.Product{
		ShopID:    shopID,
		Name:      name,
		Kind:      kind,
		Category:  strings.TrimSpace(req.Category),
		CostPrice: req.CostPrice,
		SalePrice: req.SalePrice,
		Stock:     req.Stock,
	}
	if !p.TracksStock() {
		p.Stock = 0
	}
	return p, nil
}

// LowStock lists stock-tracked products below a threshold.
// GET /api/products/low-stock?threshold=5
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	var threshold int64
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid threshold", err)
			return
		}
		threshold = n
	}
	products, err := h.Reports.LowStock(r.Context(), threshold)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list low stock", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

// AdjustStock applies a signed manual correction.
// POST /api/products/{id}/adjust
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id := core.ProductID(chi.URLParam(r, "id"))
	var req AdjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := h.ownedProduct(r, id); err != nil {
		h.writeDomainError(w, r, "Product not found", err)
		return
	}

	change, err := h.Stock.Adjust(r.Context(), id, req.Delta)
	if err != nil {
		h.writeDomainError(w, r, "Failed to adjust stock", err)
		return
	}
	writeJSON(w, http.StatusOK, toStockChangeDTO(change))
}

// ownedProduct loads a product and hides those of other shops.
func (h *Handler) ownedProduct(r *http.Request, id core.ProductID) (core.Product, error) {
	shopID, err := tenant.ShopFrom(r.Context())
	if err != nil {
		return core.Product{}, err
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		return core.Product{}, err
	}
	if p.ShopID != shopID {
		return core.Product{}, core.NotFound("product", id)
	}
	return p, nil
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// CreateSale runs the sale orchestrator.
// POST /api/sales
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := toSaleInput(req)
	if err != nil {
		h.writeDomainError(w, r, "Invalid sale", err)
		return
	}

	result, err := h.Sales.CreateSale(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, "Failed to create sale", err)
		return
	}

	resp := CreateSaleResponse{
		Sale:         toSaleDTO(result.Sale, result.Items),
		StockChanges: make([]StockChangeDTO, len(result.StockChanges)),
	}
	for i, c := range result.StockChanges {
		resp.StockChanges[i] = toStockChangeDTO(c)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func toSaleInput(req CreateSaleRequest) (sales.SaleInput, error) {
	in := sales.SaleInput{
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		Paid:            req.Paid,
		PaymentMode:     core.PaymentMode(req.PaymentMode),
		BillType:        core.BillType(req.BillType),
	}
	var err error
	if in.InvoiceDate, err = parseTimeField("invoice_date", req.InvoiceDate); err != nil {
		return in, err
	}
	if in.DueDate, err = parseDateField("due_date", req.DueDate); err != nil {
		return in, err
	}
	for i, line := range req.Items {
		li := sales.LineInput{
			ProductID: core.ProductID(line.ProductID),
			Name:      line.Name,
			Quantity:  line.Quantity,
			Rate:      line.Rate,
			Discount:  line.Discount,
			Kind:      core.LineKind(line.Kind),
			PolicyRef: line.PolicyRef,
		}
		field := "items[" + strconv.Itoa(i) + "]"
		if li.ValidFrom, err = parseDateField(field+".valid_from", line.ValidFrom); err != nil {
			return in, err
		}
		if li.ValidTo, err = parseDateField(field+".valid_to", line.ValidTo); err != nil {
			return in, err
		}
		in.Items = append(in.Items, li)
	}
	return in, nil
}

// ListSales returns the shop's sales, newest first.
// GET /api/sales?from=2025-03-01&to=2025-03-31&contact=98450&mode=cash
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.SaleFilter{
		CustomerContact: q.Get("contact"),
		PaymentMode:     core.PaymentMode(q.Get("mode")),
	}
	from, err := parseDateField("from", q.Get("from"))
	if err != nil {
		h.writeDomainError(w, r, "Invalid filter", err)
		return
	}
	to, err := parseDateField("to", q.Get("to"))
	if err != nil {
		h.writeDomainError(w, r, "Invalid filter", err)
		return
	}
	filter.From = from
	if to != nil {
		// inclusive end date
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}

	list, err := h.Sales.ListSales(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list sales", err)
		return
	}
	dtos := make([]SaleDTO, len(list))
	for i, s := range list {
		dtos[i] = toSaleDTO(s, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSale returns one sale with its items.
// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Sales.GetSale(r.Context(), core.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Sale not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale.Sale, sale.Items))
}

// DiscardSale deletes a sale and gives its stock back. This is how a
// caller drops the header reported by a 422 from CreateSale.
// DELETE /api/sales/{id}
func (h *Handler) DiscardSale(w http.ResponseWriter, r *http.Request) {
	if err := h.Sales.DiscardSale(r.Context(), core.SaleID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, r, "Failed to discard sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// ReceivePurchase records goods received; stock follows best-effort.
// POST /api/purchases
func (h *Handler) ReceivePurchase(w http.ResponseWriter, r *http.Request) {
	var req ReceivePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseTimeField("date", req.Date)
	if err != nil {
		h.writeDomainError(w, r, "Invalid purchase", err)
		return
	}

	receipt, err := h.Purchases.ReceivePurchase(r.Context(), purchasing.PurchaseInput{
		Date:         date,
		InvoiceNo:    req.InvoiceNo,
		SupplierName: req.SupplierName,
		ProductID:    core.ProductID(req.ProductID),
		ItemName:     req.ItemName,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to receive purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptDTO(receipt))
}

// ListPurchases returns the shop's purchases, newest first.
// GET /api/purchases?supplier=Acme
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	list, err := h.Purchases.ListPurchases(r.Context(), core.PurchaseFilter{
		SupplierName: r.URL.Query().Get("supplier"),
		ProductID:    core.ProductID(r.URL.Query().Get("product_id")),
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to list purchases", err)
		return
	}
	dtos := make([]PurchaseDTO, len(list))
	for i, p := range list {
		dtos[i] = toPurchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ACCOUNT & POSTING HANDLERS
// =============================================================================

// ListAccounts returns the shop's money accounts.
// GET /api/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Postings.ListAccounts(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// OpenAccount creates a money account.
// POST /api/accounts
func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	acct, err := h.Postings.OpenAccount(r.Context(), banking.NewAccount{
		Name:           req.Name,
		Provider:       req.Provider,
		Type:           core.AccountType(req.Type),
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to open account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

// ListPostings returns an account's postings, newest first.
// GET /api/accounts/{id}/postings
func (h *Handler) ListPostings(w http.ResponseWriter, r *http.Request) {
	postings, err := h.Postings.ListPostings(r.Context(), core.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, "Failed to list postings", err)
		return
	}
	dtos := make([]PostingDTO, len(postings))
	for i, p := range postings {
		dtos[i] = toPostingDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePosting credits or debits an account.
// POST /api/accounts/{id}/postings
func (h *Handler) CreatePosting(w http.ResponseWriter, r *http.Request) {
	var req CreatePostingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	postedAt, err := parseTimeField("posted_at", req.PostedAt)
	if err != nil {
		h.writeDomainError(w, r, "Invalid posting", err)
		return
	}

	posting, err := h.Postings.CreatePosting(r.Context(), toPostingInput(core.AccountID(chi.URLParam(r, "id")), req, postedAt))
	if err != nil {
		h.writeDomainError(w, r, "Failed to create posting", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostingDTO(posting))
}

// DeletePosting removes a posting and reverses its balance effect.
// DELETE /api/postings/{id}
func (h *Handler) DeletePosting(w http.ResponseWriter, r *http.Request) {
	if err := h.Postings.DeletePosting(r.Context(), core.PostingID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, r, "Failed to delete posting", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// Summary returns the sales summary.
// GET /api/reports/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Reports.Summary(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

// CustomerDues lists dues by customer, or one customer's due with ?contact=.
// GET /api/reports/customer-dues
func (h *Handler) CustomerDues(w http.ResponseWriter, r *http.Request) {
	if contact := r.URL.Query().Get("contact"); contact != "" {
		due, err := h.Reports.CustomerDue(r.Context(), contact)
		if err != nil {
			h.writeDomainError(w, r, "Failed to compute due", err)
			return
		}
		writeJSON(w, http.StatusOK, CustomerDueDTO{CustomerContact: contact, Due: due.String()})
		return
	}

	dues, err := h.Reports.CustomerDues(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute dues", err)
		return
	}
	dtos := make([]CustomerDueDTO, len(dues))
	for i, d := range dues {
		dtos[i] = CustomerDueDTO{CustomerName: d.CustomerName, CustomerContact: d.CustomerContact, Due: d.Due.String(), Sales: d.Sales}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SupplierTotals lists purchase totals by supplier.
// GET /api/reports/supplier-totals
func (h *Handler) SupplierTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Reports.SupplierTotals(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute supplier totals", err)
		return
	}
	dtos := make([]SupplierTotalDTO, len(totals))
	for i, t := range totals {
		dtos[i] = SupplierTotalDTO{SupplierName: t.SupplierName, Total: t.Total.String(), Purchases: t.Purchases}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SystemCash returns the cash the till should hold for a day.
// GET /api/reports/system-cash?date=2025-03-10
func (h *Handler) SystemCash(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := parseDateField("date", v)
		if err != nil {
			h.writeDomainError(w, r, "Invalid date", err)
			return
		}
		day = *d
	}
	cash, err := h.Reports.SystemCash(r.Context(), day)
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute system cash", err)
		return
	}
	writeJSON(w, http.StatusOK, SystemCashDTO{Date: day.Format(dateLayout), Cash: cash.String()})
}

// Renewals lists recharge and insurance lines expiring soon.
// GET /api/reports/renewals?days=7
func (h *Handler) Renewals(w http.ResponseWriter, r *http.Request) {
	var days int
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid days", core.Invalid("days", "must be a non-negative integer, got %q", v))
			return
		}
		days = n
	}
	list, err := h.Reports.Renewals(r.Context(), days)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list renewals", err)
		return
	}
	writeJSON(w, http.StatusOK, toRenewalDTOs(list))
}

// =============================================================================
// CASH CLOSING HANDLERS
// =============================================================================

// CloseCash records a day's till count against its system cash.
// POST /api/cash-closings
func (h *Handler) CloseCash(w http.ResponseWriter, r *http.Request) {
	var req CloseCashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := parseDateField("date", req.Date)
	if err != nil {
		h.writeDomainError(w, r, "Invalid date", err)
		return
	}
	in := reports.CashClosingInput{OpeningCash: req.OpeningCash, PhysicalCash: req.PhysicalCash}
	if day != nil {
		in.Date = *day
	}

	closing, err := h.Reports.CloseCash(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, "Failed to close cash", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCashClosingDTO(closing))
}

// ListCashClosings returns past closings, newest day first.
// GET /api/cash-closings
func (h *Handler) ListCashClosings(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reports.CashClosings(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list cash closings", err)
		return
	}
	out := make([]CashClosingDTO, len(list))
	for i, c := range list {
		out[i] = toCashClosingDTO(c)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// AuditBalances compares cached and derived balances of the shop's accounts.
// GET /api/audit/balances
func (h *Handler) AuditBalances(w http.ResponseWriter, r *http.Request) {
	shopID, _ := tenant.ShopFrom(r.Context())
	report := h.Auditor.AuditShop(r.Context(), shopID)
	if report.Err != nil {
		h.writeDomainError(w, r, "Failed to audit balances", report.Err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a ledger error onto its HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var partial *core.PartialCompletionError
	if errors.As(err, &partial) {
		log := logger.FromContext(r.Context(), h.log)
		log.Error().Err(err).
			Str("operation", partial.Operation).
			Str("step", string(partial.FailedStep)).
			Str("entity_id", partial.EntityID).
			Msg("partial completion")
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   message,
			Code:    "partial_completion",
			Details: err.Error(),
			Partial: toPartialDTO(partial),
		})
		return
	}

	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log := logger.FromContext(r.Context(), h.log)
		log.Error().Err(err).Str("path", r.URL.Path).Msg(message)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNoShop):
		return http.StatusBadRequest, "no_shop"
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case core.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case core.IsConflict(err):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func toProductDTOs(products []core.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	return dtos
}

// parseDateField parses an optional YYYY-MM-DD value.
func parseDateField(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, core.Invalid(field, "must be YYYY-MM-DD, got %q", v)
	}
	return &t, nil
}

// parseTimeField accepts RFC 3339 or YYYY-MM-DD; empty means "now".
func parseTimeField(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := parseDateField(field, v)
	if err != nil {
		return time.Time{}, err
	}
	return *d, nil
}
