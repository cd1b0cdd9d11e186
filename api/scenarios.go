/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Populates the caller's shop with realistic data. Scenarios go through
	the same ledger operations as real requests, so stock and balances
	move exactly as they would at the counter.

AVAILABLE SCENARIOS:

	mobile-shop:      Catalog, a goods receipt and a few invoices
	dues-and-wallets: Credit sales with dues plus bank and wallet postings

USAGE VIA API:

	POST /api/dev/seed
	{"scenario_id": "mobile-shop"}

NOTE:

	Product names are unique per shop, so loading a scenario twice into
	the same shop fails with 409.

SEE ALSO:
  - handlers.go: the handlers the scenarios mirror
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/banking"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/purchasing"
	"github.com/warp/shop-ledger/sales"
	"github.com/warp/shop-ledger/tenant"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "mobile-shop",
		Name:        "Mobile Shop",
		Description: "Accessories catalog, one goods receipt and three paid invoices",
	},
	{
		ID:          "dues-and-wallets",
		Name:        "Dues & Wallets",
		Description: "Credit sales leaving customer dues, bank and wallet postings",
	},
}

// ListScenarios returns available scenarios.
// GET /api/dev/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the bound shop.
// POST /api/dev/seed
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "mobile-shop":
		err = h.loadMobileShopScenario(r.Context())
	case "dues-and-wallets":
		err = h.loadDuesAndWalletsScenario(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	if err != nil {
		h.writeDomainError(w, r, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedCatalog inserts products by name and returns their IDs.
func (h *Handler) seedCatalog(ctx context.Context, products []core.Product) (map[string]core.ProductID, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]core.ProductID, len(products))
	for _, p := range products {
		p.ShopID = shopID
		created, err := h.Store.InsertProduct(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("seed product %q: %w", p.Name, err)
		}
		ids[p.Name] = created.ID
	}
	return ids, nil
}

func (h *Handler) loadMobileShopScenario(ctx context.Context) error {
	ids, err := h.seedCatalog(ctx, []core.Product{
		{Name: "USB-C Cable", Kind: core.KindProduct, Category: "Cables", CostPrice: mustDecimal("60"), SalePrice: mustDecimal("150"), Stock: 25},
		{Name: "Tempered Glass", Kind: core.KindProduct, Category: "Screen guards", CostPrice: mustDecimal("25"), SalePrice: mustDecimal("99"), Stock: 40},
		{Name: "20W Charger", Kind: core.KindProduct, Category: "Chargers", CostPrice: mustDecimal("350"), SalePrice: mustDecimal("699"), Stock: 3},
		{Name: "Screen Repair", Kind: core.KindService, Category: "Repairs", SalePrice: mustDecimal("1200")},
	})
	if err != nil {
		return err
	}

	if _, err := h.Purchases.ReceivePurchase(ctx, purchasing.PurchaseInput{
		InvoiceNo:    "AD-1042",
		SupplierName: "Acme Distributors",
		ProductID:    ids["20W Charger"],
		ItemName:     "20W Charger",
		Quantity:     10,
		UnitCost:     mustDecimal("340"),
	}); err != nil {
		return err
	}

	today := time.Now().UTC()
	invoices := []sales.SaleInput{
		{
			InvoiceDate:  today.Add(-3 * time.Hour),
			CustomerName: "Walk-in",
			Paid:         mustDecimal("399"),
			Items: []sales.LineInput{
				{ProductID: ids["USB-C Cable"], Name: "USB-C Cable", Quantity: 2, Rate: mustDecimal("150")},
				{ProductID: ids["Tempered Glass"], Name: "Tempered Glass", Quantity: 1, Rate: mustDecimal("99")},
			},
		},
		{
			InvoiceDate:     today.Add(-2 * time.Hour),
			CustomerName:    "Meera",
			CustomerContact: "9845012345",
			Paid:            mustDecimal("1849"),
			PaymentMode:     core.PaymentUPI,
			Items: []sales.LineInput{
				{ProductID: ids["Screen Repair"], Name: "Screen Repair", Quantity: 1, Rate: mustDecimal("1200"), Kind: core.LineService},
				{ProductID: ids["20W Charger"], Name: "20W Charger", Quantity: 1, Rate: mustDecimal("699"), Discount: mustDecimal("50")},
			},
		},
		{
			InvoiceDate:  today.Add(-1 * time.Hour),
			CustomerName: "Walk-in",
			Paid:         mustDecimal("349"),
			PaymentMode:  core.PaymentCard,
			Items: []sales.LineInput{
				{Name: "Prepaid recharge 349", Quantity: 1, Rate: mustDecimal("349"), Kind: core.LineRecharge},
			},
		},
	}
	for _, in := range invoices {
		if _, err := h.Sales.CreateSale(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadDuesAndWalletsScenario(ctx context.Context) error {
	ids, err := h.seedCatalog(ctx, []core.Product{
		{Name: "Bluetooth Earbuds", Kind: core.KindProduct, Category: "Audio", CostPrice: mustDecimal("900"), SalePrice: mustDecimal("1499"), Stock: 8},
		{Name: "Phone Case", Kind: core.KindProduct, Category: "Cases", CostPrice: mustDecimal("80"), SalePrice: mustDecimal("249"), Stock: 30},
	})
	if err != nil {
		return err
	}

	due := time.Now().UTC().AddDate(0, 0, 14)
	credit := []sales.SaleInput{
		{
			CustomerName:    "Ravi",
			CustomerContact: "9900011122",
			Paid:            mustDecimal("500"),
			DueDate:         &due,
			Items:           []sales.LineInput{{ProductID: ids["Bluetooth Earbuds"], Name: "Bluetooth Earbuds", Quantity: 1, Rate: mustDecimal("1499")}},
		},
		{
			CustomerName:    "Ravi",
			CustomerContact: "9900011122",
			Paid:            mustDecimal("0"),
			DueDate:         &due,
			Items:           []sales.LineInput{{ProductID: ids["Phone Case"], Name: "Phone Case", Quantity: 2, Rate: mustDecimal("249")}},
		},
	}
	for _, in := range credit {
		if _, err := h.Sales.CreateSale(ctx, in); err != nil {
			return err
		}
	}

	bank, err := h.Postings.OpenAccount(ctx, banking.NewAccount{Name: "Current Account", Provider: "State Bank", Type: core.AccountBank, OpeningBalance: mustDecimal("25000")})
	if err != nil {
		return err
	}
	wallet, err := h.Postings.OpenAccount(ctx, banking.NewAccount{Name: "Shop Wallet", Provider: "PayWallet", Type: core.AccountWallet, OpeningBalance: mustDecimal("0")})
	if err != nil {
		return err
	}

	postings := []banking.NewPosting{
		{AccountID: bank.ID, Direction: core.Debit, Amount: mustDecimal("3400"), Memo: "Acme Distributors", Reference: "AD-1042"},
		{AccountID: wallet.ID, Direction: core.Credit, Amount: mustDecimal("1849"), Memo: "UPI collections"},
		{AccountID: wallet.ID, Direction: core.Debit, Amount: mustDecimal("1500"), Memo: "Transfer to bank"},
		{AccountID: bank.ID, Direction: core.Credit, Amount: mustDecimal("1500"), Memo: "Transfer from wallet"},
	}
	for _, p := range postings {
		if _, err := h.Postings.CreatePosting(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }
