// Package reports computes derived figures over the ledger: sales
// summaries, customer dues, supplier totals, low stock, upcoming renewals
// and the system cash figure. The only write is the end of day cash
// closing, which stores a till count next to the system cash it was
// checked against.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/tenant"
)

// DefaultLowStockThreshold is the stock level below which a product is
// reported as low.
const DefaultLowStockThreshold int64 = 5

// DefaultRenewalWindow is how many days ahead Renewals looks.
const DefaultRenewalWindow = 7

// Source is what the reports read, plus the cash closing collection.
type Source interface {
	ListProducts(ctx context.Context, shopID core.ShopID, filter core.ProductFilter) ([]core.Product, error)
	ListSales(ctx context.Context, shopID core.ShopID, filter core.SaleFilter) ([]core.Sale, error)
	GetSale(ctx context.Context, id core.SaleID) (core.Sale, error)
	ListExpiringItems(ctx context.Context, shopID core.ShopID, from, to time.Time) ([]core.SaleItem, error)
	ListPurchases(ctx context.Context, shopID core.ShopID, filter core.PurchaseFilter) ([]core.Purchase, error)
	core.ClosingStore
}

type Summary struct {
	SaleCount       int
	TotalSales      decimal.Decimal
	TodayCollection decimal.Decimal
	TotalDues       decimal.Decimal
}

type CustomerDue struct {
	CustomerName    string
	CustomerContact string
	Due             decimal.Decimal
	Sales           int
}

type SupplierTotal struct {
	SupplierName string
	Total        decimal.Decimal
	Purchases    int
}

// Renewal is a recharge or insurance line coming up for renewal.
type Renewal struct {
	Item            core.SaleItem
	CustomerName    string
	CustomerContact string
	DaysLeft        int // 0 = expires today
}

type CashClosingInput struct {
	Date         time.Time // zero = today
	OpeningCash  decimal.Decimal
	PhysicalCash decimal.Decimal
}

type Reporter struct {
	source Source
	now    func() time.Time
}

func NewReporter(source Source) *Reporter {
	return &Reporter{source: source, now: time.Now}
}

// Summary totals every sale of the bound shop. TodayCollection is what was
// paid on sales invoiced today.
func (r *Reporter) Summary(ctx context.Context) (Summary, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return Summary{}, err
	}
	list, err := r.source.ListSales(ctx, shopID, core.SaleFilter{})
	if err != nil {
		return Summary{}, err
	}

	from, to := dayBounds(r.now())
	s := Summary{TotalSales: decimal.Zero, TodayCollection: decimal.Zero, TotalDues: decimal.Zero}
	for _, sale := range list {
		s.SaleCount++
		s.TotalSales = s.TotalSales.Add(sale.Total)
		s.TotalDues = s.TotalDues.Add(sale.Balance)
		if !sale.InvoiceDate.Before(from) && sale.InvoiceDate.Before(to) {
			s.TodayCollection = s.TodayCollection.Add(sale.Paid)
		}
	}
	return s, nil
}

// CustomerDues groups outstanding balances by customer contact, largest
// due first. Sales without a contact or without a balance are skipped.
func (r *Reporter) CustomerDues(ctx context.Context) ([]CustomerDue, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	list, err := r.source.ListSales(ctx, shopID, core.SaleFilter{})
	if err != nil {
		return nil, err
	}

	byContact := make(map[string]*CustomerDue)
	for _, sale := range list {
		if sale.CustomerContact == "" || !sale.Balance.IsPositive() {
			continue
		}
		due, ok := byContact[sale.CustomerContact]
		if !ok {
			due = &CustomerDue{CustomerName: sale.CustomerName, CustomerContact: sale.CustomerContact, Due: decimal.Zero}
			byContact[sale.CustomerContact] = due
		}
		due.Due = due.Due.Add(sale.Balance)
		due.Sales++
	}

	out := make([]CustomerDue, 0, len(byContact))
	for _, d := range byContact {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Due.Cmp(out[j].Due); c != 0 {
			return c > 0
		}
		return out[i].CustomerContact < out[j].CustomerContact
	})
	return out, nil
}

// CustomerDue is the outstanding balance of one customer.
func (r *Reporter) CustomerDue(ctx context.Context, contact string) (decimal.Decimal, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	list, err := r.source.ListSales(ctx, shopID, core.SaleFilter{CustomerContact: contact})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, sale := range list {
		total = total.Add(sale.Balance)
	}
	return total, nil
}

// SupplierTotals groups purchase totals by supplier, largest first.
func (r *Reporter) SupplierTotals(ctx context.Context) ([]SupplierTotal, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	list, err := r.source.ListPurchases(ctx, shopID, core.PurchaseFilter{})
	if err != nil {
		return nil, err
	}

	bySupplier := make(map[string]*SupplierTotal)
	for _, p := range list {
		st, ok := bySupplier[p.SupplierName]
		if !ok {
			st = &SupplierTotal{SupplierName: p.SupplierName, Total: decimal.Zero}
			bySupplier[p.SupplierName] = st
		}
		st.Total = st.Total.Add(p.Total)
		st.Purchases++
	}

	out := make([]SupplierTotal, 0, len(bySupplier))
	for _, st := range bySupplier {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].SupplierName < out[j].SupplierName
	})
	return out, nil
}

// LowStock lists stock-tracked products below threshold. A threshold of
// zero or less uses DefaultLowStockThreshold.
func (r *Reporter) LowStock(ctx context.Context, threshold int64) ([]core.Product, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return r.source.ListProducts(ctx, shopID, core.ProductFilter{StockBelow: &threshold})
}

// SystemCash is the cash the till should hold for day: the amount paid on
// cash sales invoiced that day.
func (r *Reporter) SystemCash(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	from, to := dayBounds(day)
	list, err := r.source.ListSales(ctx, shopID, core.SaleFilter{From: &from, To: &to, PaymentMode: core.PaymentCash})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, sale := range list {
		total = total.Add(sale.Paid)
	}
	return total, nil
}

// Renewals lists recharge and insurance lines expiring between today and
// days from now, both inclusive, soonest first. days <= 0 uses
// DefaultRenewalWindow.
func (r *Reporter) Renewals(ctx context.Context, days int) ([]Renewal, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultRenewalWindow
	}
	from, _ := dayBounds(r.now().UTC())
	items, err := r.source.ListExpiringItems(ctx, shopID, from, from.AddDate(0, 0, days+1))
	if err != nil {
		return nil, err
	}

	out := make([]Renewal, 0, len(items))
	sales := make(map[core.SaleID]core.Sale)
	for _, it := range items {
		sale, ok := sales[it.SaleID]
		if !ok {
			sale, err = r.source.GetSale(ctx, it.SaleID)
			if err != nil {
				return nil, err
			}
			sales[it.SaleID] = sale
		}
		out = append(out, Renewal{
			Item:            it,
			CustomerName:    sale.CustomerName,
			CustomerContact: sale.CustomerContact,
			DaysLeft:        int(it.ValidTo.Sub(from).Hours() / 24),
		})
	}
	return out, nil
}

// CloseCash records the till count for a day against that day's system
// cash. A day can be closed once.
func (r *Reporter) CloseCash(ctx context.Context, in CashClosingInput) (core.CashClosing, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return core.CashClosing{}, err
	}
	switch {
	case in.OpeningCash.IsNegative():
		return core.CashClosing{}, core.Invalid("opening_cash", "must not be negative")
	case in.PhysicalCash.IsNegative():
		return core.CashClosing{}, core.Invalid("physical_cash", "must not be negative")
	}
	date := in.Date
	if date.IsZero() {
		date = r.now()
	}
	day, _ := dayBounds(date.UTC())

	system, err := r.SystemCash(ctx, day)
	if err != nil {
		return core.CashClosing{}, err
	}
	return r.source.InsertCashClosing(ctx, core.CashClosing{
		ShopID:       shopID,
		Date:         day,
		OpeningCash:  in.OpeningCash,
		SystemCash:   system,
		PhysicalCash: in.PhysicalCash,
		Difference:   in.PhysicalCash.Sub(in.OpeningCash.Add(system)),
	})
}

// CashClosings returns the bound shop's closings, newest day first.
func (r *Reporter) CashClosings(ctx context.Context) ([]core.CashClosing, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	return r.source.ListCashClosings(ctx, shopID)
}

// dayBounds returns [start of day, start of next day) in t's location.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
