// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements core.Store with maps guarded by one RWMutex. Each call
// is atomic on its own; like the remote store, nothing spans calls.
type Memory struct {
	mu        sync.RWMutex
	products  map[core.ProductID]core.Product
	sales     map[core.SaleID]core.Sale
	saleItems map[core.SaleID][]core.SaleItem
	purchases map[core.PurchaseID]core.Purchase
	accounts  map[core.AccountID]core.Account
	postings  map[core.PostingID]core.Posting
	users     map[core.UserID]core.User
	roles     map[core.UserID]map[core.Role]bool
	shops     map[core.ShopID]core.Shop
	closings  map[core.CashClosingID]core.CashClosing

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		products:  make(map[core.ProductID]core.Product),
		sales:     make(map[core.SaleID]core.Sale),
		saleItems: make(map[core.SaleID][]core.SaleItem),
		purchases: make(map[core.PurchaseID]core.Purchase),
		accounts:  make(map[core.AccountID]core.Account),
		postings:  make(map[core.PostingID]core.Posting),
		users:     make(map[core.UserID]core.User),
		roles:     make(map[core.UserID]map[core.Role]bool),
		shops:     make(map[core.ShopID]core.Shop),
		closings:  make(map[core.CashClosingID]core.CashClosing),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func newID() string { return uuid.NewString() }

// =============================================================================
// PRODUCTS
// =============================================================================

func (m *Memory) InsertProduct(_ context.Context, p core.Product) (core.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.products {
		if existing.ShopID == p.ShopID && strings.EqualFold(existing.Name, p.Name) {
			return core.Product{}, &core.ConflictError{Kind: "product", Field: "name"}
		}
	}
	if p.ID == "" {
		p.ID = core.ProductID(newID())
	}
	if _, ok := m.products[p.ID]; ok {
		return core.Product{}, &core.ConflictError{Kind: "product", Field: "id"}
	}
	if p.Kind == core.KindService {
		p.Stock = 0
	}
	now := m.now()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) GetProduct(_ context.Context, id core.ProductID) (core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return core.Product{}, core.NotFound("product", id)
	}
	return p, nil
}

func (m *Memory) ListProducts(_ context.Context, shopID core.ShopID, f core.ProductFilter) ([]core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Product
	for _, p := range m.products {
		if p.ShopID != shopID {
			continue
		}
		if f.Kind != "" && p.Kind != f.Kind {
			continue
		}
		if f.StockBelow != nil && (!p.TracksStock() || p.Stock >= *f.StockBelow) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpdateProductStock(_ context.Context, id core.ProductID, stock int64, expectedVersion int64) (core.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return core.Product{}, core.NotFound("product", id)
	}
	if p.Version != expectedVersion {
		return core.Product{}, core.ErrConcurrentModification
	}
	p.Stock = stock
	p.Version++
	p.UpdatedAt = m.now()
	m.products[id] = p
	return p, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id core.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return core.NotFound("product", id)
	}
	delete(m.products, id)
	return nil
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) InsertSale(_ context.Context, s core.Sale) (core.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = core.SaleID(newID())
	}
	if _, ok := m.sales[s.ID]; ok {
		return core.Sale{}, &core.ConflictError{Kind: "sale", Field: "id"}
	}
	s.CreatedAt = m.now()
	if s.InvoiceDate.IsZero() {
		s.InvoiceDate = s.CreatedAt
	}
	m.sales[s.ID] = s
	return s, nil
}

// InsertSaleItems writes the whole batch or nothing.
func (m *Memory) InsertSaleItems(_ context.Context, items []core.SaleItem) ([]core.SaleItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range items {
		if _, ok := m.sales[it.SaleID]; !ok {
			return nil, core.NotFound("sale", it.SaleID)
		}
	}
	now := m.now()
	out := make([]core.SaleItem, len(items))
	for i, it := range items {
		if it.ID == "" {
			it.ID = core.SaleItemID(newID())
		}
		it.CreatedAt = now
		out[i] = it
		m.saleItems[it.SaleID] = append(m.saleItems[it.SaleID], it)
	}
	return out, nil
}

func (m *Memory) GetSale(_ context.Context, id core.SaleID) (core.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[id]
	if !ok {
		return core.Sale{}, core.NotFound("sale", id)
	}
	return s, nil
}

func (m *Memory) ListSaleItems(_ context.Context, saleID core.SaleID) ([]core.SaleItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.SaleItem, len(m.saleItems[saleID]))
	copy(out, m.saleItems[saleID])
	return out, nil
}

func (m *Memory) ListSales(_ context.Context, shopID core.ShopID, f core.SaleFilter) ([]core.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Sale
	for _, s := range m.sales {
		if s.ShopID != shopID {
			continue
		}
		if f.From != nil && s.InvoiceDate.Before(*f.From) {
			continue
		}
		if f.To != nil && !s.InvoiceDate.Before(*f.To) {
			continue
		}
		if f.CustomerContact != "" && s.CustomerContact != f.CustomerContact {
			continue
		}
		if f.PaymentMode != "" && s.PaymentMode != f.PaymentMode {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceDate.After(out[j].InvoiceDate) })
	return out, nil
}

func (m *Memory) DeleteSale(_ context.Context, id core.SaleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[id]; !ok {
		return core.NotFound("sale", id)
	}
	delete(m.sales, id)
	delete(m.saleItems, id)
	return nil
}

func (m *Memory) ListExpiringItems(_ context.Context, shopID core.ShopID, from, to time.Time) ([]core.SaleItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.SaleItem
	for _, items := range m.saleItems {
		for _, it := range items {
			if it.ShopID != shopID || !it.Kind.Renewable() || it.ValidTo == nil {
				continue
			}
			if it.ValidTo.Before(from) || !it.ValidTo.Before(to) {
				continue
			}
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidTo.Before(*out[j].ValidTo) })
	return out, nil
}

// =============================================================================
// PURCHASES
// =============================================================================

func (m *Memory) InsertPurchase(_ context.Context, p core.Purchase) (core.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = core.PurchaseID(newID())
	}
	if _, ok := m.purchases[p.ID]; ok {
		return core.Purchase{}, &core.ConflictError{Kind: "purchase", Field: "id"}
	}
	p.CreatedAt = m.now()
	if p.Date.IsZero() {
		p.Date = p.CreatedAt
	}
	m.purchases[p.ID] = p
	return p, nil
}

func (m *Memory) GetPurchase(_ context.Context, id core.PurchaseID) (core.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.purchases[id]
	if !ok {
		return core.Purchase{}, core.NotFound("purchase", id)
	}
	return p, nil
}

func (m *Memory) ListPurchases(_ context.Context, shopID core.ShopID, f core.PurchaseFilter) ([]core.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Purchase
	for _, p := range m.purchases {
		if p.ShopID != shopID {
			continue
		}
		if f.SupplierName != "" && p.SupplierName != f.SupplierName {
			continue
		}
		if f.ProductID != "" && p.ProductID != f.ProductID {
			continue
		}
		if f.From != nil && p.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && !p.Date.Before(*f.To) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// =============================================================================
// ACCOUNTS & POSTINGS
// =============================================================================

func (m *Memory) InsertAccount(_ context.Context, a core.Account) (core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = core.AccountID(newID())
	}
	if _, ok := m.accounts[a.ID]; ok {
		return core.Account{}, &core.ConflictError{Kind: "account", Field: "id"}
	}
	now := m.now()
	a.Version = 1
	a.CreatedAt, a.UpdatedAt = now, now
	m.accounts[a.ID] = a
	return a, nil
}

func (m *Memory) GetAccount(_ context.Context, id core.AccountID) (core.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func (m *Memory) ListAccounts(_ context.Context, shopID core.ShopID) ([]core.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Account
	for _, a := range m.accounts {
		if a.ShopID == shopID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateAccountBalance(_ context.Context, id core.AccountID, balance decimal.Decimal, expectedVersion int64) (core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return core.Account{}, core.NotFound("account", id)
	}
	if a.Version != expectedVersion {
		return core.Account{}, core.ErrConcurrentModification
	}
	a.Balance = balance
	a.Version++
	a.UpdatedAt = m.now()
	m.accounts[id] = a
	return a, nil
}

func (m *Memory) InsertPosting(_ context.Context, p core.Posting) (core.Posting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[p.AccountID]; !ok {
		return core.Posting{}, core.NotFound("account", p.AccountID)
	}
	if p.ID == "" {
		p.ID = core.PostingID(newID())
	}
	if _, ok := m.postings[p.ID]; ok {
		return core.Posting{}, &core.ConflictError{Kind: "posting", Field: "id"}
	}
	p.CreatedAt = m.now()
	if p.PostedAt.IsZero() {
		p.PostedAt = p.CreatedAt
	}
	m.postings[p.ID] = p
	return p, nil
}

func (m *Memory) GetPosting(_ context.Context, id core.PostingID) (core.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.postings[id]
	if !ok {
		return core.Posting{}, core.NotFound("posting", id)
	}
	return p, nil
}

func (m *Memory) ListPostings(_ context.Context, accountID core.AccountID) ([]core.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.Posting
	for _, p := range m.postings {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	return out, nil
}

func (m *Memory) DeletePosting(_ context.Context, id core.PostingID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.postings[id]; !ok {
		return core.NotFound("posting", id)
	}
	delete(m.postings, id)
	return nil
}

// =============================================================================
// CASH CLOSINGS
// =============================================================================

func (m *Memory) InsertCashClosing(_ context.Context, c core.CashClosing) (core.CashClosing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.closings {
		if existing.ShopID == c.ShopID && existing.Date.Equal(c.Date) {
			return core.CashClosing{}, &core.ConflictError{Kind: "cash_closing", Field: "date"}
		}
	}
	if c.ID == "" {
		c.ID = core.CashClosingID(newID())
	}
	c.CreatedAt = m.now()
	m.closings[c.ID] = c
	return c, nil
}

func (m *Memory) ListCashClosings(_ context.Context, shopID core.ShopID) ([]core.CashClosing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.CashClosing
	for _, c := range m.closings {
		if c.ShopID == shopID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// =============================================================================
// TENANCY & ADMINISTRATION
// =============================================================================

func (m *Memory) ShopForUser(_ context.Context, userID core.UserID) (core.ShopID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shops {
		if s.OwnerID == userID && s.Active {
			return s.ID, nil
		}
	}
	return "", nil
}

func (m *Memory) InsertUser(_ context.Context, u core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.User{}, &core.ConflictError{Kind: "user", Field: "email"}
		}
	}
	if u.ID == "" {
		u.ID = core.UserID(newID())
	}
	u.CreatedAt = m.now()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, core.NotFound("user", email)
}

func (m *Memory) GrantRole(_ context.Context, userID core.UserID, role core.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return core.NotFound("user", userID)
	}
	if m.roles[userID] == nil {
		m.roles[userID] = make(map[core.Role]bool)
	}
	m.roles[userID][role] = true
	return nil
}

func (m *Memory) HasRole(_ context.Context, userID core.UserID, role core.Role) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roles[userID][role], nil
}

func (m *Memory) InsertShop(_ context.Context, s core.Shop) (core.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.shops {
		if existing.OwnerID == s.OwnerID {
			return core.Shop{}, &core.ConflictError{Kind: "shop", Field: "owner"}
		}
	}
	if s.ID == "" {
		s.ID = core.ShopID(newID())
	}
	s.CreatedAt = m.now()
	m.shops[s.ID] = s
	return s, nil
}

func (m *Memory) GetShop(_ context.Context, id core.ShopID) (core.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shops[id]
	if !ok {
		return core.Shop{}, core.NotFound("shop", id)
	}
	return s, nil
}

func (m *Memory) ListShops(_ context.Context) ([]core.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Shop, 0, len(m.shops))
	for _, s := range m.shops {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SetShopActive(_ context.Context, id core.ShopID, active bool) (core.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return core.Shop{}, core.NotFound("shop", id)
	}
	s.Active = active
	m.shops[id] = s
	return s, nil
}

var _ core.Store = (*Memory)(nil)
