/*
Package sqlite provides a SQLite-backed implementation of core.Store.

PURPOSE:
  Durable record store for the shop ledger. Every method is one statement
  (or, for sale items, one batch into one table), matching the contract of
  the remote store the ledger is written against: there is no commit that
  spans collections.

KEY TABLES:
  products:    per-shop catalog with on-hand stock and a version column
  sales:       invoice headers
  sale_items:  invoice lines, cascade-deleted with their sale
  purchases:   goods receipts
  accounts:    money accounts with a cached balance and a version column
  postings:    credits/debits against an account
  cash_closings: one till count per shop and day
  users, user_roles, shops: tenancy and administration

COMPARE-AND-SWAP:
  UpdateProductStock and UpdateAccountBalance run
      UPDATE ... SET ..., version = version + 1 WHERE id = ? AND version = ?
  Zero affected rows means either the row is gone (NotFoundError) or
  another writer moved the version (ErrConcurrentModification).

CONSTRAINTS:
  - UNIQUE(shop_id, name) on products, case-insensitive
  - UNIQUE(email) on users, UNIQUE(owner_id) on shops
  - Unique violations surface as core.ConflictError

MONEY & TIME:
  Decimals are stored as TEXT and parsed with shopspring/decimal.
  Timestamps are stored as fixed-width UTC TEXT so string order is time
  order.

USAGE:
  store, err := sqlite.New("./data/shop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - core/store.go: interface definitions
  - core/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/core"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements core.Store using SQLite.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shops (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL UNIQUE,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_roles (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		PRIMARY KEY (user_id, role)
	);

	-- Products: stock is keyed by id, name is unique per shop
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		name TEXT NOT NULL COLLATE NOCASE,
		cost_price TEXT NOT NULL,
		sale_price TEXT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		category TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (shop_id, name)
	);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		invoice_date TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_contact TEXT NOT NULL DEFAULT '',
		total TEXT NOT NULL,
		paid TEXT NOT NULL,
		balance TEXT NOT NULL,
		payment_mode TEXT NOT NULL,
		bill_type TEXT NOT NULL,
		due_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_shop_date
		ON sales(shop_id, invoice_date DESC);

	-- No foreign key on product_id: history survives product deletion
	CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		rate TEXT NOT NULL,
		discount TEXT NOT NULL,
		total TEXT NOT NULL,
		kind TEXT NOT NULL,
		valid_from TEXT,
		valid_to TEXT,
		policy_ref TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sale_items_sale
		ON sale_items(sale_id);

	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		date TEXT NOT NULL,
		invoice_no TEXT NOT NULL DEFAULT '',
		supplier_name TEXT NOT NULL,
		product_id TEXT NOT NULL DEFAULT '',
		item_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_cost TEXT NOT NULL,
		total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_shop_date
		ON purchases(shop_id, date DESC);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		name TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		opening_balance TEXT NOT NULL,
		balance TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS postings (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		direction TEXT NOT NULL,
		amount TEXT NOT NULL,
		posted_at TEXT NOT NULL,
		memo TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_postings_account
		ON postings(account_id, posted_at DESC);

	CREATE INDEX IF NOT EXISTS idx_sale_items_valid_to
		ON sale_items(shop_id, valid_to);

	CREATE TABLE IF NOT EXISTS cash_closings (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		date TEXT NOT NULL,
		opening_cash TEXT NOT NULL,
		system_cash TEXT NOT NULL,
		physical_cash TEXT NOT NULL,
		difference TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(shop_id, date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROW TYPES
// =============================================================================

type productRow struct {
	ID        string `db:"id"`
	ShopID    string `db:"shop_id"`
	Name      string `db:"name"`
	CostPrice string `db:"cost_price"`
	SalePrice string `db:"sale_price"`
	Stock     int64  `db:"stock"`
	Category  string `db:"category"`
	Kind      string `db:"kind"`
	Version   int64  `db:"version"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r productRow) toProduct() core.Product {
	return core.Product{
		ID:        core.ProductID(r.ID),
		ShopID:    core.ShopID(r.ShopID),
		Name:      r.Name,
		CostPrice: parseDecimal(r.CostPrice),
		SalePrice: parseDecimal(r.SalePrice),
		Stock:     r.Stock,
		Category:  r.Category,
		Kind:      core.ProductKind(r.Kind),
		Version:   r.Version,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type saleRow struct {
	ID              string         `db:"id"`
	ShopID          string         `db:"shop_id"`
	InvoiceDate     string         `db:"invoice_date"`
	CustomerName    string         `db:"customer_name"`
	CustomerContact string         `db:"customer_contact"`
	Total           string         `db:"total"`
	Paid            string         `db:"paid"`
	Balance         string         `db:"balance"`
	PaymentMode     string         `db:"payment_mode"`
	BillType        string         `db:"bill_type"`
	DueDate         sql.NullString `db:"due_date"`
	CreatedAt       string         `db:"created_at"`
}

func (r saleRow) toSale() core.Sale {
	return core.Sale{
		ID:              core.SaleID(r.ID),
		ShopID:          core.ShopID(r.ShopID),
		InvoiceDate:     parseTime(r.InvoiceDate),
		CustomerName:    r.CustomerName,
		CustomerContact: r.CustomerContact,
		Total:           parseDecimal(r.Total),
		Paid:            parseDecimal(r.Paid),
		Balance:         parseDecimal(r.Balance),
		PaymentMode:     core.PaymentMode(r.PaymentMode),
		BillType:        core.BillType(r.BillType),
		DueDate:         parseNullTime(r.DueDate),
		CreatedAt:       parseTime(r.CreatedAt),
	}
}

type saleItemRow struct {
	ID          string         `db:"id"`
	ShopID      string         `db:"shop_id"`
	SaleID      string         `db:"sale_id"`
	ProductID   string         `db:"product_id"`
	ProductName string         `db:"product_name"`
	Quantity    int64          `db:"quantity"`
	Rate        string         `db:"rate"`
	Discount    string         `db:"discount"`
	Total       string         `db:"total"`
	Kind        string         `db:"kind"`
	ValidFrom   sql.NullString `db:"valid_from"`
	ValidTo     sql.NullString `db:"valid_to"`
	PolicyRef   string         `db:"policy_ref"`
	CreatedAt   string         `db:"created_at"`
}

func (r saleItemRow) toSaleItem() core.SaleItem {
	return core.SaleItem{
		ID:          core.SaleItemID(r.ID),
		ShopID:      core.ShopID(r.ShopID),
		SaleID:      core.SaleID(r.SaleID),
		ProductID:   core.ProductID(r.ProductID),
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		Rate:        parseDecimal(r.Rate),
		Discount:    parseDecimal(r.Discount),
		Total:       parseDecimal(r.Total),
		Kind:        core.LineKind(r.Kind),
		ValidFrom:   parseNullTime(r.ValidFrom),
		ValidTo:     parseNullTime(r.ValidTo),
		PolicyRef:   r.PolicyRef,
		CreatedAt:   parseTime(r.CreatedAt),
	}
}

type purchaseRow struct {
	ID           string `db:"id"`
	ShopID       string `db:"shop_id"`
	Date         string `db:"date"`
	InvoiceNo    string `db:"invoice_no"`
	SupplierName string `db:"supplier_name"`
	ProductID    string `db:"product_id"`
	ItemName     string `db:"item_name"`
	Quantity     int64  `db:"quantity"`
	UnitCost     string `db:"unit_cost"`
	Total        string `db:"total"`
	CreatedAt    string `db:"created_at"`
}

func (r purchaseRow) toPurchase() core.Purchase {
	return core.Purchase{
		ID:           core.PurchaseID(r.ID),
		ShopID:       core.ShopID(r.ShopID),
		Date:         parseTime(r.Date),
		InvoiceNo:    r.InvoiceNo,
		SupplierName: r.SupplierName,
		ProductID:    core.ProductID(r.ProductID),
		ItemName:     r.ItemName,
		Quantity:     r.Quantity,
		UnitCost:     parseDecimal(r.UnitCost),
		Total:        parseDecimal(r.Total),
		CreatedAt:    parseTime(r.CreatedAt),
	}
}

type accountRow struct {
	ID             string `db:"id"`
	ShopID         string `db:"shop_id"`
	Name           string `db:"name"`
	Provider       string `db:"provider"`
	Type           string `db:"type"`
	OpeningBalance string `db:"opening_balance"`
	Balance        string `db:"balance"`
	Version        int64  `db:"version"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

func (r accountRow) toAccount() core.Account {
	return core.Account{
		ID:             core.AccountID(r.ID),
		ShopID:         core.ShopID(r.ShopID),
		Name:           r.Name,
		Provider:       r.Provider,
		Type:           core.AccountType(r.Type),
		OpeningBalance: parseDecimal(r.OpeningBalance),
		Balance:        parseDecimal(r.Balance),
		Version:        r.Version,
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
	}
}

type postingRow struct {
	ID        string `db:"id"`
	ShopID    string `db:"shop_id"`
	AccountID string `db:"account_id"`
	Direction string `db:"direction"`
	Amount    string `db:"amount"`
	PostedAt  string `db:"posted_at"`
	Memo      string `db:"memo"`
	Reference string `db:"reference"`
	CreatedAt string `db:"created_at"`
}

func (r postingRow) toPosting() core.Posting {
	return core.Posting{
		ID:        core.PostingID(r.ID),
		ShopID:    core.ShopID(r.ShopID),
		AccountID: core.AccountID(r.AccountID),
		Direction: core.Direction(r.Direction),
		Amount:    parseDecimal(r.Amount),
		PostedAt:  parseTime(r.PostedAt),
		Memo:      r.Memo,
		Reference: r.Reference,
		CreatedAt: parseTime(r.CreatedAt),
	}
}

type closingRow struct {
	ID           string `db:"id"`
	ShopID       string `db:"shop_id"`
	Date         string `db:"date"`
	OpeningCash  string `db:"opening_cash"`
	SystemCash   string `db:"system_cash"`
	PhysicalCash string `db:"physical_cash"`
	Difference   string `db:"difference"`
	CreatedAt    string `db:"created_at"`
}

func (r closingRow) toCashClosing() core.CashClosing {
	return core.CashClosing{
		ID:           core.CashClosingID(r.ID),
		ShopID:       core.ShopID(r.ShopID),
		Date:         parseTime(r.Date),
		OpeningCash:  parseDecimal(r.OpeningCash),
		SystemCash:   parseDecimal(r.SystemCash),
		PhysicalCash: parseDecimal(r.PhysicalCash),
		Difference:   parseDecimal(r.Difference),
		CreatedAt:    parseTime(r.CreatedAt),
	}
}

type shopRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	OwnerID   string `db:"owner_id"`
	Active    bool   `db:"active"`
	CreatedAt string `db:"created_at"`
}

func (r shopRow) toShop() core.Shop {
	return core.Shop{
		ID:        core.ShopID(r.ID),
		Name:      r.Name,
		OwnerID:   core.UserID(r.OwnerID),
		Active:    r.Active,
		CreatedAt: parseTime(r.CreatedAt),
	}
}

type userRow struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	CreatedAt string `db:"created_at"`
}

func (r userRow) toUser() core.User {
	return core.User{
		ID:        core.UserID(r.ID),
		Email:     r.Email,
		CreatedAt: parseTime(r.CreatedAt),
	}
}

const (
	productColumns  = "id, shop_id, name, cost_price, sale_price, stock, category, kind, version, created_at, updated_at"
	saleColumns     = "id, shop_id, invoice_date, customer_name, customer_contact, total, paid, balance, payment_mode, bill_type, due_date, created_at"
	saleItemColumns = "id, shop_id, sale_id, product_id, product_name, quantity, rate, discount, total, kind, valid_from, valid_to, policy_ref, created_at"
	purchaseColumns = "id, shop_id, date, invoice_no, supplier_name, product_id, item_name, quantity, unit_cost, total, created_at"
	accountColumns  = "id, shop_id, name, provider, type, opening_balance, balance, version, created_at, updated_at"
	postingColumns  = "id, shop_id, account_id, direction, amount, posted_at, memo, reference, created_at"
	closingColumns  = "id, shop_id, date, opening_cash, system_cash, physical_cash, difference, created_at"
)

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) InsertProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if p.ID == "" {
		p.ID = core.ProductID(uuid.NewString())
	}
	if p.Kind == core.KindService {
		p.Stock = 0
	}
	now := s.now()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ShopID, p.Name, p.CostPrice.String(), p.SalePrice.String(), p.Stock,
		p.Category, p.Kind, p.Version, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Product{}, &core.ConflictError{Kind: "product", Field: "name"}
		}
		return core.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id core.ProductID) (core.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Product{}, core.NotFound("product", id)
	}
	if err != nil {
		return core.Product{}, err
	}
	return row.toProduct(), nil
}

func (s *Store) ListProducts(ctx context.Context, shopID core.ShopID, f core.ProductFilter) ([]core.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE shop_id = ?`
	args := []any{shopID}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.StockBelow != nil {
		query += ` AND kind != ? AND stock < ?`
		args = append(args, core.KindService, *f.StockBelow)
	}
	query += ` ORDER BY name`

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]core.Product, len(rows))
	for i, r := range rows {
		out[i] = r.toProduct()
	}
	return out, nil
}

func (s *Store) UpdateProductStock(ctx context.Context, id core.ProductID, stock int64, expectedVersion int64) (core.Product, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET stock = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		stock, formatTime(s.now()), id, expectedVersion,
	)
	if err != nil {
		return core.Product{}, fmt.Errorf("failed to update stock: %w", err)
	}
	if err := s.checkSwapped(ctx, res, "products", string(id)); err != nil {
		if core.IsNotFound(err) {
			return core.Product{}, core.NotFound("product", id)
		}
		return core.Product{}, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) DeleteProduct(ctx context.Context, id core.ProductID) error {
	return s.deleteByID(ctx, "products", "product", string(id))
}

// =============================================================================
// SALES
// =============================================================================

func (s *Store) InsertSale(ctx context.Context, sale core.Sale) (core.Sale, error) {
	if sale.ID == "" {
		sale.ID = core.SaleID(uuid.NewString())
	}
	sale.CreatedAt = s.now()
	if sale.InvoiceDate.IsZero() {
		sale.InvoiceDate = sale.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sales (`+saleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.ShopID, formatTime(sale.InvoiceDate), sale.CustomerName, sale.CustomerContact,
		sale.Total.String(), sale.Paid.String(), sale.Balance.String(),
		sale.PaymentMode, sale.BillType, nullTime(sale.DueDate), formatTime(sale.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Sale{}, &core.ConflictError{Kind: "sale", Field: "id"}
		}
		return core.Sale{}, fmt.Errorf("failed to insert sale: %w", err)
	}
	return sale, nil
}

// InsertSaleItems writes the batch in one SQL transaction on one table.
func (s *Store) InsertSaleItems(ctx context.Context, items []core.SaleItem) ([]core.SaleItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	out := make([]core.SaleItem, len(items))
	for i, it := range items {
		if it.ID == "" {
			it.ID = core.SaleItemID(uuid.NewString())
		}
		it.CreatedAt = now
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sale_items (`+saleItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.ShopID, it.SaleID, it.ProductID, it.ProductName, it.Quantity,
			it.Rate.String(), it.Discount.String(), it.Total.String(), it.Kind,
			nullTime(it.ValidFrom), nullTime(it.ValidTo), it.PolicyRef, formatTime(now),
		)
		if err != nil {
			if isForeignKeyError(err) {
				return nil, core.NotFound("sale", it.SaleID)
			}
			return nil, fmt.Errorf("failed to insert sale item: %w", err)
		}
		out[i] = it
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sale items: %w", err)
	}
	return out, nil
}

func (s *Store) GetSale(ctx context.Context, id core.SaleID) (core.Sale, error) {
	var row saleRow
	err := s.db.GetContext(ctx, &row, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Sale{}, core.NotFound("sale", id)
	}
	if err != nil {
		return core.Sale{}, err
	}
	return row.toSale(), nil
}

func (s *Store) ListSaleItems(ctx context.Context, saleID core.SaleID) ([]core.SaleItem, error) {
	var rows []saleItemRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id = ? ORDER BY rowid`, saleID)
	if err != nil {
		return nil, err
	}
	out := make([]core.SaleItem, len(rows))
	for i, r := range rows {
		out[i] = r.toSaleItem()
	}
	return out, nil
}

func (s *Store) ListExpiringItems(ctx context.Context, shopID core.ShopID, from, to time.Time) ([]core.SaleItem, error) {
	var rows []saleItemRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+saleItemColumns+` FROM sale_items
		 WHERE shop_id = ? AND kind IN (?, ?) AND valid_to >= ? AND valid_to < ?
		 ORDER BY valid_to`,
		shopID, core.LineRecharge, core.LineInsurance, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	out := make([]core.SaleItem, len(rows))
	for i, r := range rows {
		out[i] = r.toSaleItem()
	}
	return out, nil
}

func (s *Store) ListSales(ctx context.Context, shopID core.ShopID, f core.SaleFilter) ([]core.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE shop_id = ?`
	args := []any{shopID}
	if f.From != nil {
		query += ` AND invoice_date >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND invoice_date < ?`
		args = append(args, formatTime(*f.To))
	}
	if f.CustomerContact != "" {
		query += ` AND customer_contact = ?`
		args = append(args, f.CustomerContact)
	}
	if f.PaymentMode != "" {
		query += ` AND payment_mode = ?`
		args = append(args, f.PaymentMode)
	}
	query += ` ORDER BY invoice_date DESC`

	var rows []saleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]core.Sale, len(rows))
	for i, r := range rows {
		out[i] = r.toSale()
	}
	return out, nil
}

// DeleteSale removes the header; sale_items rows cascade.
func (s *Store) DeleteSale(ctx context.Context, id core.SaleID) error {
	return s.deleteByID(ctx, "sales", "sale", string(id))
}

// =============================================================================
// PURCHASES
// =============================================================================

func (s *Store) InsertPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error) {
	if p.ID == "" {
		p.ID = core.PurchaseID(uuid.NewString())
	}
	p.CreatedAt = s.now()
	if p.Date.IsZero() {
		p.Date = p.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases (`+purchaseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ShopID, formatTime(p.Date), p.InvoiceNo, p.SupplierName, p.ProductID,
		p.ItemName, p.Quantity, p.UnitCost.String(), p.Total.String(), formatTime(p.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Purchase{}, &core.ConflictError{Kind: "purchase", Field: "id"}
		}
		return core.Purchase{}, fmt.Errorf("failed to insert purchase: %w", err)
	}
	return p, nil
}

func (s *Store) GetPurchase(ctx context.Context, id core.PurchaseID) (core.Purchase, error) {
	var row purchaseRow
	err := s.db.GetContext(ctx, &row, `SELECT `+purchaseColumns+` FROM purchases WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Purchase{}, core.NotFound("purchase", id)
	}
	if err != nil {
		return core.Purchase{}, err
	}
	return row.toPurchase(), nil
}

func (s *Store) ListPurchases(ctx context.Context, shopID core.ShopID, f core.PurchaseFilter) ([]core.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE shop_id = ?`
	args := []any{shopID}
	if f.SupplierName != "" {
		query += ` AND supplier_name = ?`
		args = append(args, f.SupplierName)
	}
	if f.ProductID != "" {
		query += ` AND product_id = ?`
		args = append(args, f.ProductID)
	}
	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND date < ?`
		args = append(args, formatTime(*f.To))
	}
	query += ` ORDER BY date DESC`

	var rows []purchaseRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]core.Purchase, len(rows))
	for i, r := range rows {
		out[i] = r.toPurchase()
	}
	return out, nil
}

// =============================================================================
// ACCOUNTS & POSTINGS
// =============================================================================

func (s *Store) InsertAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = core.AccountID(uuid.NewString())
	}
	now := s.now()
	a.Version = 1
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ShopID, a.Name, a.Provider, a.Type, a.OpeningBalance.String(), a.Balance.String(),
		a.Version, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Account{}, &core.ConflictError{Kind: "account", Field: "id"}
		}
		return core.Account{}, fmt.Errorf("failed to insert account: %w", err)
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id core.AccountID) (core.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NotFound("account", id)
	}
	if err != nil {
		return core.Account{}, err
	}
	return row.toAccount(), nil
}

func (s *Store) ListAccounts(ctx context.Context, shopID core.ShopID) ([]core.Account, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+accountColumns+` FROM accounts WHERE shop_id = ? ORDER BY created_at DESC`, shopID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, len(rows))
	for i, r := range rows {
		out[i] = r.toAccount()
	}
	return out, nil
}

func (s *Store) UpdateAccountBalance(ctx context.Context, id core.AccountID, balance decimal.Decimal, expectedVersion int64) (core.Account, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		balance.String(), formatTime(s.now()), id, expectedVersion,
	)
	if err != nil {
		return core.Account{}, fmt.Errorf("failed to update balance: %w", err)
	}
	if err := s.checkSwapped(ctx, res, "accounts", string(id)); err != nil {
		if core.IsNotFound(err) {
			return core.Account{}, core.NotFound("account", id)
		}
		return core.Account{}, err
	}
	return s.GetAccount(ctx, id)
}

func (s *Store) InsertPosting(ctx context.Context, p core.Posting) (core.Posting, error) {
	if p.ID == "" {
		p.ID = core.PostingID(uuid.NewString())
	}
	p.CreatedAt = s.now()
	if p.PostedAt.IsZero() {
		p.PostedAt = p.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO postings (`+postingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ShopID, p.AccountID, p.Direction, p.Amount.String(), formatTime(p.PostedAt),
		p.Memo, p.Reference, formatTime(p.CreatedAt),
	)
	if err != nil {
		switch {
		case isForeignKeyError(err):
			return core.Posting{}, core.NotFound("account", p.AccountID)
		case isUniqueConstraintError(err):
			return core.Posting{}, &core.ConflictError{Kind: "posting", Field: "id"}
		}
		return core.Posting{}, fmt.Errorf("failed to insert posting: %w", err)
	}
	return p, nil
}

func (s *Store) GetPosting(ctx context.Context, id core.PostingID) (core.Posting, error) {
	var row postingRow
	err := s.db.GetContext(ctx, &row, `SELECT `+postingColumns+` FROM postings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Posting{}, core.NotFound("posting", id)
	}
	if err != nil {
		return core.Posting{}, err
	}
	return row.toPosting(), nil
}

func (s *Store) ListPostings(ctx context.Context, accountID core.AccountID) ([]core.Posting, error) {
	var rows []postingRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+postingColumns+` FROM postings WHERE account_id = ? ORDER BY posted_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Posting, len(rows))
	for i, r := range rows {
		out[i] = r.toPosting()
	}
	return out, nil
}

func (s *Store) DeletePosting(ctx context.Context, id core.PostingID) error {
	return s.deleteByID(ctx, "postings", "posting", string(id))
}

// =============================================================================
// CASH CLOSINGS
// =============================================================================

func (s *Store) InsertCashClosing(ctx context.Context, c core.CashClosing) (core.CashClosing, error) {
	if c.ID == "" {
		c.ID = core.CashClosingID(uuid.NewString())
	}
	c.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cash_closings (`+closingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ShopID, formatTime(c.Date), c.OpeningCash.String(), c.SystemCash.String(),
		c.PhysicalCash.String(), c.Difference.String(), formatTime(c.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.CashClosing{}, &core.ConflictError{Kind: "cash_closing", Field: "date"}
		}
		return core.CashClosing{}, fmt.Errorf("failed to insert cash closing: %w", err)
	}
	return c, nil
}

func (s *Store) ListCashClosings(ctx context.Context, shopID core.ShopID) ([]core.CashClosing, error) {
	var rows []closingRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+closingColumns+` FROM cash_closings WHERE shop_id = ? ORDER BY date DESC`, shopID)
	if err != nil {
		return nil, err
	}
	out := make([]core.CashClosing, len(rows))
	for i, r := range rows {
		out[i] = r.toCashClosing()
	}
	return out, nil
}

// =============================================================================
// TENANCY & ADMINISTRATION
// =============================================================================

func (s *Store) ShopForUser(ctx context.Context, userID core.UserID) (core.ShopID, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `SELECT id FROM shops WHERE owner_id = ? AND active = 1 LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return core.ShopID(id), nil
}

func (s *Store) InsertUser(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = core.UserID(uuid.NewString())
	}
	u.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Email, formatTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.User{}, &core.ConflictError{Kind: "user", Field: "email"}
		}
		return core.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, email, created_at FROM users ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]core.User, len(rows))
	for i, r := range rows {
		out[i] = r.toUser()
	}
	return out, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT id, email, created_at FROM users WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NotFound("user", email)
	}
	if err != nil {
		return core.User{}, err
	}
	return row.toUser(), nil
}

func (s *Store) GrantRole(ctx context.Context, userID core.UserID, role core.Role) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`, userID, role)
	if isForeignKeyError(err) {
		return core.NotFound("user", userID)
	}
	return err
}

func (s *Store) HasRole(ctx context.Context, userID core.UserID, role core.Role) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?`, userID, role)
	return count > 0, err
}

func (s *Store) InsertShop(ctx context.Context, shop core.Shop) (core.Shop, error) {
	if shop.ID == "" {
		shop.ID = core.ShopID(uuid.NewString())
	}
	shop.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shops (id, name, owner_id, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		shop.ID, shop.Name, shop.OwnerID, shop.Active, formatTime(shop.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Shop{}, &core.ConflictError{Kind: "shop", Field: "owner"}
		}
		return core.Shop{}, fmt.Errorf("failed to insert shop: %w", err)
	}
	return shop, nil
}

func (s *Store) GetShop(ctx context.Context, id core.ShopID) (core.Shop, error) {
	var row shopRow
	err := s.db.GetContext(ctx, &row, `SELECT id, name, owner_id, active, created_at FROM shops WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Shop{}, core.NotFound("shop", id)
	}
	if err != nil {
		return core.Shop{}, err
	}
	return row.toShop(), nil
}

func (s *Store) ListShops(ctx context.Context) ([]core.Shop, error) {
	var rows []shopRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, owner_id, active, created_at FROM shops ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	out := make([]core.Shop, len(rows))
	for i, r := range rows {
		out[i] = r.toShop()
	}
	return out, nil
}

func (s *Store) SetShopActive(ctx context.Context, id core.ShopID, active bool) (core.Shop, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE shops SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return core.Shop{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Shop{}, core.NotFound("shop", id)
	}
	return s.GetShop(ctx, id)
}

// =============================================================================
// UTILITIES
// =============================================================================

// checkSwapped tells a lost compare-and-swap apart from a missing row.
func (s *Store) checkSwapped(ctx context.Context, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := s.db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id); err != nil {
		return err
	}
	if exists == 0 {
		return core.NotFound(table, id)
	}
	return core.ErrConcurrentModification
}

func (s *Store) deleteByID(ctx context.Context, table, kind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound(kind, id)
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var _ core.Store = (*Store)(nil)
