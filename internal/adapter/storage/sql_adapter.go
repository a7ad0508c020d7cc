package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

// Supported database/sql driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

type dialect struct {
	timestamp string
	upsert    func(table, key string, cols []string) string
}

var dialects = map[string]dialect{
	DriverMySQL: {
		timestamp: "DATETIME(6)",
		upsert: func(table, key string, cols []string) string {
			set := make([]string, 0, len(cols))
			for _, c := range cols {
				if c != key {
					set = append(set, c+" = VALUES("+c+")")
				}
			}
			return insertSQL(table, cols) + " ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")
		},
	},
	DriverPostgres: {
		timestamp: "TIMESTAMPTZ",
		upsert: func(table, key string, cols []string) string {
			set := make([]string, 0, len(cols))
			for _, c := range cols {
				if c != key {
					set = append(set, c+" = EXCLUDED."+c)
				}
			}
			return insertSQL(table, cols) + " ON CONFLICT (" + key + ") DO UPDATE SET " + strings.Join(set, ", ")
		},
	},
}

func insertSQL(table string, cols []string) string {
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
}

// SQLAdapter stores orders and the menu catalogue in MySQL or Postgres.
// Queries are written with ? placeholders and rebound for Postgres.
type SQLAdapter struct {
	db      *sql.DB
	driver  string
	dialect dialect
}

func NewSQLAdapter(db *sql.DB, driver string) (*SQLAdapter, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	return &SQLAdapter{db: db, driver: driver, dialect: d}, nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (m *SQLAdapter) rebind(query string) string {
	if m.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (m *SQLAdapter) schema() []string {
	ts := m.dialect.timestamp
	return []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(64) PRIMARY KEY,
			order_number BIGINT NOT NULL,
			user_id VARCHAR(128) NOT NULL DEFAULT '',
			guest_id VARCHAR(128) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			delivery_type VARCHAR(16) NOT NULL,
			payment_method VARCHAR(16) NOT NULL,
			items TEXT NOT NULL,
			subtotal BIGINT NOT NULL,
			delivery_fee BIGINT NOT NULL,
			total BIGINT NOT NULL,
			customer_name VARCHAR(255) NOT NULL,
			customer_phone VARCHAR(64) NOT NULL,
			customer_address TEXT,
			cash_change BIGINT NULL,
			estimated_time VARCHAR(32) NOT NULL,
			version BIGINT NOT NULL DEFAULT 0,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id VARCHAR(32) PRIMARY KEY,
			label VARCHAR(128) NOT NULL,
			icon VARCHAR(64) NOT NULL DEFAULT '',
			display_order INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			image_url TEXT,
			category VARCHAR(32) NOT NULL,
			is_alcoholic BOOLEAN NOT NULL DEFAULT FALSE,
			available BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS product_prices (
			product_id VARCHAR(64) NOT NULL,
			size VARCHAR(32) NOT NULL,
			price BIGINT NOT NULL,
			PRIMARY KEY (product_id, size)
		)`,
		`CREATE TABLE IF NOT EXISTS combos (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			price BIGINT NOT NULL,
			image_url TEXT,
			available BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	}
}

var defaultCategories = []domain.CategoryInfo{
	{ID: domain.CategorySavory, Label: "Pizzas Salgadas", Icon: "pizza", DisplayOrder: 1},
	{ID: domain.CategorySweet, Label: "Pizzas Doces", Icon: "cake", DisplayOrder: 2},
	{ID: domain.CategoryCombos, Label: "Combos", Icon: "gift", DisplayOrder: 3},
	{ID: domain.CategoryCalzones, Label: "Calzones", Icon: "sandwich", DisplayOrder: 4},
	{ID: domain.CategoryDrinks, Label: "Bebidas", Icon: "cup", DisplayOrder: 5},
}

// Migrate creates missing tables and seeds the fixed menu categories.
func (m *SQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range m.schema() {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	q := m.rebind(m.dialect.upsert("categories", "id", []string{"id", "label", "icon", "display_order"}))
	for _, c := range defaultCategories {
		if _, err := m.db.ExecContext(ctx, q, c.ID, c.Label, c.Icon, c.DisplayOrder); err != nil {
			return fmt.Errorf("seed category %s: %w", c.ID, err)
		}
	}
	return nil
}

const orderColumns = `id, order_number, user_id, guest_id, status, delivery_type, payment_method,
	items, subtotal, delivery_fee, total, customer_name, customer_phone, customer_address,
	cash_change, estimated_time, created_at, updated_at`

func (m *SQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	var cash sql.NullInt64
	if order.CashChange != nil {
		cash = sql.NullInt64{Int64: int64(*order.CashChange), Valid: true}
	}

	_, err = m.db.ExecContext(ctx, m.rebind(`
		INSERT INTO orders (`+orderColumns+`, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`),
		order.ID, order.Number, order.UserID, order.GuestID, order.Status,
		order.DeliveryType, order.PaymentMethod, string(items),
		order.Subtotal, order.DeliveryFee, order.Total,
		order.CustomerName, order.CustomerPhone, order.Address,
		cash, order.EstimatedTime, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (domain.Order, error) {
	var (
		o       domain.Order
		items   string
		address sql.NullString
		cash    sql.NullInt64
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.GuestID, &o.Status, &o.DeliveryType,
		&o.PaymentMethod, &items, &o.Subtotal, &o.DeliveryFee, &o.Total,
		&o.CustomerName, &o.CustomerPhone, &address, &cash, &o.EstimatedTime,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return o, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	o.Address = address.String
	if cash.Valid {
		c := domain.Money(cash.Int64)
		o.CashChange = &c
	}
	return o, nil
}

func (m *SQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx,
		m.rebind(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return &o, nil
}

func (m *SQLAdapter) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, m.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (m *SQLAdapter) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return m.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (m *SQLAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return m.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// UpdateOrderStatus writes the status guarded by the row version read in the
// same transaction.
func (m *SQLAdapter) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx, m.rebind(`SELECT version FROM orders WHERE id = ?`), id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query order version: %w", err)
	}

	result, err := tx.ExecContext(ctx, m.rebind(`
		UPDATE orders
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`),
		status, at, id, version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}

	return tx.Commit()
}

func (m *SQLAdapter) MaxOrderNumber(ctx context.Context) (int64, error) {
	var n int64
	err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_number), 0) FROM orders`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("query max order number: %w", err)
	}
	return n, nil
}

func (m *SQLAdapter) ListCategories(ctx context.Context) ([]domain.CategoryInfo, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, label, icon, display_order FROM categories ORDER BY display_order`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.CategoryInfo
	for rows.Next() {
		var c domain.CategoryInfo
		if err := rows.Scan(&c.ID, &c.Label, &c.Icon, &c.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (m *SQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, description, image_url, category, is_alcoholic, available
		FROM products ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	index := make(map[string]int)
	for rows.Next() {
		var (
			p           domain.Product
			desc, image sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &desc, &image, &p.Category, &p.Alcoholic, &p.Available); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Description, p.ImageURL = desc.String, image.String
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prices, err := m.db.QueryContext(ctx, `SELECT product_id, size, price FROM product_prices`)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer prices.Close()

	for prices.Next() {
		var (
			id  string
			opt domain.PriceOption
		)
		if err := prices.Scan(&id, &opt.Size, &opt.Price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		if i, ok := index[id]; ok {
			out[i].Prices = append(out[i].Prices, opt)
		}
	}
	if err := prices.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		sort.Slice(out[i].Prices, func(a, b int) bool { return out[i].Prices[a].Price < out[i].Prices[b].Price })
	}
	return out, nil
}

func (m *SQLAdapter) ListCombos(ctx context.Context) ([]domain.Combo, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, description, price, image_url, available
		FROM combos ORDER BY price`)
	if err != nil {
		return nil, fmt.Errorf("query combos: %w", err)
	}
	defer rows.Close()

	var out []domain.Combo
	for rows.Next() {
		var (
			c           domain.Combo
			desc, image sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &desc, &c.Price, &image, &c.Available); err != nil {
			return nil, fmt.Errorf("scan combo: %w", err)
		}
		c.Description, c.ImageURL = desc.String, image.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertProduct writes the product row and replaces its price list in one
// transaction.
func (m *SQLAdapter) UpsertProduct(ctx context.Context, p domain.Product) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := m.dialect.upsert("products", "id",
		[]string{"id", "name", "description", "image_url", "category", "is_alcoholic", "available"})
	if _, err := tx.ExecContext(ctx, m.rebind(q),
		p.ID, p.Name, p.Description, p.ImageURL, p.Category, p.Alcoholic, p.Available); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	if _, err := tx.ExecContext(ctx, m.rebind(`DELETE FROM product_prices WHERE product_id = ?`), p.ID); err != nil {
		return fmt.Errorf("clear prices: %w", err)
	}
	for _, opt := range p.Prices {
		if _, err := tx.ExecContext(ctx, m.rebind(insertSQL("product_prices", []string{"product_id", "size", "price"})),
			p.ID, opt.Size, opt.Price); err != nil {
			return fmt.Errorf("insert price %s: %w", opt.Size, err)
		}
	}

	return tx.Commit()
}

func (m *SQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.rebind(`DELETE FROM product_prices WHERE product_id = ?`), id); err != nil {
		return fmt.Errorf("delete prices: %w", err)
	}
	result, err := tx.ExecContext(ctx, m.rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return port.ErrNotFound
	}

	return tx.Commit()
}

func (m *SQLAdapter) UpsertCombo(ctx context.Context, c domain.Combo) error {
	q := m.dialect.upsert("combos", "id", []string{"id", "name", "description", "price", "image_url", "available"})
	if _, err := m.db.ExecContext(ctx, m.rebind(q),
		c.ID, c.Name, c.Description, c.Price, c.ImageURL, c.Available); err != nil {
		return fmt.Errorf("upsert combo: %w", err)
	}
	return nil
}
