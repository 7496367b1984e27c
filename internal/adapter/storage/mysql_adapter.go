package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/orderbot/internal/core/domain"
)

type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

// OpenMySQL opens a pooled connection and verifies it with a ping.
func OpenMySQL(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	dsn, err := withParseTime(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// withParseTime turns on parseTime, which every DATETIME scan into time.Time needs.
func withParseTime(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return domain.NewStorageError("ping", err)
	}
	return nil
}

func (m *MySQLAdapter) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT code, name, unit, price, active, created_at, updated_at
		FROM products WHERE code = ?`, code,
	).Scan(&p.Code, &p.Name, &p.Unit, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("query product", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT code, name, unit, price, active, created_at, updated_at
		FROM products WHERE active = 1 ORDER BY seq`)
	if err != nil {
		return nil, domain.NewStorageError("query active products", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.Code, &p.Name, &p.Unit, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.NewStorageError("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate products", err)
	}
	return products, nil
}

func (m *MySQLAdapter) UpsertProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (code, name, unit, price, active)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), unit = VALUES(unit), price = VALUES(price), active = VALUES(active)`,
		p.Code, p.Name, p.Unit, p.Price, p.Active,
	)
	if err != nil {
		return domain.NewStorageError("upsert product", err)
	}
	return nil
}

// GetOrCreateCurrentOrder relies on the unique open_key column: a concurrent
// insert for the same customer collapses onto the existing row.
func (m *MySQLAdapter) GetOrCreateCurrentOrder(ctx context.Context, customerID string) (int64, error) {
	var id int64
	err := m.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE open_key = ?`, customerID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NewStorageError("query open order", err)
	}

	result, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (customer_id, status, open_key, total, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
		customerID, domain.OrderStatusOpen, customerID, m.now().UTC(),
	)
	if err != nil {
		return 0, domain.NewStorageError("insert order", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, domain.NewStorageError("insert order", err)
	}
	return id, nil
}

func (m *MySQLAdapter) FindOpenOrder(ctx context.Context, customerID string) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, total, created_at, finalized_at
		FROM orders WHERE open_key = ?`, customerID))
	if err != nil {
		return nil, err
	}
	return o, nil
}

// AppendLine locks the order row, bumps its total and inserts the line in one transaction.
func (m *MySQLAdapter) AppendLine(ctx context.Context, orderID int64, productCode string, quantity int, unitPrice int64) (*domain.OrderLine, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewStorageError("begin tx", err)
	}
	defer tx.Rollback()

	var status domain.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ? FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("lock order", err)
	}
	if status != domain.OrderStatusOpen {
		return nil, domain.ErrOrderFinalized
	}

	line := domain.OrderLine{
		OrderID:     orderID,
		ProductCode: productCode,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		LineTotal:   int64(quantity) * unitPrice,
		CreatedAt:   m.now().UTC(),
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET total = total + ? WHERE id = ?`, line.LineTotal, orderID); err != nil {
		return nil, domain.NewStorageError("update order total", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO order_lines (order_id, product_code, quantity, unit_price, line_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		line.OrderID, line.ProductCode, line.Quantity, line.UnitPrice, line.LineTotal, line.CreatedAt,
	)
	if err != nil {
		return nil, domain.NewStorageError("insert order line", err)
	}
	if line.ID, err = result.LastInsertId(); err != nil {
		return nil, domain.NewStorageError("insert order line", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewStorageError("commit", err)
	}
	return &line, nil
}

// GetOrderWithLines reads the order and its lines from one snapshot.
func (m *MySQLAdapter) GetOrderWithLines(ctx context.Context, orderID int64) (*domain.Order, []domain.OrderLine, error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, domain.NewStorageError("begin tx", err)
	}
	defer tx.Rollback()

	order, err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT id, customer_id, status, total, created_at, finalized_at
		FROM orders WHERE id = ?`, orderID))
	if err != nil {
		return nil, nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, product_code, quantity, unit_price, line_total, created_at
		FROM order_lines WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, nil, domain.NewStorageError("query order lines", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductCode, &l.Quantity, &l.UnitPrice, &l.LineTotal, &l.CreatedAt); err != nil {
			return nil, nil, domain.NewStorageError("scan order line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, domain.NewStorageError("iterate order lines", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, domain.NewStorageError("commit", err)
	}
	return order, lines, nil
}

func (m *MySQLAdapter) FinalizeOrder(ctx context.Context, orderID int64) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, open_key = NULL, finalized_at = ?
		WHERE id = ? AND status = ?`,
		domain.OrderStatusFinalized, m.now().UTC(), orderID, domain.OrderStatusOpen,
	)
	if err != nil {
		return domain.NewStorageError("finalize order", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewStorageError("finalize order", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = m.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.NewStorageError("query order", err)
	}
	return domain.ErrOrderFinalized
}

func scanOrder(row *sql.Row) (*domain.Order, error) {
	var (
		o         domain.Order
		finalized sql.NullTime
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Total, &o.CreatedAt, &finalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("scan order", err)
	}
	if finalized.Valid {
		o.FinalizedAt = &finalized.Time
	}
	return &o, nil
}
