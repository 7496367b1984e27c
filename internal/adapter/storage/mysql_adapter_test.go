package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/orderbot/internal/core/domain"
)

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	adapter := NewMySQLAdapter(db)
	adapter.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return adapter, mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func TestMySQL_GetProductByCode(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Now()

	mock.ExpectQuery(q("FROM products WHERE code = ?")).
		WithArgs("1001").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "unit", "price", "active", "created_at", "updated_at"}).
			AddRow("1001", "Widget A", "pcs", int64(1500), true, now, now))
	mock.ExpectQuery(q("FROM products WHERE code = ?")).
		WithArgs("9999").
		WillReturnError(sql.ErrNoRows)

	p, err := adapter.GetProductByCode(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, "Widget A", p.Name)
	assert.Equal(t, int64(1500), p.Price)
	assert.True(t, p.Active)

	_, err = adapter.GetProductByCode(context.Background(), "9999")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_ListActiveProducts(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Now()

	mock.ExpectQuery(q("FROM products WHERE active = 1 ORDER BY seq")).
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "unit", "price", "active", "created_at", "updated_at"}).
			AddRow("1001", "Widget A", "pcs", int64(1500), true, now, now).
			AddRow("1002", "Gadget B", "box", int64(800), true, now, now))

	products, err := adapter.ListActiveProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "1002", products[1].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_UpsertProduct(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(q("INSERT INTO products (code, name, unit, price, active)")).
		WithArgs("1001", "Widget A", "pcs", int64(1500), true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpsertProduct(context.Background(), domain.Product{Code: "1001", Name: "Widget A", Unit: "pcs", Price: 1500, Active: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_GetOrCreateCurrentOrder(t *testing.T) {
	t.Run("existing open order", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(q("SELECT id FROM orders WHERE open_key = ?")).
			WithArgs("c1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

		id, err := adapter.GetOrCreateCurrentOrder(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates order", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(q("SELECT id FROM orders WHERE open_key = ?")).
			WithArgs("c1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(q("ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)")).
			WithArgs("c1", domain.OrderStatusOpen, "c1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(8, 1))

		id, err := adapter.GetOrCreateCurrentOrder(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, int64(8), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("storage failure", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectQuery(q("SELECT id FROM orders WHERE open_key = ?")).
			WillReturnError(errors.New("connection reset"))

		_, err := adapter.GetOrCreateCurrentOrder(context.Background(), "c1")
		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}

func TestMySQL_AppendLine(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q("SELECT status FROM orders WHERE id = ? FOR UPDATE")).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("open"))
		mock.ExpectExec(q("UPDATE orders SET total = total + ? WHERE id = ?")).
			WithArgs(int64(4500), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO order_lines")).
			WithArgs(int64(7), "1001", 3, int64(1500), int64(4500), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(21, 1))
		mock.ExpectCommit()

		line, err := adapter.AppendLine(context.Background(), 7, "1001", 3, 1500)
		require.NoError(t, err)
		assert.Equal(t, int64(21), line.ID)
		assert.Equal(t, int64(4500), line.LineTotal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("order missing", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := adapter.AppendLine(context.Background(), 7, "1001", 1, 1500)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("order finalized", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("finalized"))
		mock.ExpectRollback()

		_, err := adapter.AppendLine(context.Background(), 7, "1001", 1, 1500)
		assert.ErrorIs(t, err, domain.ErrOrderFinalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert fails rolls back total", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("open"))
		mock.ExpectExec(q("UPDATE orders SET total")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO order_lines")).WillReturnError(errors.New("lock wait timeout"))
		mock.ExpectRollback()

		_, err := adapter.AppendLine(context.Background(), 7, "1001", 1, 1500)
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQL_GetOrderWithLines(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM orders WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "status", "total", "created_at", "finalized_at"}).
			AddRow(int64(7), "c1", "open", int64(6100), now, nil))
	mock.ExpectQuery(q("FROM order_lines WHERE order_id = ? ORDER BY id")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_code", "quantity", "unit_price", "line_total", "created_at"}).
			AddRow(int64(1), int64(7), "1001", 3, int64(1500), int64(4500), now).
			AddRow(int64(2), int64(7), "1002", 2, int64(800), int64(1600), now))
	mock.ExpectCommit()

	order, lines, err := adapter.GetOrderWithLines(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, order.Status)
	assert.Nil(t, order.FinalizedAt)
	assert.Equal(t, int64(6100), order.Total)
	require.Len(t, lines, 2)
	assert.Equal(t, "1002", lines[1].ProductCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_GetOrderWithLines_NotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM orders WHERE id = ?")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := adapter.GetOrderWithLines(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_FinalizeOrder(t *testing.T) {
	t.Run("open order", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectExec(q("UPDATE orders SET status = ?, open_key = NULL")).
			WithArgs(domain.OrderStatusFinalized, sqlmock.AnyArg(), int64(7), domain.OrderStatusOpen).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, adapter.FinalizeOrder(context.Background(), 7))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already finalized", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectExec(q("UPDATE orders SET status = ?")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("SELECT 1 FROM orders WHERE id = ?")).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		assert.ErrorIs(t, adapter.FinalizeOrder(context.Background(), 7), domain.ErrOrderFinalized)
	})

	t.Run("rows affected unavailable", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectExec(q("UPDATE orders SET status = ?")).
			WillReturnResult(sqlmock.NewErrorResult(errors.New("driver lost result")))

		err := adapter.FinalizeOrder(context.Background(), 7)
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.NotErrorIs(t, err, domain.ErrOrderFinalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)
		mock.ExpectExec(q("UPDATE orders SET status = ?")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(q("SELECT 1 FROM orders WHERE id = ?")).WillReturnError(sql.ErrNoRows)

		assert.ErrorIs(t, adapter.FinalizeOrder(context.Background(), 7), domain.ErrOrderNotFound)
	})
}

func TestWithParseTime(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{"missing", "root:root@tcp(localhost:3306)/orderbot"},
		{"disabled", "root:root@tcp(localhost:3306)/orderbot?parseTime=false"},
		{"already set", "root:root@tcp(localhost:3306)/orderbot?parseTime=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := withParseTime(tt.dsn)
			require.NoError(t, err)

			cfg, err := mysql.ParseDSN(dsn)
			require.NoError(t, err)
			assert.True(t, cfg.ParseTime)
			assert.Equal(t, "orderbot", cfg.DBName)
			assert.Equal(t, "localhost:3306", cfg.Addr)
			assert.Equal(t, "root", cfg.User)
		})
	}

	_, err := withParseTime("not a dsn")
	assert.Error(t, err)
}
