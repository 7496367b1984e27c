package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rl1809/orderbot/internal/core/domain"
)

type productRecord struct {
	Code      string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255;not null"`
	Unit      string `gorm:"size:32;not null"`
	Price     int64  `gorm:"not null"`
	Active    bool   `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (productRecord) TableName() string { return "products" }

type orderRecord struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	CustomerID  string  `gorm:"size:128;not null;index"`
	Status      string  `gorm:"size:16;not null"`
	OpenKey     *string `gorm:"size:128;uniqueIndex"`
	Total       int64   `gorm:"not null"`
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

func (orderRecord) TableName() string { return "orders" }

type orderLineRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	OrderID     int64  `gorm:"not null;index"`
	ProductCode string `gorm:"size:64;not null"`
	Quantity    int    `gorm:"not null"`
	UnitPrice   int64  `gorm:"not null"`
	LineTotal   int64  `gorm:"not null"`
	CreatedAt   time.Time
}

func (orderLineRecord) TableName() string { return "order_lines" }

// PostgresAdapter is the gorm backed alternative to MySQLAdapter.
type PostgresAdapter struct {
	db *gorm.DB
}

func NewPostgresAdapter(db *gorm.DB) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// InitMigrate creates or updates the schema. It is idempotent.
func (p *PostgresAdapter) InitMigrate() error {
	return p.db.AutoMigrate(
		&productRecord{},
		&orderRecord{},
		&orderLineRecord{},
	)
}

func (p *PostgresAdapter) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return domain.NewStorageError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return domain.NewStorageError("ping", err)
	}
	return nil
}

func (p *PostgresAdapter) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *PostgresAdapter) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	var rec productRecord
	err := p.db.WithContext(ctx).Where("code = ?", code).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("query product", err)
	}
	product := rec.toDomain()
	return &product, nil
}

func (p *PostgresAdapter) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	var recs []productRecord
	if err := p.db.WithContext(ctx).Where("active = ?", true).Order("created_at, code").Find(&recs).Error; err != nil {
		return nil, domain.NewStorageError("query active products", err)
	}

	products := make([]domain.Product, 0, len(recs))
	for _, r := range recs {
		products = append(products, r.toDomain())
	}
	return products, nil
}

func (p *PostgresAdapter) UpsertProduct(ctx context.Context, product domain.Product) error {
	rec := productRecord{
		Code:   product.Code,
		Name:   product.Name,
		Unit:   product.Unit,
		Price:  product.Price,
		Active: product.Active,
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "unit", "price", "active", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return domain.NewStorageError("upsert product", err)
	}
	return nil
}

func (p *PostgresAdapter) GetOrCreateCurrentOrder(ctx context.Context, customerID string) (int64, error) {
	db := p.db.WithContext(ctx)

	var rec orderRecord
	err := db.Where("open_key = ?", customerID).Take(&rec).Error
	if err == nil {
		return rec.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, domain.NewStorageError("query open order", err)
	}

	key := customerID
	rec = orderRecord{CustomerID: customerID, Status: string(domain.OrderStatusOpen), OpenKey: &key}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "open_key"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		return 0, domain.NewStorageError("insert order", res.Error)
	}
	if res.RowsAffected == 1 {
		return rec.ID, nil
	}

	// another writer created it first
	var existing orderRecord
	if err := db.Where("open_key = ?", customerID).Take(&existing).Error; err != nil {
		return 0, domain.NewStorageError("query open order", err)
	}
	return existing.ID, nil
}

func (p *PostgresAdapter) FindOpenOrder(ctx context.Context, customerID string) (*domain.Order, error) {
	var rec orderRecord
	err := p.db.WithContext(ctx).Where("open_key = ?", customerID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("query open order", err)
	}
	order := rec.toDomain()
	return &order, nil
}

func (p *PostgresAdapter) AppendLine(ctx context.Context, orderID int64, productCode string, quantity int, unitPrice int64) (*domain.OrderLine, error) {
	line := domain.OrderLine{
		OrderID:     orderID,
		ProductCode: productCode,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		LineTotal:   int64(quantity) * unitPrice,
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec orderRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return domain.NewStorageError("lock order", err)
		}
		if rec.Status != string(domain.OrderStatusOpen) {
			return domain.ErrOrderFinalized
		}

		if err := tx.Model(&orderRecord{}).
			Where("id = ?", orderID).
			Update("total", gorm.Expr("total + ?", line.LineTotal)).Error; err != nil {
			return domain.NewStorageError("update order total", err)
		}

		lr := orderLineRecord{
			OrderID:     line.OrderID,
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		}
		if err := tx.Create(&lr).Error; err != nil {
			return domain.NewStorageError("insert order line", err)
		}
		line.ID = lr.ID
		line.CreatedAt = lr.CreatedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (p *PostgresAdapter) GetOrderWithLines(ctx context.Context, orderID int64) (*domain.Order, []domain.OrderLine, error) {
	var (
		rec  orderRecord
		recs []orderLineRecord
	)

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", orderID).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return domain.NewStorageError("query order", err)
		}
		if err := tx.Where("order_id = ?", orderID).Order("id").Find(&recs).Error; err != nil {
			return domain.NewStorageError("query order lines", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}

	order := rec.toDomain()
	lines := make([]domain.OrderLine, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, domain.OrderLine{
			ID:          r.ID,
			OrderID:     r.OrderID,
			ProductCode: r.ProductCode,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
			LineTotal:   r.LineTotal,
			CreatedAt:   r.CreatedAt,
		})
	}
	return &order, lines, nil
}

func (p *PostgresAdapter) FinalizeOrder(ctx context.Context, orderID int64) error {
	db := p.db.WithContext(ctx)

	res := db.Model(&orderRecord{}).
		Where("id = ? AND status = ?", orderID, string(domain.OrderStatusOpen)).
		Updates(map[string]any{
			"status":       string(domain.OrderStatusFinalized),
			"open_key":     nil,
			"finalized_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.NewStorageError("finalize order", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&orderRecord{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return domain.NewStorageError("query order", err)
	}
	if count == 0 {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderFinalized
}

func (r productRecord) toDomain() domain.Product {
	return domain.Product{
		Code:      r.Code,
		Name:      r.Name,
		Unit:      r.Unit,
		Price:     r.Price,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r orderRecord) toDomain() domain.Order {
	return domain.Order{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		Status:      domain.OrderStatus(r.Status),
		Total:       r.Total,
		CreatedAt:   r.CreatedAt,
		FinalizedAt: r.FinalizedAt,
	}
}
