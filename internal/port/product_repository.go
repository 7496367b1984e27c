package port

import (
	"context"

	"github.com/rl1809/orderbot/internal/core/domain"
)

type ProductRepository interface {
	// GetProductByCode returns the product regardless of its active flag, or domain.ErrProductNotFound
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)

	// ListActiveProducts returns active products in insertion order
	ListActiveProducts(ctx context.Context) ([]domain.Product, error)

	// UpsertProduct creates the product or overwrites name, unit, price and active flag
	UpsertProduct(ctx context.Context, product domain.Product) error
}
