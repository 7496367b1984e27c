package port

import (
	"context"

	"github.com/rl1809/orderbot/internal/core/domain"
)

// CacheRepository misses are reported as ok == false with a nil error.
type CacheRepository interface {
	GetActiveProducts(ctx context.Context) ([]domain.Product, bool, error)
	SetActiveProducts(ctx context.Context, products []domain.Product) error
	InvalidateActiveProducts(ctx context.Context) error

	// Invoices are keyed by order and a fingerprint of the rendered content,
	// so a catalog rename or a new line never hits a stale image.
	GetInvoice(ctx context.Context, orderID int64, fingerprint string) ([]byte, bool, error)
	SetInvoice(ctx context.Context, orderID int64, fingerprint string, image []byte) error
}
