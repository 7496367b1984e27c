package port

import (
	"context"

	"github.com/rl1809/orderbot/internal/core/domain"
)

type OrderRepository interface {
	// GetOrCreateCurrentOrder returns the customer's open order id, creating an empty order if none exists
	GetOrCreateCurrentOrder(ctx context.Context, customerID string) (int64, error)

	// FindOpenOrder returns the customer's open order without creating one, or domain.ErrOrderNotFound
	FindOpenOrder(ctx context.Context, customerID string) (*domain.Order, error)

	// AppendLine inserts a line and adds its total to the order in one transaction
	AppendLine(ctx context.Context, orderID int64, productCode string, quantity int, unitPrice int64) (*domain.OrderLine, error)

	// GetOrderWithLines returns the order and its lines in insertion order
	GetOrderWithLines(ctx context.Context, orderID int64) (*domain.Order, []domain.OrderLine, error)

	// FinalizeOrder closes an open order so the next add starts a new cart
	FinalizeOrder(ctx context.Context, orderID int64) error

	Ping(ctx context.Context) error
}
