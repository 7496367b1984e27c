package domain

import "time"

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFinalized OrderStatus = "finalized"
)

// Order is a customer's cart. Total always equals the sum of its line totals.
type Order struct {
	ID          int64
	CustomerID  string
	Status      OrderStatus
	Total       int64
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// OrderLine is an append-only cart entry. UnitPrice is the product price at insertion time.
type OrderLine struct {
	ID          int64
	OrderID     int64
	ProductCode string
	Quantity    int
	UnitPrice   int64
	LineTotal   int64
	CreatedAt   time.Time
}

// Confirmation is returned after a line was added to the cart.
type Confirmation struct {
	OrderID     int64
	ProductName string
	Quantity    int
	LineTotal   int64
}
