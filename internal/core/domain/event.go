package domain

import "time"

type OrderEventType string

const (
	EventLineAdded OrderEventType = "order.line_added"
	EventFinalized OrderEventType = "order.finalized"
)

type OrderEvent struct {
	ID          string         `json:"id"`
	Type        OrderEventType `json:"type"`
	OrderID     int64          `json:"order_id"`
	CustomerID  string         `json:"customer_id"`
	ProductCode string         `json:"product_code,omitempty"`
	Quantity    int            `json:"quantity,omitempty"`
	UnitPrice   int64          `json:"unit_price,omitempty"`
	LineTotal   int64          `json:"line_total,omitempty"`
	Total       int64          `json:"total,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
