package domain

// InvoiceLine is an order line resolved against the catalog for display.
type InvoiceLine struct {
	Name      string
	Unit      string
	Quantity  int
	UnitPrice int64
}

type Invoice struct {
	OrderID     int64
	Image       []byte
	ContentType string
}
