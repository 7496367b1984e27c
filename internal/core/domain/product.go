package domain

import "time"

// Product is a catalog entry. Price is in minor currency units.
type Product struct {
	Code      string
	Name      string
	Unit      string
	Price     int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
