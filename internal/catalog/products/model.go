package products

import "time"

// Product is catalog reference data, immutable during an order's lifecycle.
type Product struct {
	ID        int64  `json:"id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	// UnitWeight is grams per unit. Nil for products whose weight is entered
	// at pick time.
	UnitWeight          *float64  `json:"unit_weight,omitempty"`
	RequiresWeightInput bool      `json:"requires_weight_input"`
	UnitLabel           string    `json:"unit_label"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
