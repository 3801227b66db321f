// Package batches tracks cumulative weight consumption of production batches
// across completed orders, for food-safety traceability.
package batches

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchUsage is the ledger entry for one production batch. Entries are
// created on first use and only ever accumulate; they are never deleted.
type BatchUsage struct {
	BatchNumber string `json:"batch_number"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	// TotalWeight is an initial capacity estimate, not an authoritative
	// figure; remaining capacity derived from it is informational only.
	TotalWeight decimal.Decimal `json:"total_weight"`
	UsedWeight  decimal.Decimal `json:"used_weight"`
	OrdersCount int             `json:"orders_count"`
	FirstUsed   time.Time       `json:"first_used"`
	LastUsed    time.Time       `json:"last_used"`
}

// Remaining is total minus used. Recording never rejects on over-capacity,
// so this can go negative.
func (b BatchUsage) Remaining() decimal.Decimal {
	return b.TotalWeight.Sub(b.UsedWeight)
}

// Usage is one recording request: a picked order line attributed to a batch.
type Usage struct {
	BatchNumber string
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	// ManualWeight is the picker-entered total weight in grams, preferred
	// over the unit-weight estimate when positive.
	ManualWeight *float64
	// UnitWeight is grams per unit from the product catalog.
	UnitWeight *float64
}
