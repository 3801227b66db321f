// Package boxing splits an order's line items across physical shipping boxes
// and derives per-box weights. Generation is a pure function of the item
// settings and pick state, so recomputing with unchanged input always yields
// an identical plan.
package boxing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Item is one order line plus the pick state the distribution needs.
type Item struct {
	OrderItemID int64
	ProductID   int64
	ProductName string
	Quantity    int
	// UnitWeight is grams per unit; nil when the product's weight is entered
	// at pick time instead.
	UnitWeight          *float64
	RequiresWeightInput bool
	// PickedWeight is the manually entered total weight in grams for the
	// whole line.
	PickedWeight *float64
}

// Settings control how one item spreads across boxes.
type Settings struct {
	BoxCount    int `json:"box_count"`
	ItemsPerBox int `json:"items_per_box"`
}

// DefaultSettings puts the whole line into a single box.
func DefaultSettings(quantity int) Settings {
	if quantity < 1 {
		quantity = 1
	}
	return Settings{BoxCount: 1, ItemsPerBox: quantity}
}

// WithBoxCount fixes the number of boxes and derives items per box.
func (s Settings) WithBoxCount(quantity, n int) Settings {
	if n < 1 {
		n = 1
	}
	s.BoxCount = n
	s.ItemsPerBox = ceilDiv(quantity, n)
	return s
}

// WithItemsPerBox fixes the per-box quantity and derives the box count.
func (s Settings) WithItemsPerBox(quantity, k int) Settings {
	if k < 1 {
		k = 1
	}
	if k > quantity {
		k = quantity
	}
	s.ItemsPerBox = k
	s.BoxCount = ceilDiv(quantity, k)
	return s
}

// BoxItem is one line's share of a box.
type BoxItem struct {
	OrderItemID int64           `json:"order_item_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Weight      decimal.Decimal `json:"weight"`
}

// Box is one numbered physical box in the plan.
type Box struct {
	BoxNumber   int             `json:"box_number"`
	Items       []BoxItem       `json:"items"`
	TotalWeight decimal.Decimal `json:"total_weight"`
}

// Distribution is the full box plan for an order.
type Distribution struct {
	Boxes       []Box           `json:"boxes"`
	TotalWeight decimal.Decimal `json:"total_weight"`
}

// Generate computes the box plan. settings is keyed by OrderItemID; missing
// entries fall back to a single box holding the whole line. The last box of
// each item absorbs the rounding remainder so the per-item quantities and
// weights sum exactly to the line totals. Boxes that end up empty are
// dropped, not emitted as placeholders.
func Generate(items []Item, settings map[int64]Settings) Distribution {
	maxBoxes := 0
	perItem := make(map[int64]Settings, len(items))
	for _, it := range items {
		s, ok := settings[it.OrderItemID]
		if !ok || s.BoxCount < 1 || s.ItemsPerBox < 1 {
			s = DefaultSettings(it.Quantity)
		}
		perItem[it.OrderItemID] = s
		if s.BoxCount > maxBoxes {
			maxBoxes = s.BoxCount
		}
	}

	allocatedWeight := make(map[int64]decimal.Decimal, len(items))
	remaining := make(map[int64]int, len(items))
	for _, it := range items {
		remaining[it.OrderItemID] = it.Quantity
	}

	var boxes []Box
	total := decimal.Zero
	for b := 1; b <= maxBoxes; b++ {
		box := Box{BoxNumber: b, TotalWeight: decimal.Zero}
		for _, it := range items {
			s := perItem[it.OrderItemID]
			rem := remaining[it.OrderItemID]
			if s.BoxCount < b || rem <= 0 {
				continue
			}
			units := s.ItemsPerBox
			if b == s.BoxCount || units > rem {
				units = rem
			}
			remaining[it.OrderItemID] = rem - units

			weight := itemWeight(it, units, rem == units, allocatedWeight)
			box.Items = append(box.Items, BoxItem{
				OrderItemID: it.OrderItemID,
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Quantity:    units,
				Weight:      weight,
			})
			box.TotalWeight = box.TotalWeight.Add(weight)
		}
		if len(box.Items) == 0 {
			continue
		}
		total = total.Add(box.TotalWeight)
		boxes = append(boxes, box)
	}

	sort.Slice(boxes, func(i, j int) bool { return boxes[i].BoxNumber < boxes[j].BoxNumber })
	return Distribution{Boxes: boxes, TotalWeight: total}
}

// itemWeight allocates weight for units of one item placed in one box.
// Weight-input products spread their picked weight proportionally; the box
// that takes the item's final units receives whatever weight remains so the
// allocation is lossless.
func itemWeight(it Item, units int, lastBox bool, allocated map[int64]decimal.Decimal) decimal.Decimal {
	if it.RequiresWeightInput && it.PickedWeight != nil && *it.PickedWeight > 0 {
		totalWeight := decimal.NewFromFloat(*it.PickedWeight)
		if lastBox {
			return totalWeight.Sub(allocated[it.OrderItemID])
		}
		perUnit := totalWeight.Div(decimal.NewFromInt(int64(it.Quantity)))
		w := perUnit.Mul(decimal.NewFromInt(int64(units)))
		allocated[it.OrderItemID] = allocated[it.OrderItemID].Add(w)
		return w
	}
	if it.UnitWeight != nil {
		return decimal.NewFromFloat(*it.UnitWeight).Mul(decimal.NewFromInt(int64(units)))
	}
	return decimal.Zero
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
