package orders

import (
	"time"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

type CreateOrderRequest struct {
	CustomerID     int64      `json:"customer_id" validate:"required,gt=0"`
	OrderDate      *time.Time `json:"order_date,omitempty"`
	RequiredDate   time.Time  `json:"required_date" validate:"required"`
	DeliveryMethod string     `json:"delivery_method" validate:"required,max=50"`
	Notes          string     `json:"notes" validate:"max=1000"`
	// OverrideHold lets the user push an order through for an on-hold
	// customer after an explicit confirmation.
	OverrideHold bool                 `json:"override_hold"`
	Items        []CreateOrderItemReq `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItemReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// EditOrderRequest replaces the editable header fields and line items. When
// the target order is completed this produces a MODIFIED copy instead of
// mutating history.
type EditOrderRequest struct {
	RequiredDate   *time.Time           `json:"required_date,omitempty"`
	DeliveryMethod *string              `json:"delivery_method,omitempty" validate:"omitempty,max=50"`
	Notes          *string              `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Items          []CreateOrderItemReq `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

type PickItemRequest struct {
	PickedQuantity int      `json:"picked_quantity" validate:"gte=0"`
	PickedWeight   *float64 `json:"picked_weight,omitempty" validate:"omitempty,gt=0"`
	BatchNumber    string   `json:"batch_number" validate:"max=64"`
	Checked        bool     `json:"checked"`
	// AllowShortage accepts a picked quantity above/below the ordered
	// quantity as an explicit, acknowledged change.
	AllowShortage bool `json:"allow_shortage"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ItemBoxSettings carries the per-line box configuration for distribution
// preview and save.
type ItemBoxSettings struct {
	OrderItemID int64 `json:"order_item_id" validate:"required,gt=0"`
	BoxCount    int   `json:"box_count" validate:"omitempty,gte=1"`
	ItemsPerBox int   `json:"items_per_box" validate:"omitempty,gte=1"`
}

type DistributionRequest struct {
	Settings []ItemBoxSettings `json:"settings" validate:"dive"`
}

type ListRequest struct {
	Status     *Status
	CustomerID *int64
	// Completed selects the completed-orders view instead of the open
	// workflow queue.
	Completed bool
	Page      shared.Pagination
}
