package orders

import "time"

type Status string

const (
	StatusPending      Status = "PENDING"
	StatusPicking      Status = "PICKING"
	StatusMissingItems Status = "MISSING_ITEMS"
	StatusCompleted    Status = "COMPLETED"
	StatusCancelled    Status = "CANCELLED"
	StatusModified     Status = "MODIFIED"
)

// Terminal reports whether no further workflow transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Order is the aggregate root for the picking workflow.
type Order struct {
	ID             int64     `json:"id"`
	CustomerID     int64     `json:"customer_id"`
	OrderDate      time.Time `json:"order_date"`
	RequiredDate   time.Time `json:"required_date"`
	DeliveryMethod string    `json:"delivery_method"`
	Status         Status    `json:"status"`
	// FromStandingOrderID links orders generated by the standing-order engine
	// back to their template.
	FromStandingOrderID *int64 `json:"from_standing_order_id,omitempty"`
	// SourceOrderID links a MODIFIED copy back to the completed order it
	// was edited from.
	SourceOrderID *int64      `json:"source_order_id,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	CancelReason  string      `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

// OrderItem is one product line on an order. Batch number uses an empty
// string sentinel, never NULL in storage.
type OrderItem struct {
	ID             int64    `json:"id"`
	OrderID        int64    `json:"order_id"`
	ProductID      int64    `json:"product_id"`
	Quantity       int      `json:"quantity"`
	PickedQuantity *int     `json:"picked_quantity,omitempty"`
	PickedWeight   *float64 `json:"picked_weight,omitempty"`
	BatchNumber    string   `json:"batch_number"`
	BoxNumber      *int     `json:"box_number,omitempty"`
	Checked        bool     `json:"checked"`

	// Joined product fields needed by boxing and the batch ledger.
	ProductName         string   `json:"product_name"`
	UnitWeight          *float64 `json:"unit_weight,omitempty"`
	RequiresWeightInput bool     `json:"requires_weight_input"`
}

// Change is one audited field delta recorded when a completed order is
// edited into a MODIFIED copy.
type Change struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Field     string    `json:"field"`
	Previous  string    `json:"previous"`
	Current   string    `json:"current"`
	ChangedAt time.Time `json:"changed_at"`
}

// OrderWithCustomer decorates a list row with customer display fields.
type OrderWithCustomer struct {
	Order
	CustomerName      string `json:"customer_name"`
	DetailedBoxLabels bool   `json:"detailed_box_labels"`
}
