package customers

import "time"

// Customer is read-only reference data for the order workflow.
type Customer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	// OnHold blocks order creation unless the caller explicitly overrides.
	OnHold     bool   `json:"on_hold"`
	HoldReason string `json:"hold_reason,omitempty"`
	// DetailedBoxLabels switches label printing to one label per box with
	// the box contents listed.
	DetailedBoxLabels bool      `json:"detailed_box_labels"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
