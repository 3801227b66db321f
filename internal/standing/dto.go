package standing

import "time"

type StandingItemReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CreateStandingOrderRequest struct {
	CustomerID       int64             `json:"customer_id" validate:"required,gt=0"`
	Frequency        Frequency         `json:"frequency" validate:"required"`
	DayOfWeek        *int              `json:"day_of_week,omitempty" validate:"omitempty,gte=0,lte=6"`
	DayOfMonth       *int              `json:"day_of_month,omitempty" validate:"omitempty,gte=1,lte=31"`
	DeliveryMethod   string            `json:"delivery_method" validate:"required,max=50"`
	Notes            string            `json:"notes" validate:"max=1000"`
	NextDeliveryDate time.Time         `json:"next_delivery_date" validate:"required"`
	Items            []StandingItemReq `json:"items" validate:"required,min=1,dive"`
}

type UpdateStandingOrderRequest struct {
	Frequency        *Frequency        `json:"frequency,omitempty"`
	DayOfWeek        *int              `json:"day_of_week,omitempty" validate:"omitempty,gte=0,lte=6"`
	DayOfMonth       *int              `json:"day_of_month,omitempty" validate:"omitempty,gte=1,lte=31"`
	DeliveryMethod   *string           `json:"delivery_method,omitempty" validate:"omitempty,max=50"`
	Notes            *string           `json:"notes,omitempty" validate:"omitempty,max=1000"`
	NextDeliveryDate *time.Time        `json:"next_delivery_date,omitempty"`
	Items            []StandingItemReq `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// ProcessResult summarises one batch run over the due standing orders.
type ProcessResult struct {
	Materialized int     `json:"materialized"`
	Skipped      int     `json:"skipped"`
	Failed       int     `json:"failed"`
	OrderIDs     []int64 `json:"order_ids,omitempty"`
}
