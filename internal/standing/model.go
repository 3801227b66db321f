package standing

import "time"

// Frequency is the recurrence cadence of a standing order.
type Frequency string

const (
	Weekly   Frequency = "WEEKLY"
	BiWeekly Frequency = "BIWEEKLY"
	// Monthly advances in fixed four-week steps so deliveries stay pinned to
	// the same weekday.
	Monthly Frequency = "MONTHLY"
)

// Valid reports whether f is a known cadence.
func (f Frequency) Valid() bool {
	switch f {
	case Weekly, BiWeekly, Monthly:
		return true
	}
	return false
}

// StandingOrder is the recurring template orders are generated from.
type StandingOrder struct {
	ID             int64     `json:"id"`
	CustomerID     int64     `json:"customer_id"`
	Frequency      Frequency `json:"frequency"`
	// DayOfWeek / DayOfMonth are optional display anchors recorded at
	// creation; the schedule itself advances from NextDeliveryDate.
	DayOfWeek      *int   `json:"day_of_week,omitempty"`
	DayOfMonth     *int   `json:"day_of_month,omitempty"`
	DeliveryMethod string `json:"delivery_method"`
	Notes          string `json:"notes,omitempty"`
	// NextDeliveryDate is the upcoming occurrence this template will produce.
	NextDeliveryDate time.Time `json:"next_delivery_date"`
	// NextProcessingDate is the last working day strictly before the delivery
	// date; the scheduler materializes the occurrence on or after it.
	NextProcessingDate time.Time  `json:"next_processing_date"`
	LastProcessedDate  *time.Time `json:"last_processed_date,omitempty"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Items []StandingOrderItem `json:"items,omitempty"`

	// Joined customer display fields.
	CustomerName   string `json:"customer_name,omitempty"`
	CustomerOnHold bool   `json:"customer_on_hold,omitempty"`
}

// StandingOrderItem is one recurring product line.
type StandingOrderItem struct {
	ID              int64  `json:"id"`
	StandingOrderID int64  `json:"standing_order_id"`
	ProductID       int64  `json:"product_id"`
	Quantity        int    `json:"quantity"`
	ProductName     string `json:"product_name,omitempty"`
}

// Occurrence carries everything one materialization writes: the claim key
// and the already-advanced schedule.
type Occurrence struct {
	StandingOrderID    int64
	OccurrenceDate     time.Time
	NextDeliveryDate   time.Time
	NextProcessingDate time.Time
}
