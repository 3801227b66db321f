package orders

import (
	"fmt"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Domain errors for the order workflow.
var (
	ErrNotFound        = fmt.Errorf("%w: order", shared.ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("%w: order item", shared.ErrNotFound)
	ErrProductNotFound = fmt.Errorf("%w: product", shared.ErrNotFound)

	ErrCustomerOnHold  = fmt.Errorf("%w: customer is on hold", shared.ErrConflict)
	ErrOrderFinal      = fmt.Errorf("%w: order is already final", shared.ErrConflict)
	ErrItemsUnchecked  = fmt.Errorf("%w: order has unchecked items", shared.ErrConflict)
	ErrNoDistribution  = fmt.Errorf("%w: box distribution", shared.ErrNotFound)
	ErrOverPick        = fmt.Errorf("%w: picked quantity exceeds ordered quantity", shared.ErrValidation)
	ErrWeightRequired  = fmt.Errorf("%w: product requires a picked weight", shared.ErrValidation)
	ErrEmptyItems      = fmt.Errorf("%w: at least one item is required", shared.ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", shared.ErrValidation)
)
