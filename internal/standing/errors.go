package standing

import (
	"fmt"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

var (
	ErrNotFound         = fmt.Errorf("%w: standing order", shared.ErrNotFound)
	ErrInvalidFrequency = fmt.Errorf("%w: unknown frequency", shared.ErrValidation)
	ErrEmptyItems       = fmt.Errorf("%w: at least one item is required", shared.ErrValidation)
	ErrInactive         = fmt.Errorf("%w: standing order is deactivated", shared.ErrConflict)

	// ErrAlreadyProcessed signals that another worker claimed the same
	// occurrence first. It is benign: the occurrence exists exactly once.
	ErrAlreadyProcessed = fmt.Errorf("%w: occurrence already processed", shared.ErrDuplicate)
)
