package products

import (
	"fmt"
	"strings"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

func validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: product sku is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}
	if p.UnitWeight != nil && *p.UnitWeight <= 0 {
		return fmt.Errorf("%w: unit weight must be positive", shared.ErrValidation)
	}
	if p.UnitWeight == nil && !p.RequiresWeightInput {
		return fmt.Errorf("%w: product needs either a unit weight or weight input at picking", shared.ErrValidation)
	}
	return nil
}
