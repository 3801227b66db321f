package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Service owns customer management rules.
type Service struct {
	repo Repository
}

// NewService constructs Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, includeInactive bool, page shared.Pagination) ([]Customer, int, error) {
	return s.repo.List(ctx, includeInactive, page)
}

func (s *Service) Create(ctx context.Context, c Customer) (*Customer, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	c.IsActive = true
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, c Customer) (*Customer, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, c.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return s.repo.Get(ctx, c.ID)
}

func validate(c Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: customer name is required", shared.ErrValidation)
	}
	if c.OnHold && strings.TrimSpace(c.HoldReason) == "" {
		return fmt.Errorf("%w: hold reason is required when placing a customer on hold", shared.ErrValidation)
	}
	return nil
}
