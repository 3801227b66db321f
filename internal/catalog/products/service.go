package products

import (
	"context"
	"fmt"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Service owns product catalog rules.
type Service struct {
	repo Repository
}

// NewService constructs Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, includeInactive bool, page shared.Pagination) ([]Product, int, error) {
	return s.repo.List(ctx, includeInactive, page)
}

func (s *Service) Create(ctx context.Context, p Product) (*Product, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	p.IsActive = true
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, p Product) (*Product, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, p.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.repo.Get(ctx, p.ID)
}
