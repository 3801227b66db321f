package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// DayLister is the slice of Repository the working-day rules need.
type DayLister interface {
	List(ctx context.Context) ([]NonWorkingDay, error)
}

// Service answers working-day questions for the scheduler and admin screens.
type Service struct {
	repo    DayLister
	admin   *Repository
	cache   *Cache
	logger  *slog.Logger
	horizon int
}

// NewService constructs the calendar service. admin may equal repo; it is the
// mutable repository used by the CRUD endpoints.
func NewService(repo DayLister, admin *Repository, cache *Cache, logger *slog.Logger, horizonDays int) *Service {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Service{repo: repo, admin: admin, cache: cache, logger: logger, horizon: horizonDays}
}

// exceptions loads the configured non-working dates keyed by YYYY-MM-DD.
// When the list cannot be loaded the calendar degrades to weekend-only rules
// rather than failing closed, so scheduling keeps functioning.
func (s *Service) exceptions(ctx context.Context) map[string]struct{} {
	if days, ok := s.cache.Get(ctx); ok {
		set := make(map[string]struct{}, len(days))
		for _, d := range days {
			set[d] = struct{}{}
		}
		return set
	}

	days, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn("calendar: non-working days unavailable, using weekend-only rules", slog.Any("error", err))
		return map[string]struct{}{}
	}

	keys := make([]string, 0, len(days))
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		k := dayKey(d.Day)
		keys = append(keys, k)
		set[k] = struct{}{}
	}
	s.cache.Set(ctx, keys)
	return set
}

// IsWorkingDay reports whether date falls on a working day.
func (s *Service) IsWorkingDay(ctx context.Context, date time.Time) bool {
	return isWorking(date, s.exceptions(ctx))
}

func isWorking(date time.Time, exceptions map[string]struct{}) bool {
	if isWeekend(date) {
		return false
	}
	_, blocked := exceptions[dayKey(date)]
	return !blocked
}

// NextWorkingDay returns the earliest working day strictly after from.
func (s *Service) NextWorkingDay(ctx context.Context, from time.Time) (time.Time, error) {
	exceptions := s.exceptions(ctx)
	day := DateOnly(from)
	for i := 0; i < s.horizon; i++ {
		day = day.AddDate(0, 0, 1)
		if isWorking(day, exceptions) {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w (searched %d days after %s)", ErrCalendarExhausted, s.horizon, dayKey(from))
}

// ProcessingDateFor returns the latest working day strictly before the
// delivery date. Standing orders are processed on that day.
func (s *Service) ProcessingDateFor(ctx context.Context, deliveryDate time.Time) (time.Time, error) {
	exceptions := s.exceptions(ctx)
	day := DateOnly(deliveryDate)
	for i := 0; i < s.horizon; i++ {
		day = day.AddDate(0, 0, -1)
		if isWorking(day, exceptions) {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w (searched %d days before %s)", ErrCalendarExhausted, s.horizon, dayKey(deliveryDate))
}

// ListNonWorkingDays returns the configured exception dates.
func (s *Service) ListNonWorkingDays(ctx context.Context) ([]NonWorkingDay, error) {
	return s.admin.List(ctx)
}

// AddNonWorkingDay configures a new exception date.
func (s *Service) AddNonWorkingDay(ctx context.Context, day time.Time, description string) (*NonWorkingDay, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", shared.ErrValidation)
	}
	if isWeekend(day) {
		return nil, fmt.Errorf("%w: %s is already a weekend", shared.ErrValidation, dayKey(day))
	}
	d, err := s.admin.Insert(ctx, day, description)
	if err != nil {
		return nil, fmt.Errorf("add non-working day: %w", err)
	}
	s.cache.Invalidate(ctx)
	return d, nil
}

// RemoveNonWorkingDay deletes an exception date.
func (s *Service) RemoveNonWorkingDay(ctx context.Context, id int64) error {
	if err := s.admin.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}
