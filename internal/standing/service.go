package standing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/packhouse-erp/packhouse-erp/internal/calendar"
	"github.com/packhouse-erp/packhouse-erp/internal/catalog/products"
	"github.com/packhouse-erp/packhouse-erp/internal/customers"
	"github.com/packhouse-erp/packhouse-erp/internal/notify"
	"github.com/packhouse-erp/packhouse-erp/internal/observability"
	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// CustomerDirectory exposes the customer lookups the scheduler needs.
type CustomerDirectory interface {
	Get(ctx context.Context, id int64) (*customers.Customer, error)
}

// ProductCatalog exposes the product lookups the scheduler needs.
type ProductCatalog interface {
	Get(ctx context.Context, id int64) (*products.Product, error)
}

// Service owns standing-order templates and the daily materialization run.
type Service struct {
	repo      Repository
	cal       WorkingCalendar
	customers CustomerDirectory
	products  ProductCatalog
	notifier  notify.Notifier
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService constructs Service. notifier and metrics may be nil.
func NewService(repo Repository, cal WorkingCalendar, customerDir CustomerDirectory,
	catalog ProductCatalog, notifier notify.Notifier, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cal:       cal,
		customers: customerDir,
		products:  catalog,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*StandingOrder, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, includeInactive bool, page shared.Pagination) ([]StandingOrder, int, error) {
	return s.repo.List(ctx, includeInactive, page)
}

// Create validates and stores a new template. When the processing window for
// the first delivery has already arrived, the occurrence is materialized
// immediately instead of waiting for the next scheduled run.
func (s *Service) Create(ctx context.Context, req CreateStandingOrderRequest) (*StandingOrder, error) {
	if !req.Frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, req.Frequency)
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if _, err := s.customers.Get(ctx, req.CustomerID); err != nil {
		return nil, fmt.Errorf("resolve customer %d: %w", req.CustomerID, err)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", shared.ErrValidation)
		}
		if _, err := s.products.Get(ctx, item.ProductID); err != nil {
			return nil, fmt.Errorf("%w: product %d not found", shared.ErrValidation, item.ProductID)
		}
	}

	deliveryDate := calendar.DateOnly(req.NextDeliveryDate)
	if !s.cal.IsWorkingDay(ctx, deliveryDate) {
		return nil, fmt.Errorf("%w: %s is not a working day", shared.ErrValidation, deliveryDate.Format(time.DateOnly))
	}
	processingDate, err := s.cal.ProcessingDateFor(ctx, deliveryDate)
	if err != nil {
		return nil, fmt.Errorf("resolve processing date: %w", err)
	}

	so := StandingOrder{
		CustomerID:         req.CustomerID,
		Frequency:          req.Frequency,
		DayOfWeek:          req.DayOfWeek,
		DayOfMonth:         req.DayOfMonth,
		DeliveryMethod:     req.DeliveryMethod,
		Notes:              req.Notes,
		NextDeliveryDate:   deliveryDate,
		NextProcessingDate: processingDate,
	}
	for _, item := range req.Items {
		so.Items = append(so.Items, StandingOrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	id, err := s.repo.Create(ctx, so)
	if err != nil {
		return nil, fmt.Errorf("create standing order: %w", err)
	}

	immediate, err := ShouldProcessImmediately(ctx, s.cal, deliveryDate, time.Now().UTC())
	if err != nil {
		s.logger.Warn("immediate-processing check failed", slog.Int64("standing_order_id", id), slog.Any("error", err))
	} else if immediate {
		created, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if orderID, err := s.materializeOne(ctx, created); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
			s.report(ctx, *created, err)
		} else if err == nil {
			s.logger.Info("materialized standing order on creation",
				slog.Int64("standing_order_id", id), slog.Int64("order_id", orderID))
		}
	}

	return s.repo.Get(ctx, id)
}

// Update replaces the template's schedule and items.
func (s *Service) Update(ctx context.Context, id int64, req UpdateStandingOrderRequest) (*StandingOrder, error) {
	so, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !so.Active {
		return nil, ErrInactive
	}

	if req.Frequency != nil {
		if !req.Frequency.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, *req.Frequency)
		}
		so.Frequency = *req.Frequency
	}
	if req.DayOfWeek != nil {
		so.DayOfWeek = req.DayOfWeek
	}
	if req.DayOfMonth != nil {
		so.DayOfMonth = req.DayOfMonth
	}
	if req.DeliveryMethod != nil {
		so.DeliveryMethod = *req.DeliveryMethod
	}
	if req.Notes != nil {
		so.Notes = *req.Notes
	}
	if req.NextDeliveryDate != nil {
		deliveryDate := calendar.DateOnly(*req.NextDeliveryDate)
		if !s.cal.IsWorkingDay(ctx, deliveryDate) {
			return nil, fmt.Errorf("%w: %s is not a working day", shared.ErrValidation, deliveryDate.Format(time.DateOnly))
		}
		so.NextDeliveryDate = deliveryDate
	}
	processingDate, err := s.cal.ProcessingDateFor(ctx, so.NextDeliveryDate)
	if err != nil {
		return nil, fmt.Errorf("resolve processing date: %w", err)
	}
	so.NextProcessingDate = processingDate

	if len(req.Items) > 0 {
		so.Items = so.Items[:0]
		for _, item := range req.Items {
			if item.Quantity <= 0 {
				return nil, fmt.Errorf("%w: quantity must be greater than zero", shared.ErrValidation)
			}
			if _, err := s.products.Get(ctx, item.ProductID); err != nil {
				return nil, fmt.Errorf("%w: product %d not found", shared.ErrValidation, item.ProductID)
			}
			so.Items = append(so.Items, StandingOrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}

	if err := s.repo.Update(ctx, *so); err != nil {
		return nil, fmt.Errorf("update standing order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Deactivate freezes the schedule permanently.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

// ProcessDue materializes every due standing order. Per-order failures are
// reported and do not stop the batch; a lost claim race counts as skipped.
// Safe under concurrent invocation from the cron run and the manual trigger.
func (s *Service) ProcessDue(ctx context.Context, today time.Time) (ProcessResult, error) {
	due, err := s.repo.ListDue(ctx, calendar.DateOnly(today))
	if err != nil {
		return ProcessResult{}, fmt.Errorf("list due standing orders: %w", err)
	}

	var result ProcessResult
	for i := range due {
		so := due[i]
		if !DueForProcessing(so, today) {
			result.Skipped++
			continue
		}
		orderID, err := s.materializeOne(ctx, &so)
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			s.logger.Info("occurrence already claimed by a concurrent run",
				slog.Int64("standing_order_id", so.ID),
				slog.Time("occurrence", so.NextDeliveryDate))
			result.Skipped++
		case err != nil:
			s.report(ctx, so, err)
			result.Failed++
		default:
			s.logger.Info("materialized standing order",
				slog.Int64("standing_order_id", so.ID),
				slog.Int64("order_id", orderID),
				slog.Time("delivery", so.NextDeliveryDate))
			result.Materialized++
			result.OrderIDs = append(result.OrderIDs, orderID)
		}
	}

	s.logger.Info("standing order run finished",
		slog.Int("materialized", result.Materialized),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return result, nil
}

func (s *Service) materializeOne(ctx context.Context, so *StandingOrder) (int64, error) {
	if so.CustomerOnHold {
		return 0, fmt.Errorf("%w: customer %d is on hold", shared.ErrConflict, so.CustomerID)
	}
	if len(so.Items) == 0 {
		return 0, ErrEmptyItems
	}
	occ, err := NextOccurrence(ctx, s.cal, *so)
	if err != nil {
		return 0, fmt.Errorf("advance schedule: %w", err)
	}
	orderID, err := s.repo.MaterializeOccurrence(ctx, so, occ)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.OrdersMaterialized.Inc()
	}
	return orderID, nil
}

func (s *Service) report(ctx context.Context, so StandingOrder, err error) {
	s.logger.Error("standing order materialization failed",
		slog.Int64("standing_order_id", so.ID),
		slog.String("customer", so.CustomerName),
		slog.Any("error", err))
	if s.metrics != nil {
		s.metrics.MaterializeFailures.Inc()
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, "Standing order failed",
			fmt.Sprintf("Standing order %d (%s) could not be processed: %v", so.ID, so.CustomerName, err),
			notify.SeverityError)
	}
}
