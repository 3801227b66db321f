package batches

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/packhouse-erp/packhouse-erp/internal/observability"
	"github.com/packhouse-erp/packhouse-erp/internal/orders"
	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Service owns batch usage accounting. It implements orders.BatchLedger.
type Service struct {
	repo    Repository
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService constructs Service. metrics may be nil.
func NewService(repo Repository, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, metrics: metrics, logger: logger}
}

func (s *Service) Get(ctx context.Context, batchNumber string) (*BatchUsage, error) {
	return s.repo.Get(ctx, batchNumber)
}

func (s *Service) List(ctx context.Context, page shared.Pagination) ([]BatchUsage, int, error) {
	return s.repo.List(ctx, page)
}

// RemainingCapacity is informational: recording never rejects on
// over-capacity.
func (s *Service) RemainingCapacity(ctx context.Context, batchNumber string) (decimal.Decimal, error) {
	b, err := s.repo.Get(ctx, batchNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Remaining(), nil
}

// IncompleteReport lists batches that still show remaining capacity at or
// above the threshold (grams).
func (s *Service) IncompleteReport(ctx context.Context, threshold decimal.Decimal) ([]BatchUsage, error) {
	if threshold.IsNegative() {
		return nil, fmt.Errorf("%w: threshold must not be negative", shared.ErrValidation)
	}
	return s.repo.ListIncomplete(ctx, threshold)
}

// RecordUsage attributes one picked line to its batch. At most one recording
// per (order, product, batch) triple; resubmissions are no-ops. Returns
// whether anything was written.
func (s *Service) RecordUsage(ctx context.Context, u Usage) (bool, error) {
	if u.BatchNumber == "" {
		return false, nil
	}
	weight := usageWeight(u)
	if !weight.IsPositive() {
		// Nothing to attribute.
		return false, nil
	}

	recorded, err := s.repo.Record(ctx, u, weight)
	if err != nil {
		return false, fmt.Errorf("record batch usage %s: %w", u.BatchNumber, err)
	}
	if s.metrics != nil {
		if recorded {
			s.metrics.BatchUsagesRecorded.Inc()
		} else {
			s.metrics.BatchUsagesDeduped.Inc()
		}
	}
	return recorded, nil
}

// FinalizeOrder records usage for every picked line carrying a batch number.
// Each line is attempted even when earlier ones fail; the joined error is
// returned for reporting.
func (s *Service) FinalizeOrder(ctx context.Context, o *orders.Order) error {
	var errs []error
	for _, item := range o.Items {
		if item.BatchNumber == "" || item.PickedQuantity == nil || *item.PickedQuantity <= 0 {
			continue
		}
		_, err := s.RecordUsage(ctx, Usage{
			BatchNumber:  item.BatchNumber,
			OrderID:      o.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     *item.PickedQuantity,
			ManualWeight: item.PickedWeight,
			UnitWeight:   item.UnitWeight,
		})
		if err != nil {
			s.logger.Error("batch usage recording failed",
				slog.Int64("order_id", o.ID),
				slog.String("batch", item.BatchNumber),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// usageWeight picks the manual weight when positive, else estimates from the
// catalog unit weight.
func usageWeight(u Usage) decimal.Decimal {
	if u.ManualWeight != nil && *u.ManualWeight > 0 {
		return decimal.NewFromFloat(*u.ManualWeight)
	}
	if u.UnitWeight != nil && u.Quantity > 0 {
		return decimal.NewFromFloat(*u.UnitWeight).Mul(decimal.NewFromInt(int64(u.Quantity)))
	}
	return decimal.Zero
}
