package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/packhouse-erp/packhouse-erp/internal/catalog/products"
	"github.com/packhouse-erp/packhouse-erp/internal/customers"
	"github.com/packhouse-erp/packhouse-erp/internal/notify"
	"github.com/packhouse-erp/packhouse-erp/internal/observability"
	"github.com/packhouse-erp/packhouse-erp/internal/orders/boxing"
)

// CustomerDirectory exposes the customer lookups the order workflow needs.
type CustomerDirectory interface {
	Get(ctx context.Context, id int64) (*customers.Customer, error)
}

// ProductCatalog exposes the product lookups the order workflow needs.
type ProductCatalog interface {
	Get(ctx context.Context, id int64) (*products.Product, error)
}

// BatchLedger records batch consumption when an order completes. Ledger
// failures must not roll back the completion itself.
type BatchLedger interface {
	FinalizeOrder(ctx context.Context, o *Order) error
}

// Service owns the order lifecycle: creation, picking, completion,
// cancellation, the modified-copy edit flow and box distribution.
type Service struct {
	repo      Repository
	customers CustomerDirectory
	products  ProductCatalog
	ledger    BatchLedger
	notifier  notify.Notifier
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService constructs Service. ledger and metrics may be nil.
func NewService(repo Repository, customerDir CustomerDirectory, catalog ProductCatalog,
	ledger BatchLedger, notifier notify.Notifier, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		customers: customerDir,
		products:  catalog,
		ledger:    ledger,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListRequest) ([]OrderWithCustomer, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) ListChanges(ctx context.Context, orderID int64) ([]Change, error) {
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListChanges(ctx, orderID)
}

// Create validates the request against the customer hold state and the
// product catalog, then inserts the order and its items in one transaction.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	customer, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %d: %w", req.CustomerID, err)
	}
	if customer.OnHold && !req.OverrideHold {
		return nil, fmt.Errorf("%w: %s", ErrCustomerOnHold, customer.HoldReason)
	}

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidQuantity, item.ProductID)
		}
		if _, err := s.products.Get(ctx, item.ProductID); err != nil {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
	}

	orderDate := time.Now().UTC()
	if req.OrderDate != nil {
		orderDate = *req.OrderDate
	}

	var orderID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		id, err := tx.Create(ctx, Order{
			CustomerID:     req.CustomerID,
			OrderDate:      orderDate,
			RequiredDate:   req.RequiredDate,
			DeliveryMethod: req.DeliveryMethod,
			Status:         StatusPending,
			Notes:          req.Notes,
		})
		if err != nil {
			return err
		}
		orderID = id
		for _, item := range req.Items {
			if _, err := tx.InsertItem(ctx, OrderItem{
				OrderID:   id,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return s.repo.Get(ctx, orderID)
}

// PickItem records a warehouse pick on one line and moves a PENDING order
// into PICKING on its first pick.
func (s *Service) PickItem(ctx context.Context, orderID, itemID int64, req PickItemRequest) (*Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, ErrOrderFinal
	}

	item, err := s.repo.GetItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}

	if req.PickedQuantity > item.Quantity && !req.AllowShortage {
		return nil, fmt.Errorf("%w: %d > %d", ErrOverPick, req.PickedQuantity, item.Quantity)
	}
	if req.Checked && item.RequiresWeightInput && req.PickedWeight == nil {
		return nil, fmt.Errorf("%w: %s", ErrWeightRequired, item.ProductName)
	}

	picked := req.PickedQuantity
	item.PickedQuantity = &picked
	item.PickedWeight = req.PickedWeight
	item.BatchNumber = req.BatchNumber
	item.Checked = req.Checked

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdateItemPick(ctx, *item); err != nil {
			return err
		}
		if order.Status == StatusPending {
			return tx.UpdateStatus(ctx, orderID, StatusPicking, nil, "")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pick item: %w", err)
	}

	return s.repo.Get(ctx, orderID)
}

// Complete finalizes a picked order. Every item must be checked off; lines
// picked short are accepted as-is. Batch ledger recording happens after the
// status flip and its failures are reported, not rolled back into the order.
func (s *Service) Complete(ctx context.Context, orderID int64) (*Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, ErrOrderFinal
	}
	for _, item := range order.Items {
		if !item.Checked {
			return nil, fmt.Errorf("%w: %s", ErrItemsUnchecked, item.ProductName)
		}
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, orderID, StatusCompleted, &now, ""); err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}
	order.Status = StatusCompleted
	order.CompletedAt = &now

	if s.ledger != nil {
		if err := s.ledger.FinalizeOrder(ctx, order); err != nil {
			s.logger.Error("batch ledger recording failed",
				slog.Int64("order_id", orderID), slog.Any("error", err))
			if s.notifier != nil {
				s.notifier.Notify(ctx, "Batch recording failed",
					fmt.Sprintf("Order %d completed but batch usage could not be recorded: %v", orderID, err),
					notify.SeverityError)
			}
		}
	}

	return s.repo.Get(ctx, orderID)
}

// MarkMissingItems flags an in-progress order whose remaining lines cannot
// be fulfilled right now.
func (s *Service) MarkMissingItems(ctx context.Context, orderID int64) (*Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, ErrOrderFinal
	}
	if err := s.repo.UpdateStatus(ctx, orderID, StatusMissingItems, nil, ""); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, orderID)
}

// Cancel is terminal and requires an explicit reason.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string) (*Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, ErrOrderFinal
	}
	if err := s.repo.UpdateStatus(ctx, orderID, StatusCancelled, nil, reason); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	return s.repo.Get(ctx, orderID)
}

// Edit applies header and item changes. Open orders are mutated in place;
// completed orders are never touched — the edit produces a MODIFIED copy
// referencing the original, with the field deltas recorded as order changes.
func (s *Service) Edit(ctx context.Context, orderID int64, req EditOrderRequest) (*Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return nil, ErrOrderFinal
	}
	if order.Status == StatusCompleted {
		return s.createModifiedCopy(ctx, order, req)
	}

	if req.RequiredDate != nil {
		order.RequiredDate = *req.RequiredDate
	}
	if req.DeliveryMethod != nil {
		order.DeliveryMethod = *req.DeliveryMethod
	}
	if req.Notes != nil {
		order.Notes = *req.Notes
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidQuantity, item.ProductID)
		}
		if _, err := s.products.Get(ctx, item.ProductID); err != nil {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdateHeader(ctx, *order); err != nil {
			return err
		}
		for _, item := range req.Items {
			found := false
			for i := range order.Items {
				if order.Items[i].ProductID == item.ProductID {
					found = true
					if err := tx.UpdateItemQuantity(ctx, orderID, order.Items[i].ID, item.Quantity); err != nil {
						return err
					}
					break
				}
			}
			if !found {
				if _, err := tx.InsertItem(ctx, OrderItem{
					OrderID:   orderID,
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("edit order: %w", err)
	}
	return s.repo.Get(ctx, orderID)
}

// createModifiedCopy clones the completed order with the edits applied and
// records field-level deltas against the copy.
func (s *Service) createModifiedCopy(ctx context.Context, original *Order, req EditOrderRequest) (*Order, error) {
	copyOrder := Order{
		CustomerID:     original.CustomerID,
		OrderDate:      original.OrderDate,
		RequiredDate:   original.RequiredDate,
		DeliveryMethod: original.DeliveryMethod,
		Status:         StatusModified,
		SourceOrderID:  &original.ID,
		Notes:          original.Notes,
	}

	var changes []Change
	if req.RequiredDate != nil && !req.RequiredDate.Equal(original.RequiredDate) {
		changes = append(changes, Change{
			Field:    "required_date",
			Previous: original.RequiredDate.Format(time.DateOnly),
			Current:  req.RequiredDate.Format(time.DateOnly),
		})
		copyOrder.RequiredDate = *req.RequiredDate
	}
	if req.DeliveryMethod != nil && *req.DeliveryMethod != original.DeliveryMethod {
		changes = append(changes, Change{
			Field:    "delivery_method",
			Previous: original.DeliveryMethod,
			Current:  *req.DeliveryMethod,
		})
		copyOrder.DeliveryMethod = *req.DeliveryMethod
	}
	if req.Notes != nil && *req.Notes != original.Notes {
		changes = append(changes, Change{
			Field:    "notes",
			Previous: original.Notes,
			Current:  *req.Notes,
		})
		copyOrder.Notes = *req.Notes
	}

	items := make([]OrderItem, 0, len(original.Items))
	if len(req.Items) > 0 {
		previousQty := make(map[int64]int, len(original.Items))
		for _, item := range original.Items {
			previousQty[item.ProductID] = item.Quantity
		}
		for _, item := range req.Items {
			if item.Quantity <= 0 {
				return nil, fmt.Errorf("%w: product %d", ErrInvalidQuantity, item.ProductID)
			}
			product, err := s.products.Get(ctx, item.ProductID)
			if err != nil {
				return nil, fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
			}
			if prev, ok := previousQty[item.ProductID]; !ok || prev != item.Quantity {
				previous := ""
				if ok {
					previous = fmt.Sprintf("%d", prev)
				}
				changes = append(changes, Change{
					Field:    fmt.Sprintf("item:%s", product.SKU),
					Previous: previous,
					Current:  fmt.Sprintf("%d", item.Quantity),
				})
			}
			items = append(items, OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	} else {
		for _, item := range original.Items {
			items = append(items, OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}

	var copyID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		id, err := tx.Create(ctx, copyOrder)
		if err != nil {
			return err
		}
		copyID = id
		for _, item := range items {
			item.OrderID = id
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		for i := range changes {
			changes[i].OrderID = id
		}
		return tx.InsertChanges(ctx, changes)
	})
	if err != nil {
		return nil, fmt.Errorf("create modified copy: %w", err)
	}

	s.logger.Info("created modified copy of completed order",
		slog.Int64("source_order_id", original.ID), slog.Int64("order_id", copyID))
	return s.repo.Get(ctx, copyID)
}

// PreviewDistribution runs the boxing engine without persisting anything.
func (s *Service) PreviewDistribution(ctx context.Context, orderID int64, req DistributionRequest) (*boxing.Distribution, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dist := s.generate(order, req)
	if s.metrics != nil {
		s.metrics.DistributionsComputed.Inc()
	}
	return &dist, nil
}

// SaveDistribution computes and persists the box plan, replacing any prior
// plan for the order and stamping item box numbers, all in one transaction.
func (s *Service) SaveDistribution(ctx context.Context, orderID int64, req DistributionRequest) (*boxing.Distribution, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return nil, ErrOrderFinal
	}
	dist := s.generate(order, req)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.SaveDistribution(ctx, orderID, dist)
	})
	if err != nil {
		return nil, fmt.Errorf("save distribution: %w", err)
	}
	if s.metrics != nil {
		s.metrics.DistributionsComputed.Inc()
	}
	return &dist, nil
}

// GetDistribution returns the persisted plan; it never regenerates.
func (s *Service) GetDistribution(ctx context.Context, orderID int64) (*boxing.Distribution, error) {
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetDistribution(ctx, orderID)
}

func (s *Service) generate(order *Order, req DistributionRequest) boxing.Distribution {
	settings := make(map[int64]boxing.Settings, len(req.Settings))
	quantities := make(map[int64]int, len(order.Items))
	for _, item := range order.Items {
		quantities[item.ID] = item.Quantity
	}
	for _, in := range req.Settings {
		qty, ok := quantities[in.OrderItemID]
		if !ok {
			continue
		}
		s := boxing.DefaultSettings(qty)
		switch {
		case in.BoxCount > 0:
			s = s.WithBoxCount(qty, in.BoxCount)
		case in.ItemsPerBox > 0:
			s = s.WithItemsPerBox(qty, in.ItemsPerBox)
		}
		settings[in.OrderItemID] = s
	}

	items := make([]boxing.Item, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, boxing.Item{
			OrderItemID:         item.ID,
			ProductID:           item.ProductID,
			ProductName:         item.ProductName,
			Quantity:            item.Quantity,
			UnitWeight:          item.UnitWeight,
			RequiresWeightInput: item.RequiresWeightInput,
			PickedWeight:        item.PickedWeight,
		})
	}
	return boxing.Generate(items, settings)
}
