package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhouse-erp/packhouse-erp/internal/catalog/products"
	"github.com/packhouse-erp/packhouse-erp/internal/customers"
	"github.com/packhouse-erp/packhouse-erp/internal/notify"
	"github.com/packhouse-erp/packhouse-erp/internal/orders/boxing"
)

type mockRepository struct {
	orders        map[int64]*Order
	changes       map[int64][]Change
	distributions map[int64]boxing.Distribution
	// catalog backs the joined product columns the real repository reads
	// with its products join.
	catalog     map[int64]*products.Product
	nextOrderID int64
	nextItemID  int64
}

func newMockRepository(catalog map[int64]*products.Product) *mockRepository {
	return &mockRepository{
		orders:        make(map[int64]*Order),
		changes:       make(map[int64][]Change),
		distributions: make(map[int64]boxing.Distribution),
		catalog:       catalog,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *o
	copied.Items = append([]OrderItem(nil), o.Items...)
	return &copied, nil
}

func (m *mockRepository) List(_ context.Context, req ListRequest) ([]OrderWithCustomer, int, error) {
	var out []OrderWithCustomer
	for _, o := range m.orders {
		if req.Completed != (o.Status == StatusCompleted) {
			continue
		}
		out = append(out, OrderWithCustomer{Order: *o})
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(_ context.Context, o Order) (int64, error) {
	m.nextOrderID++
	o.ID = m.nextOrderID
	o.CreatedAt = time.Now()
	m.orders[o.ID] = &o
	return o.ID, nil
}

func (m *mockRepository) InsertItem(_ context.Context, item OrderItem) (int64, error) {
	o, ok := m.orders[item.OrderID]
	if !ok {
		return 0, ErrNotFound
	}
	m.nextItemID++
	item.ID = m.nextItemID
	if p, ok := m.catalog[item.ProductID]; ok {
		item.ProductName = p.Name
		item.UnitWeight = p.UnitWeight
		item.RequiresWeightInput = p.RequiresWeightInput
	}
	o.Items = append(o.Items, item)
	return item.ID, nil
}

func (m *mockRepository) GetItem(_ context.Context, orderID, itemID int64) (*OrderItem, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			copied := o.Items[i]
			return &copied, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *mockRepository) UpdateItemPick(_ context.Context, item OrderItem) error {
	o, ok := m.orders[item.OrderID]
	if !ok {
		return ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == item.ID {
			o.Items[i].PickedQuantity = item.PickedQuantity
			o.Items[i].PickedWeight = item.PickedWeight
			o.Items[i].BatchNumber = item.BatchNumber
			o.Items[i].Checked = item.Checked
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, orderID, itemID int64, quantity int) error {
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items[i].Quantity = quantity
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *mockRepository) UpdateHeader(_ context.Context, o Order) error {
	existing, ok := m.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	existing.RequiredDate = o.RequiredDate
	existing.DeliveryMethod = o.DeliveryMethod
	existing.Notes = o.Notes
	return nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id int64, status Status, completedAt *time.Time, cancelReason string) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.CompletedAt = completedAt
	o.CancelReason = cancelReason
	return nil
}

func (m *mockRepository) InsertChanges(_ context.Context, changes []Change) error {
	for _, c := range changes {
		m.changes[c.OrderID] = append(m.changes[c.OrderID], c)
	}
	return nil
}

func (m *mockRepository) ListChanges(_ context.Context, orderID int64) ([]Change, error) {
	return m.changes[orderID], nil
}

func (m *mockRepository) SaveDistribution(_ context.Context, orderID int64, dist boxing.Distribution) error {
	m.distributions[orderID] = dist
	return nil
}

func (m *mockRepository) GetDistribution(_ context.Context, orderID int64) (*boxing.Distribution, error) {
	dist, ok := m.distributions[orderID]
	if !ok {
		return nil, ErrNoDistribution
	}
	return &dist, nil
}

type stubCustomers struct {
	customer *customers.Customer
}

func (s *stubCustomers) Get(context.Context, int64) (*customers.Customer, error) {
	if s.customer == nil {
		return nil, errors.New("customer not found")
	}
	return s.customer, nil
}

type stubProducts struct {
	byID map[int64]*products.Product
}

func (s *stubProducts) Get(_ context.Context, id int64) (*products.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	return p, nil
}

type stubLedger struct {
	calls []int64
	err   error
}

func (s *stubLedger) FinalizeOrder(_ context.Context, o *Order) error {
	s.calls = append(s.calls, o.ID)
	return s.err
}

type stubNotifier struct {
	titles []string
}

func (s *stubNotifier) Notify(_ context.Context, title, _ string, _ notify.Severity) {
	s.titles = append(s.titles, title)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func float64Ptr(v float64) *float64 { return &v }

func testFixture(t *testing.T) (*Service, *mockRepository, *stubLedger, *stubNotifier) {
	t.Helper()
	byID := map[int64]*products.Product{
		1: {ID: 1, SKU: "APL-1", Name: "Apples", UnitWeight: float64Ptr(150)},
		2: {ID: 2, SKU: "CHS-1", Name: "Cheese wheel", RequiresWeightInput: true},
	}
	repo := newMockRepository(byID)
	ledger := &stubLedger{}
	notifier := &stubNotifier{}
	catalog := &stubProducts{byID: byID}
	directory := &stubCustomers{customer: &customers.Customer{ID: 7, Name: "Greengrocer"}}
	svc := NewService(repo, directory, catalog, ledger, notifier, nil, discardLogger())
	return svc, repo, ledger, notifier
}

func createTestOrder(t *testing.T, svc *Service) *Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:     7,
		RequiredDate:   time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		DeliveryMethod: "van",
		Items: []CreateOrderItemReq{
			{ProductID: 1, Quantity: 10},
			{ProductID: 2, Quantity: 2},
		},
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrder(t *testing.T) {
	svc, _, _, _ := testFixture(t)

	order := createTestOrder(t, svc)
	assert.Equal(t, StatusPending, order.Status)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, 10, order.Items[0].Quantity)
}

func TestCreateOrderRejectsOnHoldCustomer(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	svc.customers = &stubCustomers{customer: &customers.Customer{
		ID: 7, Name: "Greengrocer", OnHold: true, HoldReason: "unpaid invoices",
	}}

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:     7,
		RequiredDate:   time.Now(),
		DeliveryMethod: "van",
		Items:          []CreateOrderItemReq{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrCustomerOnHold)
}

func TestCreateOrderHoldOverride(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	svc.customers = &stubCustomers{customer: &customers.Customer{
		ID: 7, OnHold: true, HoldReason: "unpaid invoices",
	}}

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:     7,
		RequiredDate:   time.Now(),
		DeliveryMethod: "van",
		OverrideHold:   true,
		Items:          []CreateOrderItemReq{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, _, _ := testFixture(t)

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 7, RequiredDate: time.Now(), DeliveryMethod: "van",
	})
	require.ErrorIs(t, err, ErrEmptyItems)

	_, err = svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 7, RequiredDate: time.Now(), DeliveryMethod: "van",
		Items: []CreateOrderItemReq{{ProductID: 1, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 7, RequiredDate: time.Now(), DeliveryMethod: "van",
		Items: []CreateOrderItemReq{{ProductID: 99, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestPickItemMovesOrderToPicking(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	updated, err := svc.PickItem(context.Background(), order.ID, order.Items[0].ID, PickItemRequest{
		PickedQuantity: 10, BatchNumber: "B-101", Checked: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPicking, updated.Status)
	require.NotNil(t, updated.Items[0].PickedQuantity)
	assert.Equal(t, 10, *updated.Items[0].PickedQuantity)
	assert.Equal(t, "B-101", updated.Items[0].BatchNumber)
	assert.True(t, updated.Items[0].Checked)
}

func TestPickItemOverPickRequiresConfirmation(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	_, err := svc.PickItem(context.Background(), order.ID, order.Items[0].ID, PickItemRequest{
		PickedQuantity: 11,
	})
	require.ErrorIs(t, err, ErrOverPick)

	updated, err := svc.PickItem(context.Background(), order.ID, order.Items[0].ID, PickItemRequest{
		PickedQuantity: 11, AllowShortage: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, *updated.Items[0].PickedQuantity)
}

func TestPickItemWeightRequired(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	// Item 2 is the weight-input cheese wheel; the flag comes from the
	// product join, not the request.
	require.True(t, order.Items[1].RequiresWeightInput)
	_, err := svc.PickItem(context.Background(), order.ID, order.Items[1].ID, PickItemRequest{
		PickedQuantity: 2, Checked: true,
	})
	require.ErrorIs(t, err, ErrWeightRequired)

	_, err = svc.PickItem(context.Background(), order.ID, order.Items[1].ID, PickItemRequest{
		PickedQuantity: 2, PickedWeight: float64Ptr(2400), Checked: true,
	})
	require.NoError(t, err)
}

func TestCompleteRequiresAllItemsChecked(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	_, err := svc.PickItem(context.Background(), order.ID, order.Items[0].ID, PickItemRequest{
		PickedQuantity: 10, Checked: true,
	})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrItemsUnchecked)
}

func TestCompleteRunsBatchLedger(t *testing.T) {
	svc, _, ledger, _ := testFixture(t)
	order := createTestOrder(t, svc)

	checkAllItems(t, svc, order)
	completed, err := svc.Complete(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, []int64{order.ID}, ledger.calls)
}

func TestCompleteSurvivesLedgerFailure(t *testing.T) {
	svc, _, ledger, notifier := testFixture(t)
	ledger.err = errors.New("ledger down")
	order := createTestOrder(t, svc)

	checkAllItems(t, svc, order)
	completed, err := svc.Complete(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	require.Len(t, notifier.titles, 1)
	assert.Equal(t, "Batch recording failed", notifier.titles[0])
}

func TestCompleteIsTerminal(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	checkAllItems(t, svc, order)
	_, err := svc.Complete(context.Background(), order.ID)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrOrderFinal)
	_, err = svc.Cancel(context.Background(), order.ID, "changed mind")
	require.ErrorIs(t, err, ErrOrderFinal)
}

func TestCancelRecordsReason(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	cancelled, err := svc.Cancel(context.Background(), order.ID, "customer closed")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "customer closed", cancelled.CancelReason)
}

func TestEditOpenOrderMutatesInPlace(t *testing.T) {
	svc, repo, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	newDate := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	edited, err := svc.Edit(context.Background(), order.ID, EditOrderRequest{
		RequiredDate: &newDate,
		Items:        []CreateOrderItemReq{{ProductID: 1, Quantity: 20}},
	})
	require.NoError(t, err)
	assert.Equal(t, order.ID, edited.ID)
	assert.Equal(t, newDate, edited.RequiredDate)
	assert.Equal(t, 20, edited.Items[0].Quantity)
	assert.Len(t, repo.orders, 1)
}

func TestEditCompletedOrderCreatesModifiedCopy(t *testing.T) {
	svc, repo, _, _ := testFixture(t)
	order := createTestOrder(t, svc)
	checkAllItems(t, svc, order)
	_, err := svc.Complete(context.Background(), order.ID)
	require.NoError(t, err)

	newMethod := "courier"
	copyOrder, err := svc.Edit(context.Background(), order.ID, EditOrderRequest{
		DeliveryMethod: &newMethod,
		Items:          []CreateOrderItemReq{{ProductID: 1, Quantity: 15}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, order.ID, copyOrder.ID)
	assert.Equal(t, StatusModified, copyOrder.Status)
	require.NotNil(t, copyOrder.SourceOrderID)
	assert.Equal(t, order.ID, *copyOrder.SourceOrderID)
	assert.Equal(t, "courier", copyOrder.DeliveryMethod)

	// Original untouched.
	original, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, original.Status)
	assert.Equal(t, "van", original.DeliveryMethod)

	changes, err := svc.ListChanges(context.Background(), copyOrder.ID)
	require.NoError(t, err)
	fields := make([]string, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Contains(t, fields, "delivery_method")
	assert.Contains(t, fields, "item:APL-1")
	assert.Len(t, repo.orders, 2)
}

func TestDistributionPreviewAndSave(t *testing.T) {
	svc, repo, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	req := DistributionRequest{Settings: []ItemBoxSettings{
		{OrderItemID: order.Items[0].ID, BoxCount: 3},
	}}

	preview, err := svc.PreviewDistribution(context.Background(), order.ID, req)
	require.NoError(t, err)
	assert.Len(t, preview.Boxes, 3)
	assert.Empty(t, repo.distributions)

	saved, err := svc.SaveDistribution(context.Background(), order.ID, req)
	require.NoError(t, err)
	assert.Len(t, saved.Boxes, 3)

	stored, err := svc.GetDistribution(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.TotalWeight.String(), stored.TotalWeight.String())
}

func TestGetDistributionWithoutPlan(t *testing.T) {
	svc, _, _, _ := testFixture(t)
	order := createTestOrder(t, svc)

	_, err := svc.GetDistribution(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrNoDistribution)
}

func checkAllItems(t *testing.T, svc *Service, order *Order) {
	t.Helper()
	for _, item := range order.Items {
		req := PickItemRequest{PickedQuantity: item.Quantity, BatchNumber: "B-1", Checked: true}
		if item.RequiresWeightInput {
			req.PickedWeight = float64Ptr(1200)
		}
		_, err := svc.PickItem(context.Background(), order.ID, item.ID, req)
		require.NoError(t, err)
	}
}
