package standing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhouse-erp/packhouse-erp/internal/catalog/products"
	"github.com/packhouse-erp/packhouse-erp/internal/customers"
	"github.com/packhouse-erp/packhouse-erp/internal/notify"
	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

type mockRepository struct {
	orders map[int64]*StandingOrder
	// claims holds (standing order id, occurrence date) pairs, mirroring the
	// unique constraint on standing_order_runs.
	claims      map[string]struct{}
	nextID      int64
	nextOrderID int64
	// failMaterialize forces MaterializeOccurrence to error for the given id.
	failMaterialize map[int64]error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders:          make(map[int64]*StandingOrder),
		claims:          make(map[string]struct{}),
		failMaterialize: make(map[int64]error),
	}
}

func claimKey(id int64, occ time.Time) string {
	return fmt.Sprintf("%d#%s", id, occ.Format(time.DateOnly))
}

func (m *mockRepository) Get(_ context.Context, id int64) (*StandingOrder, error) {
	so, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *so
	copied.Items = append([]StandingOrderItem(nil), so.Items...)
	return &copied, nil
}

func (m *mockRepository) List(_ context.Context, includeInactive bool, _ shared.Pagination) ([]StandingOrder, int, error) {
	var out []StandingOrder
	for _, so := range m.orders {
		if !includeInactive && !so.Active {
			continue
		}
		out = append(out, *so)
	}
	return out, len(out), nil
}

func (m *mockRepository) ListDue(_ context.Context, today time.Time) ([]StandingOrder, error) {
	var out []StandingOrder
	for _, so := range m.orders {
		if DueForProcessing(*so, today) {
			copied := *so
			copied.Items = append([]StandingOrderItem(nil), so.Items...)
			out = append(out, copied)
		}
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, so StandingOrder) (int64, error) {
	m.nextID++
	so.ID = m.nextID
	so.Active = true
	m.orders[so.ID] = &so
	return so.ID, nil
}

func (m *mockRepository) Update(_ context.Context, so StandingOrder) error {
	if _, ok := m.orders[so.ID]; !ok {
		return ErrNotFound
	}
	existing := m.orders[so.ID]
	so.Active = existing.Active
	m.orders[so.ID] = &so
	return nil
}

func (m *mockRepository) Deactivate(_ context.Context, id int64) error {
	so, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	so.Active = false
	return nil
}

func (m *mockRepository) MaterializeOccurrence(_ context.Context, so *StandingOrder, occ Occurrence) (int64, error) {
	if err, ok := m.failMaterialize[so.ID]; ok {
		return 0, err
	}
	key := claimKey(occ.StandingOrderID, occ.OccurrenceDate)
	if _, claimed := m.claims[key]; claimed {
		return 0, ErrAlreadyProcessed
	}
	m.claims[key] = struct{}{}

	stored := m.orders[so.ID]
	stored.NextDeliveryDate = occ.NextDeliveryDate
	stored.NextProcessingDate = occ.NextProcessingDate
	processed := occ.OccurrenceDate
	stored.LastProcessedDate = &processed

	m.nextOrderID++
	return m.nextOrderID, nil
}

type stubCustomers struct {
	byID map[int64]*customers.Customer
}

func (s *stubCustomers) Get(_ context.Context, id int64) (*customers.Customer, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, errors.New("customer not found")
	}
	return c, nil
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

type stubNotifier struct {
	titles []string
}

func (s *stubNotifier) Notify(_ context.Context, title, _ string, _ notify.Severity) {
	s.titles = append(s.titles, title)
}

func testFixture(t *testing.T) (*Service, *mockRepository, *stubNotifier) {
	t.Helper()
	repo := newMockRepository()
	notifier := &stubNotifier{}
	svc := NewService(repo, newFakeCalendar(),
		&stubCustomers{byID: map[int64]*customers.Customer{7: {ID: 7, Name: "Greengrocer"}}},
		&stubProducts{byID: map[int64]*products.Product{1: {ID: 1, SKU: "APL-1", Name: "Apples"}}},
		notifier, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, notifier
}

func seedStandingOrder(repo *mockRepository, id int64, delivery time.Time) *StandingOrder {
	so := &StandingOrder{
		ID:               id,
		CustomerID:       7,
		CustomerName:     "Greengrocer",
		Frequency:        Weekly,
		DeliveryMethod:   "van",
		NextDeliveryDate: delivery,
		Active:           true,
		Items:            []StandingOrderItem{{ProductID: 1, Quantity: 5}},
	}
	repo.orders[id] = so
	if id > repo.nextID {
		repo.nextID = id
	}
	return so
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := testFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateStandingOrderRequest{
		CustomerID: 7, Frequency: "FORTNIGHTLY", DeliveryMethod: "van",
		NextDeliveryDate: date(2026, time.September, 7),
		Items:            []StandingItemReq{{ProductID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, ErrInvalidFrequency)

	_, err = svc.Create(ctx, CreateStandingOrderRequest{
		CustomerID: 7, Frequency: Weekly, DeliveryMethod: "van",
		NextDeliveryDate: date(2026, time.September, 7),
	})
	require.ErrorIs(t, err, ErrEmptyItems)

	// Saturday delivery is rejected.
	_, err = svc.Create(ctx, CreateStandingOrderRequest{
		CustomerID: 7, Frequency: Weekly, DeliveryMethod: "van",
		NextDeliveryDate: date(2026, time.September, 5),
		Items:            []StandingItemReq{{ProductID: 1, Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateComputesProcessingDate(t *testing.T) {
	svc, repo, _ := testFixture(t)

	// Far-future Monday delivery: not immediately due.
	delivery := time.Now().UTC().AddDate(0, 0, 21)
	for delivery.Weekday() != time.Monday {
		delivery = delivery.AddDate(0, 0, 1)
	}

	so, err := svc.Create(context.Background(), CreateStandingOrderRequest{
		CustomerID: 7, Frequency: Weekly, DeliveryMethod: "van",
		NextDeliveryDate: delivery,
		Items:            []StandingItemReq{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)
	// Monday delivery processes the Friday before.
	assert.Equal(t, time.Friday, so.NextProcessingDate.Weekday())
	assert.Nil(t, so.LastProcessedDate)
	assert.Empty(t, repo.claims)
}

func TestCreateMaterializesImmediatelyWhenWindowArrived(t *testing.T) {
	svc, repo, _ := testFixture(t)

	// Delivery within the processing window: the first occurrence is
	// materialized at creation time.
	delivery := time.Now().UTC()
	for !(&fakeCalendar{}).IsWorkingDay(context.Background(), delivery) {
		delivery = delivery.AddDate(0, 0, 1)
	}

	so, err := svc.Create(context.Background(), CreateStandingOrderRequest{
		CustomerID: 7, Frequency: Weekly, DeliveryMethod: "van",
		NextDeliveryDate: delivery,
		Items:            []StandingItemReq{{ProductID: 1, Quantity: 5}},
	})
	require.NoError(t, err)
	assert.Len(t, repo.claims, 1)
	require.NotNil(t, so.LastProcessedDate)
	// Schedule advanced one week.
	assert.Equal(t, delivery.AddDate(0, 0, 7).Format(time.DateOnly),
		so.NextDeliveryDate.Format(time.DateOnly))
}

func TestProcessDueMaterializesAndAdvances(t *testing.T) {
	svc, repo, _ := testFixture(t)
	delivery := date(2024, time.June, 3)
	seedStandingOrder(repo, 1, delivery)

	result, err := svc.ProcessDue(context.Background(), delivery)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Materialized)
	assert.Zero(t, result.Failed)

	so := repo.orders[1]
	assert.Equal(t, date(2024, time.June, 10), so.NextDeliveryDate)
	require.NotNil(t, so.LastProcessedDate)
	assert.Equal(t, delivery, *so.LastProcessedDate)
}

func TestProcessDueIsIdempotent(t *testing.T) {
	svc, repo, _ := testFixture(t)
	delivery := date(2024, time.June, 3)
	seedStandingOrder(repo, 1, delivery)

	first, err := svc.ProcessDue(context.Background(), delivery)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Materialized)

	// A second run for the same day finds nothing due.
	second, err := svc.ProcessDue(context.Background(), delivery)
	require.NoError(t, err)
	assert.Zero(t, second.Materialized)
	assert.Zero(t, second.Failed)
	assert.Len(t, repo.claims, 1)
}

func TestProcessDueLostClaimIsBenign(t *testing.T) {
	svc, repo, _ := testFixture(t)
	delivery := date(2024, time.June, 3)
	seedStandingOrder(repo, 1, delivery)

	// A concurrent run already claimed the occurrence but its schedule
	// update is not visible to this run's snapshot.
	repo.claims[claimKey(1, delivery)] = struct{}{}

	result, err := svc.ProcessDue(context.Background(), delivery)
	require.NoError(t, err)
	assert.Zero(t, result.Materialized)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Failed)
}

func TestProcessDueIsolatesFailures(t *testing.T) {
	svc, repo, notifier := testFixture(t)
	delivery := date(2024, time.June, 3)
	seedStandingOrder(repo, 1, delivery)
	seedStandingOrder(repo, 2, delivery)
	repo.failMaterialize[1] = errors.New("insert failed")

	result, err := svc.ProcessDue(context.Background(), delivery)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Materialized)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, notifier.titles, 1)
	assert.Equal(t, "Standing order failed", notifier.titles[0])
}

func TestProcessDueSkipsOnHoldCustomer(t *testing.T) {
	svc, repo, notifier := testFixture(t)
	delivery := date(2024, time.June, 3)
	so := seedStandingOrder(repo, 1, delivery)
	so.CustomerOnHold = true

	result, err := svc.ProcessDue(context.Background(), delivery)
	require.NoError(t, err)
	assert.Zero(t, result.Materialized)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, notifier.titles, 1)
	assert.Empty(t, repo.claims)
}

func TestDeactivateFreezesSchedule(t *testing.T) {
	svc, repo, _ := testFixture(t)
	delivery := date(2024, time.June, 3)
	seedStandingOrder(repo, 1, delivery)

	require.NoError(t, svc.Deactivate(context.Background(), 1))

	result, err := svc.ProcessDue(context.Background(), delivery)
	require.NoError(t, err)
	assert.Zero(t, result.Materialized)
}
