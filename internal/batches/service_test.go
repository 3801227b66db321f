package batches

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhouse-erp/packhouse-erp/internal/orders"
	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

type mockRepository struct {
	usages map[string]*BatchUsage
	// triples mirrors the unique constraint on batch_usage_orders.
	triples map[string]struct{}
	// failBatches forces Record to error for the given batch numbers.
	failBatches map[string]error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		usages:      make(map[string]*BatchUsage),
		triples:     make(map[string]struct{}),
		failBatches: make(map[string]error),
	}
}

func (m *mockRepository) Get(_ context.Context, batchNumber string) (*BatchUsage, error) {
	b, ok := m.usages[batchNumber]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", shared.ErrNotFound, batchNumber)
	}
	copied := *b
	return &copied, nil
}

func (m *mockRepository) List(_ context.Context, _ shared.Pagination) ([]BatchUsage, int, error) {
	var out []BatchUsage
	for _, b := range m.usages {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *mockRepository) ListIncomplete(_ context.Context, threshold decimal.Decimal) ([]BatchUsage, error) {
	var out []BatchUsage
	for _, b := range m.usages {
		if b.Remaining().GreaterThanOrEqual(threshold) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockRepository) Record(_ context.Context, u Usage, weight decimal.Decimal) (bool, error) {
	if err, ok := m.failBatches[u.BatchNumber]; ok {
		return false, err
	}
	triple := fmt.Sprintf("%s#%d#%d", u.BatchNumber, u.OrderID, u.ProductID)
	if _, done := m.triples[triple]; done {
		return false, nil
	}

	orderKnown := false
	prefix := fmt.Sprintf("%s#%d#", u.BatchNumber, u.OrderID)
	for key := range m.triples {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			orderKnown = true
			break
		}
	}
	m.triples[triple] = struct{}{}

	now := time.Now().UTC()
	b, ok := m.usages[u.BatchNumber]
	if !ok {
		m.usages[u.BatchNumber] = &BatchUsage{
			BatchNumber: u.BatchNumber,
			ProductID:   u.ProductID,
			ProductName: u.ProductName,
			TotalWeight: weight.Mul(decimal.NewFromInt(2)),
			UsedWeight:  weight,
			OrdersCount: 1,
			FirstUsed:   now,
			LastUsed:    now,
		}
		return true, nil
	}
	b.UsedWeight = b.UsedWeight.Add(weight)
	if !orderKnown {
		b.OrdersCount++
	}
	b.LastUsed = now
	return true, nil
}

func float64Ptr(v float64) *float64 { return &v }

func testService(repo *mockRepository) *Service {
	return NewService(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordUsageFirstUseCreatesEstimate(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)

	recorded, err := svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-100", OrderID: 1, ProductID: 5, ProductName: "Cheese",
		Quantity: 2, ManualWeight: float64Ptr(1200),
	})
	require.NoError(t, err)
	assert.True(t, recorded)

	b := repo.usages["B-100"]
	require.NotNil(t, b)
	assert.Equal(t, "1200", b.UsedWeight.String())
	// Initial capacity estimate is double the first usage.
	assert.Equal(t, "2400", b.TotalWeight.String())
	assert.Equal(t, 1, b.OrdersCount)
	assert.Equal(t, "1200", b.Remaining().String())
}

func TestRecordUsageDedup(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)
	usage := Usage{
		BatchNumber: "B-100", OrderID: 1, ProductID: 5, ProductName: "Cheese",
		Quantity: 2, ManualWeight: float64Ptr(1200),
	}

	recorded, err := svc.RecordUsage(context.Background(), usage)
	require.NoError(t, err)
	assert.True(t, recorded)

	// Identical resubmission changes nothing.
	recorded, err = svc.RecordUsage(context.Background(), usage)
	require.NoError(t, err)
	assert.False(t, recorded)

	b := repo.usages["B-100"]
	assert.Equal(t, "1200", b.UsedWeight.String())
	assert.Equal(t, 1, b.OrdersCount)
}

func TestRecordUsageAccumulates(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)

	_, err := svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-100", OrderID: 1, ProductID: 5, Quantity: 1, ManualWeight: float64Ptr(1000),
	})
	require.NoError(t, err)
	_, err = svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-100", OrderID: 2, ProductID: 5, Quantity: 1, ManualWeight: float64Ptr(500),
	})
	require.NoError(t, err)

	b := repo.usages["B-100"]
	assert.Equal(t, "1500", b.UsedWeight.String())
	assert.Equal(t, 2, b.OrdersCount)
	// Capacity estimate stays at double the first usage.
	assert.Equal(t, "2000", b.TotalWeight.String())
	assert.Equal(t, "500", b.Remaining().String())
}

func TestRecordUsageSameOrderDifferentProduct(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)

	_, err := svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-100", OrderID: 1, ProductID: 5, Quantity: 1, ManualWeight: float64Ptr(1000),
	})
	require.NoError(t, err)
	recorded, err := svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-100", OrderID: 1, ProductID: 6, Quantity: 1, ManualWeight: float64Ptr(300),
	})
	require.NoError(t, err)
	assert.True(t, recorded)

	b := repo.usages["B-100"]
	assert.Equal(t, "1300", b.UsedWeight.String())
	// Same order: counted once.
	assert.Equal(t, 1, b.OrdersCount)
}

func TestRecordUsageWeightFallback(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)

	// No manual weight: unit weight * quantity.
	recorded, err := svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-200", OrderID: 1, ProductID: 5, Quantity: 4, UnitWeight: float64Ptr(150),
	})
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Equal(t, "600", repo.usages["B-200"].UsedWeight.String())

	// No weight derivable: skipped entirely.
	recorded, err = svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-300", OrderID: 1, ProductID: 9, Quantity: 4,
	})
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.NotContains(t, repo.usages, "B-300")

	// Empty batch number: nothing to attribute.
	recorded, err = svc.RecordUsage(context.Background(), Usage{
		OrderID: 1, ProductID: 5, Quantity: 1, ManualWeight: float64Ptr(100),
	})
	require.NoError(t, err)
	assert.False(t, recorded)
}

func TestFinalizeOrderRecordsPickedLines(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)

	picked := 3
	unpicked := 0
	order := &orders.Order{
		ID: 42,
		Items: []orders.OrderItem{
			{ProductID: 5, ProductName: "Cheese", BatchNumber: "B-100",
				PickedQuantity: &picked, PickedWeight: float64Ptr(900)},
			{ProductID: 6, ProductName: "Apples", BatchNumber: "B-200",
				PickedQuantity: &picked, UnitWeight: float64Ptr(150)},
			// No batch number: ignored.
			{ProductID: 7, ProductName: "Bread", PickedQuantity: &picked},
			// Nothing picked: ignored.
			{ProductID: 8, ProductName: "Milk", BatchNumber: "B-300", PickedQuantity: &unpicked},
		},
	}

	require.NoError(t, svc.FinalizeOrder(context.Background(), order))
	assert.Len(t, repo.usages, 2)
	assert.Equal(t, "900", repo.usages["B-100"].UsedWeight.String())
	assert.Equal(t, "450", repo.usages["B-200"].UsedWeight.String())
	assert.NotContains(t, repo.usages, "B-300")
}

func TestFinalizeOrderIsolatesFailures(t *testing.T) {
	repo := newMockRepository()
	repo.failBatches["B-100"] = errors.New("store down")
	svc := testService(repo)

	picked := 1
	order := &orders.Order{
		ID: 42,
		Items: []orders.OrderItem{
			{ProductID: 5, BatchNumber: "B-100", PickedQuantity: &picked, PickedWeight: float64Ptr(100)},
			{ProductID: 6, BatchNumber: "B-200", PickedQuantity: &picked, PickedWeight: float64Ptr(200)},
		},
	}

	err := svc.FinalizeOrder(context.Background(), order)
	require.Error(t, err)
	// The failing line did not stop the next one.
	assert.Equal(t, "200", repo.usages["B-200"].UsedWeight.String())
}

func TestIncompleteReport(t *testing.T) {
	repo := newMockRepository()
	svc := testService(repo)

	_, err := svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-1", OrderID: 1, ProductID: 5, Quantity: 1, ManualWeight: float64Ptr(1000),
	})
	require.NoError(t, err)
	// B-1 now has 1000 remaining. Consume most of it.
	_, err = svc.RecordUsage(context.Background(), Usage{
		BatchNumber: "B-1", OrderID: 2, ProductID: 5, Quantity: 1, ManualWeight: float64Ptr(900),
	})
	require.NoError(t, err)

	report, err := svc.IncompleteReport(context.Background(), decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Empty(t, report)

	report, err = svc.IncompleteReport(context.Background(), decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "B-1", report[0].BatchNumber)

	_, err = svc.IncompleteReport(context.Background(), decimal.NewFromInt(-1))
	require.ErrorIs(t, err, shared.ErrValidation)
}
