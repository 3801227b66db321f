package batches

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/packhouse-erp/packhouse-erp/internal/platform/db"
	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Repository persists the batch ledger.
type Repository interface {
	Get(ctx context.Context, batchNumber string) (*BatchUsage, error)
	List(ctx context.Context, page shared.Pagination) ([]BatchUsage, int, error)
	// ListIncomplete returns entries whose remaining capacity is at or above
	// the threshold, i.e. batches that look only partially consumed.
	ListIncomplete(ctx context.Context, threshold decimal.Decimal) ([]BatchUsage, error)
	// Record applies one usage atomically: claim the dedup triple, then
	// create or accumulate the ledger row. Returns false without writing when
	// the triple was already recorded.
	Record(ctx context.Context, u Usage, weight decimal.Decimal) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, batchNumber string) (*BatchUsage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT batch_number, product_id, product_name, total_weight::text, used_weight::text,
		       orders_count, first_used, last_used
		FROM batch_usages
		WHERE batch_number = $1`, batchNumber)
	b, err := scanUsage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: batch %s", shared.ErrNotFound, batchNumber)
		}
		return nil, err
	}
	return b, nil
}

func (r *repository) List(ctx context.Context, page shared.Pagination) ([]BatchUsage, int, error) {
	page = page.Normalise()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM batch_usages`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT batch_number, product_id, product_name, total_weight::text, used_weight::text,
		       orders_count, first_used, last_used
		FROM batch_usages
		ORDER BY last_used DESC
		LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := collectUsages(rows)
	return out, total, err
}

func (r *repository) ListIncomplete(ctx context.Context, threshold decimal.Decimal) ([]BatchUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT batch_number, product_id, product_name, total_weight::text, used_weight::text,
		       orders_count, first_used, last_used
		FROM batch_usages
		WHERE total_weight - used_weight >= $1
		ORDER BY last_used DESC`, threshold.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsages(rows)
}

func (r *repository) Record(ctx context.Context, u Usage, weight decimal.Decimal) (bool, error) {
	recorded := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var orderKnown bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM batch_usage_orders
				WHERE batch_number = $1 AND order_id = $2
			)`, u.BatchNumber, u.OrderID).Scan(&orderKnown)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO batch_usage_orders (batch_number, order_id, product_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (batch_number, order_id, product_id) DO NOTHING`,
			u.BatchNumber, u.OrderID, u.ProductID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Triple already counted.
			return nil
		}

		countBump := 1
		if orderKnown {
			countBump = 0
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO batch_usages (batch_number, product_id, product_name, total_weight,
				used_weight, orders_count, first_used, last_used)
			VALUES ($1, $2, $3, $4::numeric * 2, $4, 1, NOW(), NOW())
			ON CONFLICT (batch_number) DO UPDATE SET
				used_weight = batch_usages.used_weight + EXCLUDED.used_weight,
				orders_count = batch_usages.orders_count + $5,
				last_used = NOW()`,
			u.BatchNumber, u.ProductID, u.ProductName, weight.String(), countBump)
		if err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

func collectUsages(rows pgx.Rows) ([]BatchUsage, error) {
	var out []BatchUsage
	for rows.Next() {
		b, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsage(row rowScanner) (*BatchUsage, error) {
	var b BatchUsage
	var totalText, usedText string
	err := row.Scan(&b.BatchNumber, &b.ProductID, &b.ProductName, &totalText, &usedText,
		&b.OrdersCount, &b.FirstUsed, &b.LastUsed)
	if err != nil {
		return nil, err
	}
	if b.TotalWeight, err = decimal.NewFromString(totalText); err != nil {
		return nil, fmt.Errorf("parse total weight: %w", err)
	}
	if b.UsedWeight, err = decimal.NewFromString(usedText); err != nil {
		return nil, fmt.Errorf("parse used weight: %w", err)
	}
	return &b, nil
}
