package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Repository persists products in PostgreSQL.
type Repository interface {
	Get(ctx context.Context, id int64) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, includeInactive bool, page shared.Pagination) ([]Product, int, error)
	Create(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, p Product) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, sku, name, unit_weight, requires_weight_input, unit_label, is_active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (r *repository) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
	return scanProduct(row)
}

func (r *repository) List(ctx context.Context, includeInactive bool, page shared.Pagination) ([]Product, int, error) {
	page = page.Normalise()
	where := "WHERE is_active"
	if includeInactive {
		where = ""
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM products %s`, where)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM products %s ORDER BY name LIMIT $1 OFFSET $2`, productColumns, where),
		page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (int64, error) {
	var weight pgtype.Float8
	if p.UnitWeight != nil {
		weight = pgtype.Float8{Float64: *p.UnitWeight, Valid: true}
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, unit_weight, requires_weight_input, unit_label, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`,
		p.SKU, p.Name, weight, p.RequiresWeightInput, p.UnitLabel, p.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: sku %s", shared.ErrDuplicate, p.SKU)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, p Product) error {
	var weight pgtype.Float8
	if p.UnitWeight != nil {
		weight = pgtype.Float8{Float64: *p.UnitWeight, Valid: true}
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET sku = $2, name = $3, unit_weight = $4, requires_weight_input = $5,
		    unit_label = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.SKU, p.Name, weight, p.RequiresWeightInput, p.UnitLabel, p.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var weight pgtype.Float8
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &weight, &p.RequiresWeightInput,
		&p.UnitLabel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if weight.Valid {
		v := weight.Float64
		p.UnitWeight = &v
	}
	return &p, nil
}
