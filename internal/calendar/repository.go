package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Repository persists non-working days in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all configured non-working days ordered by date.
func (r *Repository) List(ctx context.Context) ([]NonWorkingDay, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("calendar repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, day, description, created_at
		FROM non_working_days
		ORDER BY day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []NonWorkingDay
	for rows.Next() {
		var d NonWorkingDay
		if err := rows.Scan(&d.ID, &d.Day, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Day = DateOnly(d.Day)
		days = append(days, d)
	}
	return days, rows.Err()
}

// Insert adds a non-working day. Duplicate dates map to shared.ErrDuplicate.
func (r *Repository) Insert(ctx context.Context, day time.Time, description string) (*NonWorkingDay, error) {
	var d NonWorkingDay
	err := r.pool.QueryRow(ctx, `
		INSERT INTO non_working_days (day, description, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, day, description, created_at`,
		DateOnly(day), description).Scan(&d.ID, &d.Day, &d.Description, &d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	d.Day = DateOnly(d.Day)
	return &d, nil
}

// Delete removes a non-working day by id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM non_working_days WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
