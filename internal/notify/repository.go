package notify

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists notifications in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	if r == nil || r.pool == nil {
		return errors.New("notify repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, title, description, severity, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.Title, n.Description, string(n.Severity), n.CreatedAt)
	return err
}

func (r *Repository) List(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, description, severity, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var severity string
		if err := rows.Scan(&n.ID, &n.Title, &n.Description, &severity, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Severity = Severity(severity)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
