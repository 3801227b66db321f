package standing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packhouse-erp/packhouse-erp/internal/platform/db"
	"github.com/packhouse-erp/packhouse-erp/internal/shared"
)

// Repository persists standing orders and owns the materialization
// transaction.
type Repository interface {
	Get(ctx context.Context, id int64) (*StandingOrder, error)
	List(ctx context.Context, includeInactive bool, page shared.Pagination) ([]StandingOrder, int, error)
	ListDue(ctx context.Context, today time.Time) ([]StandingOrder, error)
	Create(ctx context.Context, so StandingOrder) (int64, error)
	Update(ctx context.Context, so StandingOrder) error
	Deactivate(ctx context.Context, id int64) error
	// MaterializeOccurrence claims the occurrence and generates its order in
	// one transaction. Returns ErrAlreadyProcessed when another run holds the
	// claim.
	MaterializeOccurrence(ctx context.Context, so *StandingOrder, occ Occurrence) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const standingColumns = `s.id, s.customer_id, s.frequency, s.day_of_week, s.day_of_month,
	s.delivery_method, s.notes, s.next_delivery_date, s.next_processing_date,
	s.last_processed_date, s.active, s.created_at, s.updated_at,
	c.name, c.on_hold`

func (r *repository) Get(ctx context.Context, id int64) (*StandingOrder, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+standingColumns+`
		FROM standing_orders s
		JOIN customers c ON c.id = s.customer_id
		WHERE s.id = $1`, id)
	so, err := scanStandingOrder(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, so); err != nil {
		return nil, err
	}
	return so, nil
}

func (r *repository) loadItems(ctx context.Context, so *StandingOrder) error {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.standing_order_id, i.product_id, i.quantity, p.name
		FROM standing_order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.standing_order_id = $1
		ORDER BY i.id`, so.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item StandingOrderItem
		if err := rows.Scan(&item.ID, &item.StandingOrderID, &item.ProductID, &item.Quantity, &item.ProductName); err != nil {
			return err
		}
		so.Items = append(so.Items, item)
	}
	return rows.Err()
}

func (r *repository) List(ctx context.Context, includeInactive bool, page shared.Pagination) ([]StandingOrder, int, error) {
	page = page.Normalise()
	filter := "WHERE s.active"
	if includeInactive {
		filter = ""
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM standing_orders s `+filter).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+standingColumns+`
		FROM standing_orders s
		JOIN customers c ON c.id = s.customer_id
		`+filter+`
		ORDER BY s.next_delivery_date, s.id
		LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []StandingOrder
	for rows.Next() {
		so, err := scanStandingOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *so)
	}
	return out, total, rows.Err()
}

func (r *repository) ListDue(ctx context.Context, today time.Time) ([]StandingOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+standingColumns+`
		FROM standing_orders s
		JOIN customers c ON c.id = s.customer_id
		WHERE s.active
		  AND s.next_delivery_date <= $1
		  AND (s.last_processed_date IS NULL OR s.last_processed_date < s.next_delivery_date)
		ORDER BY s.id`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StandingOrder
	for rows.Next() {
		so, err := scanStandingOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *so)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *repository) Create(ctx context.Context, so StandingOrder) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO standing_orders (customer_id, frequency, day_of_week, day_of_month,
				delivery_method, notes, next_delivery_date, next_processing_date, active,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NOW(), NOW())
			RETURNING id`,
			so.CustomerID, so.Frequency, intOrNull(so.DayOfWeek), intOrNull(so.DayOfMonth),
			so.DeliveryMethod, so.Notes, so.NextDeliveryDate, so.NextProcessingDate).Scan(&id)
		if err != nil {
			return err
		}
		for _, item := range so.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO standing_order_items (standing_order_id, product_id, quantity)
				VALUES ($1, $2, $3)`, id, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, so StandingOrder) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE standing_orders
			SET frequency = $2, day_of_week = $3, day_of_month = $4, delivery_method = $5,
				notes = $6, next_delivery_date = $7, next_processing_date = $8, updated_at = NOW()
			WHERE id = $1 AND active`,
			so.ID, so.Frequency, intOrNull(so.DayOfWeek), intOrNull(so.DayOfMonth),
			so.DeliveryMethod, so.Notes, so.NextDeliveryDate, so.NextProcessingDate)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM standing_order_items WHERE standing_order_id = $1`, so.ID); err != nil {
			return err
		}
		for _, item := range so.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO standing_order_items (standing_order_id, product_id, quantity)
				VALUES ($1, $2, $3)`, so.ID, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE standing_orders SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MaterializeOccurrence inserts the occurrence claim, the generated order
// with its items, and the advanced schedule atomically. The UNIQUE
// constraint on (standing_order_id, occurrence_date) is the concurrency
// gate: the second of two simultaneous runs fails the claim insert and maps
// to ErrAlreadyProcessed, leaving exactly one order.
func (r *repository) MaterializeOccurrence(ctx context.Context, so *StandingOrder, occ Occurrence) (int64, error) {
	var orderID int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var runID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO standing_order_runs (standing_order_id, occurrence_date, processed_at)
			VALUES ($1, $2, NOW())
			RETURNING id`, occ.StandingOrderID, occ.OccurrenceDate).Scan(&runID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyProcessed
			}
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO orders (customer_id, order_date, required_date, delivery_method, status,
				from_standing_order_id, notes, created_at, updated_at)
			VALUES ($1, NOW(), $2, $3, 'PENDING', $4, $5, NOW(), NOW())
			RETURNING id`,
			so.CustomerID, occ.OccurrenceDate, so.DeliveryMethod, so.ID, so.Notes).Scan(&orderID)
		if err != nil {
			return err
		}
		for _, item := range so.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, quantity, batch_number, checked, created_at, updated_at)
				VALUES ($1, $2, $3, '', FALSE, NOW(), NOW())`,
				orderID, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE standing_order_runs SET order_id = $2 WHERE id = $1`, runID, orderID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE standing_orders
			SET next_delivery_date = $2, next_processing_date = $3,
				last_processed_date = $4, updated_at = NOW()
			WHERE id = $1`,
			so.ID, occ.NextDeliveryDate, occ.NextProcessingDate, occ.OccurrenceDate)
		return err
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStandingOrder(row rowScanner) (*StandingOrder, error) {
	var so StandingOrder
	var dayOfWeek, dayOfMonth pgtype.Int4
	var lastProcessed pgtype.Date
	err := row.Scan(&so.ID, &so.CustomerID, &so.Frequency, &dayOfWeek, &dayOfMonth,
		&so.DeliveryMethod, &so.Notes, &so.NextDeliveryDate, &so.NextProcessingDate,
		&lastProcessed, &so.Active, &so.CreatedAt, &so.UpdatedAt,
		&so.CustomerName, &so.CustomerOnHold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if dayOfWeek.Valid {
		v := int(dayOfWeek.Int32)
		so.DayOfWeek = &v
	}
	if dayOfMonth.Valid {
		v := int(dayOfMonth.Int32)
		so.DayOfMonth = &v
	}
	if lastProcessed.Valid {
		t := lastProcessed.Time
		so.LastProcessedDate = &t
	}
	return &so, nil
}

func intOrNull(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}
