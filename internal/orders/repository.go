package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/packhouse-erp/packhouse-erp/internal/orders/boxing"
	"github.com/packhouse-erp/packhouse-erp/internal/platform/db"
)

// Repository persists orders, items, change audits and box plans.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, req ListRequest) ([]OrderWithCustomer, int, error)
	Create(ctx context.Context, o Order) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	GetItem(ctx context.Context, orderID, itemID int64) (*OrderItem, error)
	UpdateItemPick(ctx context.Context, item OrderItem) error
	UpdateItemQuantity(ctx context.Context, orderID, itemID int64, quantity int) error
	UpdateHeader(ctx context.Context, o Order) error
	UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time, cancelReason string) error
	InsertChanges(ctx context.Context, changes []Change) error
	ListChanges(ctx context.Context, orderID int64) ([]Change, error)
	SaveDistribution(ctx context.Context, orderID int64, dist boxing.Distribution) error
	GetDistribution(ctx context.Context, orderID int64) (*boxing.Distribution, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `o.id, o.customer_id, o.order_date, o.required_date, o.delivery_method,
	o.status, o.from_standing_order_id, o.source_order_id, o.notes, o.completed_at,
	o.cancel_reason, o.created_at, o.updated_at`

const itemColumns = `i.id, i.order_id, i.product_id, i.quantity, i.picked_quantity,
	i.picked_weight, i.batch_number, i.box_number, i.checked,
	p.name, p.unit_weight, p.requires_weight_input`

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, *item)
	}
	return o, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]OrderWithCustomer, int, error) {
	page := req.Page.Normalise()

	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Completed {
		conditions = append(conditions, "o.status = 'COMPLETED'")
	} else {
		conditions = append(conditions, "o.status NOT IN ('COMPLETED', 'CANCELLED')")
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("o.customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM orders o %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s, c.name, c.detailed_box_labels
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		%s
		ORDER BY o.required_date, o.id
		LIMIT $%d OFFSET $%d`, orderColumns, whereClause, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []OrderWithCustomer
	for rows.Next() {
		var o OrderWithCustomer
		var fromStanding, sourceOrder pgtype.Int8
		var completedAt pgtype.Timestamptz
		err := rows.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.RequiredDate, &o.DeliveryMethod,
			&o.Status, &fromStanding, &sourceOrder, &o.Notes, &completedAt,
			&o.CancelReason, &o.CreatedAt, &o.UpdatedAt,
			&o.CustomerName, &o.DetailedBoxLabels)
		if err != nil {
			return nil, 0, err
		}
		if fromStanding.Valid {
			o.FromStandingOrderID = &fromStanding.Int64
		}
		if sourceOrder.Valid {
			o.SourceOrderID = &sourceOrder.Int64
		}
		if completedAt.Valid {
			t := completedAt.Time
			o.CompletedAt = &t
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, o Order) (int64, error) {
	var fromStanding, sourceOrder pgtype.Int8
	if o.FromStandingOrderID != nil {
		fromStanding = pgtype.Int8{Int64: *o.FromStandingOrderID, Valid: true}
	}
	if o.SourceOrderID != nil {
		sourceOrder = pgtype.Int8{Int64: *o.SourceOrderID, Valid: true}
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (customer_id, order_date, required_date, delivery_method, status,
			from_standing_order_id, source_order_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id`,
		o.CustomerID, o.OrderDate, o.RequiredDate, o.DeliveryMethod, o.Status,
		fromStanding, sourceOrder, o.Notes).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var pickedQty pgtype.Int4
	if item.PickedQuantity != nil {
		pickedQty = pgtype.Int4{Int32: int32(*item.PickedQuantity), Valid: true}
	}
	var pickedWeight pgtype.Float8
	if item.PickedWeight != nil {
		pickedWeight = pgtype.Float8{Float64: *item.PickedWeight, Valid: true}
	}
	var boxNumber pgtype.Int4
	if item.BoxNumber != nil {
		boxNumber = pgtype.Int4{Int32: int32(*item.BoxNumber), Valid: true}
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, picked_quantity, picked_weight,
			batch_number, box_number, checked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, pickedQty, pickedWeight,
		item.BatchNumber, boxNumber, item.Checked).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) GetItem(ctx context.Context, orderID, itemID int64) (*OrderItem, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1 AND i.id = $2`, orderID, itemID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *repository) UpdateItemPick(ctx context.Context, item OrderItem) error {
	var pickedQty pgtype.Int4
	if item.PickedQuantity != nil {
		pickedQty = pgtype.Int4{Int32: int32(*item.PickedQuantity), Valid: true}
	}
	var pickedWeight pgtype.Float8
	if item.PickedWeight != nil {
		pickedWeight = pgtype.Float8{Float64: *item.PickedWeight, Valid: true}
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE order_items
		SET picked_quantity = $3, picked_weight = $4, batch_number = $5, checked = $6, updated_at = NOW()
		WHERE order_id = $1 AND id = $2`,
		item.OrderID, item.ID, pickedQty, pickedWeight, item.BatchNumber, item.Checked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repository) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, quantity int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE order_items SET quantity = $3, updated_at = NOW()
		WHERE order_id = $1 AND id = $2`, orderID, itemID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repository) UpdateHeader(ctx context.Context, o Order) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET required_date = $2, delivery_method = $3, notes = $4, updated_at = NOW()
		WHERE id = $1`,
		o.ID, o.RequiredDate, o.DeliveryMethod, o.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time, cancelReason string) error {
	var completed pgtype.Timestamptz
	if completedAt != nil {
		completed = pgtype.Timestamptz{Time: *completedAt, Valid: true}
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, completed_at = $3, cancel_reason = $4, updated_at = NOW()
		WHERE id = $1`,
		id, status, completed, cancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) InsertChanges(ctx context.Context, changes []Change) error {
	for _, c := range changes {
		_, err := r.db.Exec(ctx, `
			INSERT INTO order_changes (order_id, field, previous, current, changed_at)
			VALUES ($1, $2, $3, $4, NOW())`,
			c.OrderID, c.Field, c.Previous, c.Current)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ListChanges(ctx context.Context, orderID int64) ([]Change, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, field, previous, current, changed_at
		FROM order_changes
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.ID, &c.OrderID, &c.Field, &c.Previous, &c.Current, &c.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveDistribution replaces the persisted box plan and stamps each item with
// the first box that holds part of it.
func (r *repository) SaveDistribution(ctx context.Context, orderID int64, dist boxing.Distribution) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM order_boxes WHERE order_id = $1`, orderID); err != nil {
		return err
	}

	firstBox := make(map[int64]int)
	for _, box := range dist.Boxes {
		var boxID int64
		err := r.db.QueryRow(ctx, `
			INSERT INTO order_boxes (order_id, box_number, total_weight)
			VALUES ($1, $2, $3)
			RETURNING id`,
			orderID, box.BoxNumber, box.TotalWeight.String()).Scan(&boxID)
		if err != nil {
			return err
		}
		for _, bi := range box.Items {
			_, err := r.db.Exec(ctx, `
				INSERT INTO order_box_items (order_box_id, order_item_id, product_id, product_name, quantity, weight)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				boxID, bi.OrderItemID, bi.ProductID, bi.ProductName, bi.Quantity, bi.Weight.String())
			if err != nil {
				return err
			}
			if _, ok := firstBox[bi.OrderItemID]; !ok {
				firstBox[bi.OrderItemID] = box.BoxNumber
			}
		}
	}

	for itemID, boxNumber := range firstBox {
		if _, err := r.db.Exec(ctx, `
			UPDATE order_items SET box_number = $3, updated_at = NOW()
			WHERE order_id = $1 AND id = $2`, orderID, itemID, boxNumber); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) GetDistribution(ctx context.Context, orderID int64) (*boxing.Distribution, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.box_number, b.total_weight::text,
		       bi.order_item_id, bi.product_id, bi.product_name, bi.quantity, bi.weight::text
		FROM order_boxes b
		JOIN order_box_items bi ON bi.order_box_id = b.id
		WHERE b.order_id = $1
		ORDER BY b.box_number, bi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dist := boxing.Distribution{TotalWeight: decimal.Zero}
	var current *boxing.Box
	for rows.Next() {
		var boxNumber, quantity int
		var boxWeightText, itemWeightText string
		var bi boxing.BoxItem
		if err := rows.Scan(&boxNumber, &boxWeightText, &bi.OrderItemID, &bi.ProductID,
			&bi.ProductName, &quantity, &itemWeightText); err != nil {
			return nil, err
		}
		bi.Quantity = quantity
		if bi.Weight, err = decimal.NewFromString(itemWeightText); err != nil {
			return nil, fmt.Errorf("parse box item weight: %w", err)
		}
		if current == nil || current.BoxNumber != boxNumber {
			boxWeight, err := decimal.NewFromString(boxWeightText)
			if err != nil {
				return nil, fmt.Errorf("parse box weight: %w", err)
			}
			dist.Boxes = append(dist.Boxes, boxing.Box{BoxNumber: boxNumber, TotalWeight: boxWeight})
			current = &dist.Boxes[len(dist.Boxes)-1]
			dist.TotalWeight = dist.TotalWeight.Add(boxWeight)
		}
		current.Items = append(current.Items, bi)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dist.Boxes) == 0 {
		return nil, ErrNoDistribution
	}
	return &dist, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var fromStanding, sourceOrder pgtype.Int8
	var completedAt pgtype.Timestamptz
	err := row.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.RequiredDate, &o.DeliveryMethod,
		&o.Status, &fromStanding, &sourceOrder, &o.Notes, &completedAt,
		&o.CancelReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if fromStanding.Valid {
		o.FromStandingOrderID = &fromStanding.Int64
	}
	if sourceOrder.Valid {
		o.SourceOrderID = &sourceOrder.Int64
	}
	if completedAt.Valid {
		t := completedAt.Time
		o.CompletedAt = &t
	}
	return &o, nil
}

func scanItem(row rowScanner) (*OrderItem, error) {
	var item OrderItem
	var pickedQty, boxNumber pgtype.Int4
	var pickedWeight, unitWeight pgtype.Float8
	err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &pickedQty,
		&pickedWeight, &item.BatchNumber, &boxNumber, &item.Checked,
		&item.ProductName, &unitWeight, &item.RequiresWeightInput)
	if err != nil {
		return nil, err
	}
	if pickedQty.Valid {
		v := int(pickedQty.Int32)
		item.PickedQuantity = &v
	}
	if pickedWeight.Valid {
		v := pickedWeight.Float64
		item.PickedWeight = &v
	}
	if boxNumber.Valid {
		v := int(boxNumber.Int32)
		item.BoxNumber = &v
	}
	if unitWeight.Valid {
		v := unitWeight.Float64
		item.UnitWeight = &v
	}
	return &item, nil
}
