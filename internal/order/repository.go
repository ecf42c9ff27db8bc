package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"zazoom-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter Filter) ([]*Order, error)

	// MarkPaid moves a pending order to paid. It reports false when the
	// order had already left pending.
	MarkPaid(ctx context.Context, id uuid.UUID, txHash string, at time.Time) (bool, error)

	// MarkDriverNotified stamps driver_notified_at once and moves a paid
	// order to processing.
	MarkDriverNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// ReleaseDriverNotified undoes MarkDriverNotified for an order that was
	// in prev when it was marked, unless its status has moved on since.
	ReleaseDriverNotified(ctx context.Context, id uuid.UUID, prev Status) (bool, error)

	// Advance moves the order to status only from an earlier status.
	Advance(ctx context.Context, id uuid.UUID, status Status) (bool, error)

	// SetStatus overwrites the status unconditionally.
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error

	// DeleteThrough removes every order created at or before cutoff.
	DeleteThrough(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `id, amount, status, items, tx_hash, created_at, updated_at, paid_at, driver_notified_at`

func (r *repository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
		zap.String("order_id", o.ID.String()),
	)

	items, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, amount, status, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`,
		o.ID,
		o.Amount,
		o.Status,
		items,
		o.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	o.UpdatedAt = o.CreatedAt
	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to load order",
			zap.String("layer", "repository"),
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return o, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]*Order, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, txHash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, tx_hash = $3, paid_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
	`,
		id,
		StatusPaid,
		txHash,
		at,
		StatusPending,
	)
	return affected(res, err)
}

func (r *repository) MarkDriverNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET driver_notified_at = $2,
		    status = CASE WHEN status = $3 THEN $4 ELSE status END,
		    updated_at = $2
		WHERE id = $1 AND driver_notified_at IS NULL
	`,
		id,
		at,
		StatusPaid,
		StatusProcessing,
	)
	return affected(res, err)
}

func (r *repository) ReleaseDriverNotified(ctx context.Context, id uuid.UUID, prev Status) (bool, error) {
	marked := prev
	if prev == StatusPaid {
		marked = StatusProcessing
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET driver_notified_at = NULL, status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND driver_notified_at IS NOT NULL
	`,
		id,
		prev,
		marked,
	)
	return affected(res, err)
}

func (r *repository) Advance(ctx context.Context, id uuid.UUID, status Status) (bool, error) {
	before := status.Before()
	if len(before) == 0 {
		return false, ErrInvalidStatus
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`,
		id,
		status,
		pq.Array(before),
	)
	return affected(res, err)
}

func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	ok, err := affected(r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status))
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) DeleteThrough(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE created_at <= $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o              Order
		items          []byte
		txHash         sql.NullString
		paidAt         sql.NullTime
		driverNotified sql.NullTime
	)

	if err := row.Scan(
		&o.ID,
		&o.Amount,
		&o.Status,
		&items,
		&txHash,
		&o.CreatedAt,
		&o.UpdatedAt,
		&paidAt,
		&driverNotified,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptItems, err)
	}
	o.TxHash = txHash.String
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if driverNotified.Valid {
		t := driverNotified.Time
		o.DriverNotifiedAt = &t
	}
	return &o, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
