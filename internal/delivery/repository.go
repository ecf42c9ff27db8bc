package delivery

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"zazoom-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Get(ctx context.Context, orderID uuid.UUID) (*Record, error)

	// Assign claims an available driver and moves a pending (or missing)
	// delivery to assigned, in one transaction.
	Assign(ctx context.Context, orderID uuid.UUID, driverID string, eta *time.Time) (*Record, error)

	// Advance moves the delivery forward to status only. Reaching delivered
	// frees the driver and counts the delivery.
	Advance(ctx context.Context, orderID uuid.UUID, status Status, zone string) (*Record, error)

	ListDrivers(ctx context.Context) ([]*Driver, error)
	GetDriver(ctx context.Context, id string) (*Driver, error)
	UpsertDriver(ctx context.Context, d *Driver) error
	SetDriverStatus(ctx context.Context, id string, status DriverStatus) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const recordColumns = `order_id, COALESCE(driver_id, ''), status, current_zone, estimated_time, updated_at`

const driverColumns = `id, name, status, current_zone, total_deliveries, rating, updated_at`

func (r *repository) Get(ctx context.Context, orderID uuid.UUID) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM delivery_status WHERE order_id = $1`,
		orderID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *repository) Assign(ctx context.Context, orderID uuid.UUID, driverID string, eta *time.Time) (*Record, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Assign"),
		zap.String("order_id", orderID.String()),
		zap.String("driver_id", driverID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var zone string
	err = tx.QueryRowContext(ctx, `
		UPDATE drivers SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING current_zone
	`, driverID, DriverBusy, DriverAvailable).Scan(&zone)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn("driver not available")
		return nil, ErrDriverUnavailable
	}
	if err != nil {
		log.Error("failed to claim driver", zap.Error(err))
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO delivery_status (order_id, driver_id, status, current_zone, estimated_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (order_id) DO UPDATE
		SET driver_id = EXCLUDED.driver_id,
		    status = EXCLUDED.status,
		    current_zone = EXCLUDED.current_zone,
		    estimated_time = EXCLUDED.estimated_time,
		    updated_at = EXCLUDED.updated_at
		WHERE delivery_status.status = $6
		RETURNING `+recordColumns,
		orderID, driverID, StatusAssigned, zone, eta, StatusPending,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn("delivery already assigned")
		return nil, ErrAlreadyAssigned
	}
	if err != nil {
		log.Error("failed to write delivery status", zap.Error(err))
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repository) Advance(ctx context.Context, orderID uuid.UUID, status Status, zone string) (*Record, error) {
	before := status.Before()
	if len(before) == 0 {
		return nil, ErrInvalidTransition
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE delivery_status
		SET status = $2,
		    current_zone = COALESCE(NULLIF($3, ''), current_zone),
		    updated_at = NOW()
		WHERE order_id = $1 AND status = ANY($4)
		RETURNING `+recordColumns,
		orderID, status, zone, pq.Array(before),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	if status == StatusDelivered && rec.DriverID != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE drivers
			SET status = $2, total_deliveries = total_deliveries + 1, updated_at = NOW()
			WHERE id = $1
		`, rec.DriverID, DriverAvailable); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repository) ListDrivers(ctx context.Context) ([]*Driver, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (r *repository) GetDriver(ctx context.Context, id string) (*Driver, error) {
	d, err := scanDriver(r.db.QueryRowContext(ctx,
		`SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	return d, err
}

func (r *repository) UpsertDriver(ctx context.Context, d *Driver) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drivers (id, name, status, current_zone, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, current_zone = EXCLUDED.current_zone, updated_at = NOW()
	`, d.ID, d.Name, d.Status, d.CurrentZone)
	return err
}

func (r *repository) SetDriverStatus(ctx context.Context, id string, status DriverStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE drivers SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDriverNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec Record
		eta sql.NullTime
	)
	if err := row.Scan(
		&rec.OrderID,
		&rec.DriverID,
		&rec.Status,
		&rec.CurrentZone,
		&eta,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if eta.Valid {
		t := eta.Time
		rec.EstimatedTime = &t
	}
	return &rec, nil
}

func scanDriver(row rowScanner) (*Driver, error) {
	var d Driver
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Status,
		&d.CurrentZone,
		&d.TotalDeliveries,
		&d.Rating,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
