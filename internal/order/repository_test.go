package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderRowColumns = []string{
	"id", "amount", "status", "items", "tx_hash",
	"created_at", "updated_at", "paid_at", "driver_notified_at",
}

func newRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestRepository_Create(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	o := &Order{
		ID:        uuid.New(),
		Amount:    decimal.RequireFromString("95.97"),
		Status:    StatusPending,
		Lines:     []Line{{ProductID: "1", Name: "Blue Dream", UnitPrice: decimal.RequireFromString("45.99"), Quantity: 1}},
		CreatedAt: now,
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO orders`).
			WithArgs(o.ID, o.Amount, o.Status, sqlmock.AnyArg(), now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, o))
		assert.Equal(t, now, o.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO orders`).WillReturnError(errors.New("db down"))

		assert.Error(t, repo.Create(ctx, o))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Get(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	id := uuid.New()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	paid := created.Add(5 * time.Minute)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(orderRowColumns).AddRow(
			id.String(), "95.97", "paid",
			`[{"id":"1","name":"Blue Dream","price":"45.99","quantity":1}]`,
			"txhash", created, paid, paid, nil,
		)
		mock.ExpectQuery(`SELECT .* FROM orders WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(rows)

		o, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, o.ID)
		assert.Equal(t, StatusPaid, o.Status)
		assert.Equal(t, "95.97", o.Amount.String())
		assert.Equal(t, "txhash", o.TxHash)
		require.Len(t, o.Lines, 1)
		assert.Equal(t, "Blue Dream", o.Lines[0].Name)
		require.NotNil(t, o.PaidAt)
		assert.Nil(t, o.DriverNotifiedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(orderRowColumns))

		_, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("CorruptItems", func(t *testing.T) {
		rows := sqlmock.NewRows(orderRowColumns).AddRow(
			id.String(), "1", "pending", `not-json`, nil, created, created, nil, nil,
		)
		mock.ExpectQuery(`SELECT .* FROM orders`).WithArgs(id).WillReturnRows(rows)

		_, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, ErrCorruptItems)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("StatusFilterAndPaging", func(t *testing.T) {
		status := StatusPending
		rows := sqlmock.NewRows(orderRowColumns).
			AddRow(uuid.New().String(), "10", "pending", `[]`, nil, now, now, nil, nil).
			AddRow(uuid.New().String(), "20", "pending", `[]`, nil, now, now, nil, nil)

		mock.ExpectQuery(`SELECT .* FROM orders WHERE status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
			WithArgs("pending", 10, 0).
			WillReturnRows(rows)

		orders, err := repo.List(ctx, Filter{Status: &status, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("Unbounded", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders ORDER BY created_at DESC$`).
			WillReturnRows(sqlmock.NewRows(orderRowColumns))

		orders, err := repo.List(ctx, Filter{})
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkPaid(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	id := uuid.New()
	at := time.Now()

	t.Run("Transitioned", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders\s+SET status = \$2, tx_hash = \$3, paid_at = \$4, updated_at = \$4\s+WHERE id = \$1 AND status = \$5`).
			WithArgs(id, "paid", "tx1", at, "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.MarkPaid(ctx, id, "tx1", at)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AlreadyPaid", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WithArgs(id, "paid", "tx1", at, "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.MarkPaid(ctx, id, "tx1", at)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkDriverNotified(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()
	at := time.Now()

	mock.ExpectExec(`UPDATE orders\s+SET driver_notified_at = \$2,.*WHERE id = \$1 AND driver_notified_at IS NULL`).
		WithArgs(id, at, "paid", "processing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkDriverNotified(context.Background(), id, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReleaseDriverNotified(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	id := uuid.New()

	t.Run("PaidOrderRestored", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders\s+SET driver_notified_at = NULL, status = \$2, updated_at = NOW\(\)\s+WHERE id = \$1 AND status = \$3 AND driver_notified_at IS NOT NULL`).
			WithArgs(id, "paid", "processing").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.ReleaseDriverNotified(ctx, id, StatusPaid)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("OtherStatusKept", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders\s+SET driver_notified_at = NULL`).
			WithArgs(id, "shipped", "shipped").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.ReleaseDriverNotified(ctx, id, StatusShipped)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Advance(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	id := uuid.New()

	t.Run("ForwardOnly", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders\s+SET status = \$2, updated_at = NOW\(\)\s+WHERE id = \$1 AND status = ANY\(\$3\)`).
			WithArgs(id, "shipped", pq.Array([]string{"pending", "paid", "processing"})).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.Advance(ctx, id, StatusShipped)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("PendingHasNoPredecessor", func(t *testing.T) {
		_, err := repo.Advance(ctx, id, StatusPending)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetStatus(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	id := uuid.New()

	t.Run("Regression allowed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status = \$2, updated_at = NOW\(\) WHERE id = \$1`).
			WithArgs(id, "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SetStatus(ctx, id, StatusPending))
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status`).
			WithArgs(id, "paid").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.SetStatus(ctx, id, StatusPaid), ErrOrderNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteThrough(t *testing.T) {
	repo, mock := newRepo(t)
	cutoff := time.Date(2026, 10, 17, 15, 4, 5, 123456000, time.UTC)

	mock.ExpectExec(`DELETE FROM orders WHERE created_at <= \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteThrough(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
