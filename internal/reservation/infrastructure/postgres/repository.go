package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	inventorypg "github.com/mzaleski/shop-core/internal/inventory/infrastructure/postgres"
	"github.com/mzaleski/shop-core/internal/reservation/domain"
)

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	ledger *inventorypg.Repository
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, ledger *inventorypg.Repository) *Repository {
	return &Repository{log: log, pool: pool, ledger: ledger}
}

func (r *Repository) Claim(ctx context.Context, res domain.Reservation) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err = r.ledger.AdjustTx(ctx, tx, res.ProductID, -res.Quantity, nil); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO reservations (id, user_id, product_id, quantity, reserved_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		res.ID, res.UserID, res.ProductID, res.Quantity, res.ReservedAt, res.ExpiresAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, product_id, quantity, reserved_at, expires_at
		FROM reservations WHERE user_id = $1 ORDER BY reserved_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *Repository) ListExpired(ctx context.Context, asOf time.Time) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, product_id, quantity, reserved_at, expires_at
		FROM reservations WHERE expires_at < $1 ORDER BY expires_at`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *Repository) Release(ctx context.Context, id string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var productID int64
	var quantity int
	err = tx.QueryRow(ctx, `SELECT product_id, quantity FROM reservations WHERE id = $1 FOR UPDATE`, id).
		Scan(&productID, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrReservationNotFound
	}
	if err != nil {
		return err
	}
	if _, err = r.ledger.AdjustTx(ctx, tx, productID, quantity, nil); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Reap(ctx context.Context, id string, eventType string, payload []byte) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var productID int64
	var quantity int
	err = tx.QueryRow(ctx, `DELETE FROM reservations WHERE id = $1 RETURNING product_id, quantity`, id).
		Scan(&productID, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already consumed by checkout or another reap.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Restore failing rolls the delete back, so the row survives for the
	// next tick instead of leaking stock.
	if _, err = r.ledger.AdjustTx(ctx, tx, productID, quantity, nil); err != nil {
		return false, err
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, status)
		VALUES ($1,$2,$3,$4,'pending')`,
		"reservation", id, eventType, payload)
	if err != nil {
		return false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func scanReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.ID, &res.UserID, &res.ProductID, &res.Quantity, &res.ReservedAt, &res.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
