package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzaleski/shop-core/internal/inventory/domain"
)

// adjustSQL is the whole ledger: one conditional update that refuses to
// drive quantity below zero, checks the caller's version when one is
// supplied, and bumps the version on every committed write.
const adjustSQL = `UPDATE products
	SET quantity = quantity + $2, version = version + 1
	WHERE id = $1 AND quantity + $2 >= 0 AND ($3::bigint IS NULL OR version = $3)
	RETURNING price_cents, quantity, version`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Adjust(ctx context.Context, productID int64, delta int, expectedVersion *int64) (domain.Stock, error) {
	return r.adjust(ctx, r.pool, productID, delta, expectedVersion)
}

// AdjustTx runs the same conditional write inside a caller-owned
// transaction. Reservation and order repositories use it so that their
// stock mutation commits or rolls back together with their own rows.
func (r *Repository) AdjustTx(ctx context.Context, tx pgx.Tx, productID int64, delta int, expectedVersion *int64) (domain.Stock, error) {
	return r.adjust(ctx, tx, productID, delta, expectedVersion)
}

func (r *Repository) adjust(ctx context.Context, q querier, productID int64, delta int, expectedVersion *int64) (domain.Stock, error) {
	stock := domain.Stock{ProductID: productID}
	err := q.QueryRow(ctx, adjustSQL, productID, delta, expectedVersion).
		Scan(&stock.PriceCents, &stock.Quantity, &stock.Version)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Stock{}, err
	}
	// No row matched: tell the caller why. This read is a separate
	// statement, so outside a transaction a writer landing between the
	// two can shift the reported reason (version conflict vs
	// insufficient stock). Either way the row was not mutated and the
	// caller's move is the same: re-read and retry.
	var quantity int
	var version int64
	err = q.QueryRow(ctx, `SELECT quantity, version FROM products WHERE id = $1`, productID).
		Scan(&quantity, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stock{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Stock{}, err
	}
	if expectedVersion != nil && version != *expectedVersion {
		return domain.Stock{}, domain.ErrVersionConflict
	}
	return domain.Stock{}, domain.ErrInsufficientStock
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, price_cents, quantity, version FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Quantity, &p.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, price_cents, quantity, version FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Quantity, &p.Version); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Create inserts a catalog row. Catalog management is not part of this
// core; this exists for seeding (tests, local setups).
func (r *Repository) Create(ctx context.Context, name string, priceCents int64, quantity int) (domain.Product, error) {
	p := domain.Product{Name: name, PriceCents: priceCents, Quantity: quantity, Version: 1}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, price_cents, quantity, version) VALUES ($1,$2,$3,1) RETURNING id`,
		name, priceCents, quantity).Scan(&p.ID)
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}
