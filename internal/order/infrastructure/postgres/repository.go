package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	inventorydomain "github.com/mzaleski/shop-core/internal/inventory/domain"
	inventorypg "github.com/mzaleski/shop-core/internal/inventory/infrastructure/postgres"
	"github.com/mzaleski/shop-core/internal/order/application"
	"github.com/mzaleski/shop-core/internal/order/domain"
)

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	ledger *inventorypg.Repository
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, ledger *inventorypg.Repository) *Repository {
	return &Repository{log: log, pool: pool, ledger: ledger}
}

func (r *Repository) CreateFromItems(ctx context.Context, o domain.Order, items []application.ItemRequest, eventType string, payload []byte, traceparent string) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Duplicate product ids in the request collapse into one line.
	byProduct := make(map[int64]*domain.OrderLine)
	seen := make([]int64, 0, len(items))
	for _, it := range items {
		stock, err := r.ledger.AdjustTx(ctx, tx, it.ProductID, -it.Quantity, nil)
		if err != nil {
			// Rollback undoes every earlier decrement in this order.
			return domain.Order{}, err
		}
		if line, ok := byProduct[it.ProductID]; ok {
			line.Quantity += it.Quantity
			continue
		}
		byProduct[it.ProductID] = &domain.OrderLine{
			ProductID:             it.ProductID,
			Quantity:              it.Quantity,
			PriceAtOrderTimeCents: stock.PriceCents,
		}
		seen = append(seen, it.ProductID)
	}
	for _, pid := range seen {
		o.Lines = append(o.Lines, *byProduct[pid])
	}

	if err = r.insertOrder(ctx, tx, o, eventType, payload, traceparent); err != nil {
		return domain.Order{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) FinalizeFromReservations(ctx context.Context, o domain.Order, now time.Time, eventType string, payload []byte, traceparent string) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the user's reservations so the reaper cannot consume them
	// between the expiry check and the delete.
	rows, err := tx.Query(ctx, `SELECT id, product_id, quantity, expires_at
		FROM reservations WHERE user_id = $1 ORDER BY reserved_at FOR UPDATE`, o.UserID)
	if err != nil {
		return domain.Order{}, err
	}
	type held struct {
		id        string
		productID int64
		quantity  int
		expiresAt time.Time
	}
	var reservations []held
	for rows.Next() {
		var h held
		if err := rows.Scan(&h.id, &h.productID, &h.quantity, &h.expiresAt); err != nil {
			rows.Close()
			return domain.Order{}, err
		}
		reservations = append(reservations, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Order{}, err
	}
	if len(reservations) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}

	byProduct := make(map[int64]*domain.OrderLine)
	order := make([]int64, 0, len(reservations))
	consumed := make([]string, 0, len(reservations))
	for _, h := range reservations {
		consumed = append(consumed, h.id)
		// Fail closed: stock was decremented at claim time, but an expired
		// hold belongs to the reaper, not to this checkout.
		if h.expiresAt.Before(now) {
			return domain.Order{}, domain.ErrReservationExpired
		}
		if line, ok := byProduct[h.productID]; ok {
			line.Quantity += h.quantity
			continue
		}
		var priceCents int64
		err = tx.QueryRow(ctx, `SELECT price_cents FROM products WHERE id = $1`, h.productID).Scan(&priceCents)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, inventorydomain.ErrProductNotFound
		}
		if err != nil {
			return domain.Order{}, err
		}
		byProduct[h.productID] = &domain.OrderLine{
			ProductID:             h.productID,
			Quantity:              h.quantity,
			PriceAtOrderTimeCents: priceCents,
		}
		order = append(order, h.productID)
	}
	for _, pid := range order {
		o.Lines = append(o.Lines, *byProduct[pid])
	}

	if err = r.insertOrder(ctx, tx, o, eventType, payload, traceparent); err != nil {
		return domain.Order{}, err
	}
	// Stock is not restored here: it transfers from reserved to sold.
	// Delete only the rows the scan locked: a claim committed after the
	// scan holds stock that is in no order line and must stay reserved.
	if _, err = tx.Exec(ctx, `DELETE FROM reservations WHERE id = ANY($1)`, consumed); err != nil {
		return domain.Order{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) insertOrder(ctx context.Context, tx pgx.Tx, o domain.Order, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `INSERT INTO orders (id, user_id, payment_status, created_at) VALUES ($1,$2,$3,$4)`,
		o.ID, o.UserID, o.PaymentStatus, o.CreatedAt)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, line := range o.Lines {
		batch.Queue(`INSERT INTO order_lines (order_id, product_id, quantity, price_at_order_time_cents)
			VALUES ($1,$2,$3,$4)`,
			o.ID, line.ProductID, line.Quantity, line.PriceAtOrderTimeCents)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),'pending')`,
		"order", o.ID, eventType, payload, traceparent)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	var externalID *string
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, payment_status, payment_external_id, created_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.UserID, &o.PaymentStatus, &externalID, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if externalID != nil {
		o.PaymentExternalID = *externalID
	}
	o.Lines, err = r.linesFor(ctx, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, payment_status, payment_external_id, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var externalID *string
		if err := rows.Scan(&o.ID, &o.UserID, &o.PaymentStatus, &externalID, &o.CreatedAt); err != nil {
			return nil, err
		}
		if externalID != nil {
			o.PaymentExternalID = *externalID
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Lines, err = r.linesFor(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *Repository) linesFor(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity, price_at_order_time_cents
		FROM order_lines WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.PriceAtOrderTimeCents); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UpdatePayment writes the only fields of an order that may change after
// creation.
func (r *Repository) UpdatePayment(ctx context.Context, id string, status domain.PaymentStatus, externalID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET payment_status = $2, payment_external_id = $3 WHERE id = $1`,
		id, status, externalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) FindByPaymentExternalID(ctx context.Context, externalID string) (domain.Order, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id FROM orders WHERE payment_external_id = $1`, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return r.GetByID(ctx, id)
}
