package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzaleski/shop-core/pkg/outbox"
)

// OutboxStore backs the relay. Rows are written by the order and
// reservation repositories inside their own transactions; this store only
// hands batches to the relay and records outcomes.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	until := time.Now().UTC().Add(lease)
	rows, err := s.pool.Query(ctx, `UPDATE outbox
		SET status = 'in_progress', relay_id = $1, locked_until = $3
		WHERE id IN (
			SELECT id FROM outbox
			WHERE status = 'pending' OR (status = 'in_progress' AND locked_until < now())
			ORDER BY id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, aggregate_type, aggregate_id, type, payload, traceparent, created_at, retry_count`,
		relayID, batchSize, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var e outbox.Event
		var traceparent *string
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload, &traceparent, &e.CreatedAt, &e.RetryCount); err != nil {
			return nil, err
		}
		if traceparent != nil {
			e.Traceparent = *traceparent
		}
		e.Status = outbox.StatusInProgress
		e.RelayID = relayID
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status = 'sent', locked_until = NULL WHERE id = ANY($1)`, ids)
	return err
}

// MarkFailed puts the row back in the pending pool so the next tick
// retries it, keeping the error for operators.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox
		SET status = 'pending', locked_until = NULL, retry_count = retry_count + 1, last_error = $2
		WHERE id = $1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET locked_until = $3 WHERE relay_id = $1 AND id = ANY($2)`,
		relayID, ids, time.Now().UTC().Add(lease))
	return err
}
