package application

import (
	"context"
	"time"

	"github.com/mzaleski/shop-core/internal/reservation/domain"
)

type ReservationStore interface {
	// Claim decrements the product's stock and inserts the reservation in
	// one transaction. Fails with the inventory domain's
	// ErrInsufficientStock / ErrProductNotFound without inserting anything.
	Claim(ctx context.Context, res domain.Reservation) error

	ListByUser(ctx context.Context, userID string) ([]domain.Reservation, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]domain.Reservation, error)

	// Release restores the reserved quantity to stock and deletes the
	// reservation in one transaction (explicit cancellation).
	Release(ctx context.Context, id string) error

	// Reap deletes the reservation and restores its stock in one
	// transaction, writing an outbox row alongside. Returns false when the
	// reservation was already gone, which is not an error: checkout or a
	// concurrent reap consumed it first.
	Reap(ctx context.Context, id string, eventType string, payload []byte) (bool, error)
}
