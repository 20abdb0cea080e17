package application

import (
	"context"
	"time"

	"github.com/mzaleski/shop-core/internal/order/domain"
)

// ItemRequest is one requested line of a direct order.
type ItemRequest struct {
	ProductID int64
	Quantity  int
}

type OrderRepository interface {
	// CreateFromItems decrements stock for every requested line and
	// persists the order, its lines and an outbox row in one transaction.
	// Prices are frozen from the catalog at decrement time. Any line
	// failing aborts the whole order.
	CreateFromItems(ctx context.Context, o domain.Order, items []ItemRequest, eventType string, payload []byte, traceparent string) (domain.Order, error)

	// FinalizeFromReservations converts the user's live reservations into
	// an order in one transaction, deleting them without restoring stock.
	// Fails with domain.ErrEmptyCart when the user holds none and
	// domain.ErrReservationExpired when any is past expiry as of now.
	FinalizeFromReservations(ctx context.Context, o domain.Order, now time.Time, eventType string, payload []byte, traceparent string) (domain.Order, error)

	GetByID(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}
