package application

import (
	"context"

	"github.com/mzaleski/shop-core/internal/order/domain"
)

// OrderStore is the slice of the order ledger payment needs: reading an
// order and flipping its payment fields. Orders are never structurally
// mutated here.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (domain.Order, error)
	FindByPaymentExternalID(ctx context.Context, externalID string) (domain.Order, error)
	UpdatePayment(ctx context.Context, id string, status domain.PaymentStatus, externalID string) error
}
