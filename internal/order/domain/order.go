package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrReservationExpired = errors.New("reservation expired")
	ErrAlreadyPaid        = errors.New("order already paid")
	ErrOrderRefunded      = errors.New("order was refunded")
)

type PaymentStatus string

const (
	PaymentNew       PaymentStatus = "new"
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// OrderLine references its product by id only, so order history stays
// decoupled from later catalog changes. PriceAtOrderTimeCents is frozen
// at the moment the order's stock was committed.
type OrderLine struct {
	ProductID             int64
	Quantity              int
	PriceAtOrderTimeCents int64
}

// Order is structurally immutable once created; only the payment fields
// change afterwards.
type Order struct {
	ID                string
	UserID            string
	Lines             []OrderLine
	PaymentStatus     PaymentStatus
	PaymentExternalID string
	CreatedAt         time.Time
}

func NewOrder(userID string, now time.Time) Order {
	return Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		PaymentStatus: PaymentNew,
		CreatedAt:     now,
	}
}

func (o Order) TotalCents() int64 {
	var total int64
	for _, l := range o.Lines {
		total += int64(l.Quantity) * l.PriceAtOrderTimeCents
	}
	return total
}

// StartPayment moves the order into the pending state and records the
// gateway's identifier. Paid and refunded are terminal; a cancelled
// payment may be retried.
func (o *Order) StartPayment(externalID string) error {
	switch o.PaymentStatus {
	case PaymentPaid:
		return ErrAlreadyPaid
	case PaymentRefunded:
		return ErrOrderRefunded
	}
	o.PaymentStatus = PaymentPending
	o.PaymentExternalID = externalID
	return nil
}

// SettlePayment records the gateway's verdict.
func (o *Order) SettlePayment(success bool) {
	if success {
		o.PaymentStatus = PaymentPaid
	} else {
		o.PaymentStatus = PaymentCancelled
	}
}
