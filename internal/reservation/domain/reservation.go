package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TTL is how long a claim holds stock before the reaper returns it.
const TTL = 15 * time.Minute

var ErrReservationNotFound = errors.New("reservation not found")

// Reservation is a time-bounded hold on stock. While it exists its
// quantity has already been subtracted from the product's availability.
type Reservation struct {
	ID         string
	UserID     string
	ProductID  int64
	Quantity   int
	ReservedAt time.Time
	ExpiresAt  time.Time
}

func New(userID string, productID int64, quantity int, now time.Time) Reservation {
	return Reservation{
		ID:         uuid.NewString(),
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		ReservedAt: now,
		ExpiresAt:  now.Add(TTL),
	}
}

func (r Reservation) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
