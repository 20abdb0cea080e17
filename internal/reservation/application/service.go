package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mzaleski/shop-core/internal/reservation/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type Service struct {
	log   *slog.Logger
	store ReservationStore
	now   func() time.Time
}

func NewService(log *slog.Logger, store ReservationStore) *Service {
	return &Service{log: log, store: store, now: time.Now}
}

// Claim reserves quantity units of a product for a user. Every call
// creates an independent reservation backed by its own stock decrement.
func (s *Service) Claim(ctx context.Context, userID string, productID int64, quantity int) (domain.Reservation, error) {
	if quantity < 1 {
		return domain.Reservation{}, ErrInvalidQuantity
	}
	res := domain.New(userID, productID, quantity, s.now().UTC())
	if err := s.store.Claim(ctx, res); err != nil {
		return domain.Reservation{}, err
	}
	s.log.Info("reservation claimed", "reservation_id", res.ID, "user_id", userID, "product_id", productID, "quantity", quantity, "expires_at", res.ExpiresAt)
	return res, nil
}

// ListForUser returns all of a user's reservations, including ones past
// expiry that the reaper has not visited yet. Checkout re-validates
// expiry itself.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Reservation, error) {
	return s.store.ListByUser(ctx, userID)
}

// Cancel deletes a reservation and restores its stock. The delete never
// commits without the restore.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.store.Release(ctx, id); err != nil {
		return err
	}
	s.log.Info("reservation cancelled", "reservation_id", id)
	return nil
}
