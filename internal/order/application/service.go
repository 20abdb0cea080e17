package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mzaleski/shop-core/internal/order/domain"
	"github.com/mzaleski/shop-core/pkg/tracing"
)

var (
	ErrNoItems         = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type Service struct {
	log  *slog.Logger
	repo OrderRepository
	now  func() time.Time
}

func NewService(log *slog.Logger, repo OrderRepository) *Service {
	return &Service{log: log, repo: repo, now: time.Now}
}

// CreateOrder is the direct path: stock is decremented per line and the
// order commits all-or-nothing. It never consults reservations.
func (s *Service) CreateOrder(ctx context.Context, userID string, items []ItemRequest) (domain.Order, error) {
	if len(items) == 0 {
		return domain.Order{}, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return domain.Order{}, ErrInvalidQuantity
		}
	}

	o := domain.NewOrder(userID, s.now().UTC())
	payload, err := json.Marshal(domain.OrderCreated{OrderID: o.ID, UserID: userID, Source: "direct"})
	if err != nil {
		return domain.Order{}, err
	}
	o, err = s.repo.CreateFromItems(ctx, o, items, "OrderCreated", payload, tracing.Traceparent(ctx))
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order created", "order_id", o.ID, "user_id", userID, "lines", len(o.Lines), "total_cents", o.TotalCents())
	return o, nil
}

// FinalizeOrder is the cart path: the user's reservations already hold
// the stock, so only expiry is re-checked. Consumed reservations are
// deleted without restoring the ledger.
func (s *Service) FinalizeOrder(ctx context.Context, userID string) (domain.Order, error) {
	o := domain.NewOrder(userID, s.now().UTC())
	payload, err := json.Marshal(domain.OrderCreated{OrderID: o.ID, UserID: userID, Source: "cart"})
	if err != nil {
		return domain.Order{}, err
	}
	o, err = s.repo.FinalizeFromReservations(ctx, o, s.now().UTC(), "OrderCreated", payload, tracing.Traceparent(ctx))
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("cart finalized", "order_id", o.ID, "user_id", userID, "lines", len(o.Lines), "total_cents", o.TotalCents())
	return o, nil
}

func (s *Service) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}
