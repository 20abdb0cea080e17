package application

import (
	"context"
	"sync"
	"time"

	inventorydomain "github.com/mzaleski/shop-core/internal/inventory/domain"
	"github.com/mzaleski/shop-core/internal/order/domain"
	reservationdomain "github.com/mzaleski/shop-core/internal/reservation/domain"
)

type fakeProduct struct {
	priceCents int64
	quantity   int
}

type fakeEvent struct {
	eventType string
	payload   []byte
}

// fakeRepo backs both order paths with the same in-memory stock the
// reservation store methods use, so the full claim/reap/checkout
// lifecycle can run against one world.
type fakeRepo struct {
	mu           sync.Mutex
	products     map[int64]*fakeProduct
	reservations map[string]reservationdomain.Reservation
	orders       map[string]domain.Order
	events       []fakeEvent
}

func newFakeRepo(products map[int64]*fakeProduct) *fakeRepo {
	return &fakeRepo{
		products:     products,
		reservations: make(map[string]reservationdomain.Reservation),
		orders:       make(map[string]domain.Order),
	}
}

func (f *fakeRepo) CreateFromItems(_ context.Context, o domain.Order, items []ItemRequest, eventType string, payload []byte, _ string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Stage decrements so a failing line aborts the whole order.
	staged := make(map[int64]int)
	byProduct := make(map[int64]*domain.OrderLine)
	var seen []int64
	for _, it := range items {
		p, ok := f.products[it.ProductID]
		if !ok {
			return domain.Order{}, inventorydomain.ErrProductNotFound
		}
		if p.quantity-staged[it.ProductID]-it.Quantity < 0 {
			return domain.Order{}, inventorydomain.ErrInsufficientStock
		}
		staged[it.ProductID] += it.Quantity
		if line, ok := byProduct[it.ProductID]; ok {
			line.Quantity += it.Quantity
		} else {
			byProduct[it.ProductID] = &domain.OrderLine{
				ProductID:             it.ProductID,
				Quantity:              it.Quantity,
				PriceAtOrderTimeCents: p.priceCents,
			}
			seen = append(seen, it.ProductID)
		}
	}
	for id, qty := range staged {
		f.products[id].quantity -= qty
	}
	for _, id := range seen {
		o.Lines = append(o.Lines, *byProduct[id])
	}
	f.orders[o.ID] = o
	f.events = append(f.events, fakeEvent{eventType: eventType, payload: payload})
	return o, nil
}

func (f *fakeRepo) FinalizeFromReservations(_ context.Context, o domain.Order, now time.Time, eventType string, payload []byte, _ string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var held []reservationdomain.Reservation
	for _, res := range f.reservations {
		if res.UserID == o.UserID {
			held = append(held, res)
		}
	}
	if len(held) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}
	for _, res := range held {
		if res.Expired(now) {
			return domain.Order{}, domain.ErrReservationExpired
		}
	}

	byProduct := make(map[int64]*domain.OrderLine)
	var seen []int64
	for _, res := range held {
		p, ok := f.products[res.ProductID]
		if !ok {
			return domain.Order{}, inventorydomain.ErrProductNotFound
		}
		if line, ok := byProduct[res.ProductID]; ok {
			line.Quantity += res.Quantity
		} else {
			byProduct[res.ProductID] = &domain.OrderLine{
				ProductID:             res.ProductID,
				Quantity:              res.Quantity,
				PriceAtOrderTimeCents: p.priceCents,
			}
			seen = append(seen, res.ProductID)
		}
	}
	for _, id := range seen {
		o.Lines = append(o.Lines, *byProduct[id])
	}
	for _, res := range held {
		delete(f.reservations, res.ID)
	}
	f.orders[o.ID] = o
	f.events = append(f.events, fakeEvent{eventType: eventType, payload: payload})
	return o, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

// ReservationStore methods, so the reservation service and reaper can
// operate on the same stock the order paths see.

func (f *fakeRepo) Claim(_ context.Context, res reservationdomain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[res.ProductID]
	if !ok {
		return inventorydomain.ErrProductNotFound
	}
	if p.quantity < res.Quantity {
		return inventorydomain.ErrInsufficientStock
	}
	p.quantity -= res.Quantity
	f.reservations[res.ID] = res
	return nil
}

func (f *fakeRepo) ListExpired(_ context.Context, asOf time.Time) ([]reservationdomain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []reservationdomain.Reservation
	for _, res := range f.reservations {
		if res.Expired(asOf) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (f *fakeRepo) Release(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return reservationdomain.ErrReservationNotFound
	}
	f.products[res.ProductID].quantity += res.Quantity
	delete(f.reservations, id)
	return nil
}

func (f *fakeRepo) Reap(_ context.Context, id string, _ string, payload []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return false, nil
	}
	f.products[res.ProductID].quantity += res.Quantity
	delete(f.reservations, id)
	return true, nil
}

func (f *fakeRepo) quantity(productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productID].quantity
}

// asReservationStore adapts fakeRepo to the reservation store interface.
// Both interfaces declare ListByUser with different result types, so the
// reservation side gets its own receiver.
type asReservationStore struct {
	r *fakeRepo
}

func (a asReservationStore) Claim(ctx context.Context, res reservationdomain.Reservation) error {
	return a.r.Claim(ctx, res)
}

func (a asReservationStore) ListByUser(_ context.Context, userID string) ([]reservationdomain.Reservation, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	var out []reservationdomain.Reservation
	for _, res := range a.r.reservations {
		if res.UserID == userID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (a asReservationStore) ListExpired(ctx context.Context, asOf time.Time) ([]reservationdomain.Reservation, error) {
	return a.r.ListExpired(ctx, asOf)
}

func (a asReservationStore) Release(ctx context.Context, id string) error {
	return a.r.Release(ctx, id)
}

func (a asReservationStore) Reap(ctx context.Context, id string, eventType string, payload []byte) (bool, error) {
	return a.r.Reap(ctx, id, eventType, payload)
}
