package application

import (
	"context"
	"sync"
	"time"

	inventorydomain "github.com/mzaleski/shop-core/internal/inventory/domain"
	"github.com/mzaleski/shop-core/internal/reservation/domain"
)

// fakeStore is an in-memory ReservationStore with the same transactional
// guarantees as the postgres implementation: a claim either decrements
// stock and records the reservation, or does neither.
type fakeStore struct {
	mu           sync.Mutex
	stock        map[int64]int
	reservations map[string]domain.Reservation
	reapEvents   [][]byte
}

func newFakeStore(stock map[int64]int) *fakeStore {
	return &fakeStore{
		stock:        stock,
		reservations: make(map[string]domain.Reservation),
	}
}

func (f *fakeStore) Claim(_ context.Context, res domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	qty, ok := f.stock[res.ProductID]
	if !ok {
		return inventorydomain.ErrProductNotFound
	}
	if qty < res.Quantity {
		return inventorydomain.ErrInsufficientStock
	}
	f.stock[res.ProductID] = qty - res.Quantity
	f.reservations[res.ID] = res
	return nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, res := range f.reservations {
		if res.UserID == userID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExpired(_ context.Context, asOf time.Time) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, res := range f.reservations {
		if res.Expired(asOf) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (f *fakeStore) Release(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if _, ok := f.stock[res.ProductID]; !ok {
		return inventorydomain.ErrProductNotFound
	}
	f.stock[res.ProductID] += res.Quantity
	delete(f.reservations, id)
	return nil
}

func (f *fakeStore) Reap(_ context.Context, id string, _ string, payload []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return false, nil
	}
	if _, ok := f.stock[res.ProductID]; !ok {
		// Restore failed, delete must not stick.
		return false, inventorydomain.ErrProductNotFound
	}
	f.stock[res.ProductID] += res.Quantity
	delete(f.reservations, id)
	f.reapEvents = append(f.reapEvents, payload)
	return true, nil
}

func (f *fakeStore) quantity(productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reservations)
}
