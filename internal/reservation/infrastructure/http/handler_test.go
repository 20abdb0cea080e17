package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inventorydomain "github.com/mzaleski/shop-core/internal/inventory/domain"
	"github.com/mzaleski/shop-core/internal/reservation/application"
	"github.com/mzaleski/shop-core/internal/reservation/domain"
)

type fakeStore struct {
	mu           sync.Mutex
	stock        map[int64]int
	reservations map[string]domain.Reservation
}

func newFakeStore(stock map[int64]int) *fakeStore {
	return &fakeStore{stock: stock, reservations: make(map[string]domain.Reservation)}
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
	out := []domain.Reservation{}
	for _, res := range f.reservations {
		if res.UserID == userID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExpired(_ context.Context, _ time.Time) ([]domain.Reservation, error) {
	return nil, nil
}

func (f *fakeStore) Release(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	f.stock[res.ProductID] += res.Quantity
	delete(f.reservations, id)
	return nil
}

func (f *fakeStore) Reap(_ context.Context, _ string, _ string, _ []byte) (bool, error) {
	return false, nil
}

func newTestHandler(stock map[int64]int) (*Handler, *fakeStore) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newFakeStore(stock)
	return NewHandler(log, application.NewService(log, store)), store
}

func TestClaimEndpoint(t *testing.T) {
	h, store := newTestHandler(map[int64]int{1: 10})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/", "application/json",
		strings.NewReader(`{"user_id":"user-1","product_id":1,"quantity":4}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body reservationResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "user-1", body.UserID)
	assert.Equal(t, 4, body.Quantity)
	assert.True(t, body.ExpiresAt.After(body.ReservedAt))
	assert.Equal(t, 6, store.stock[1])
}

func TestClaimEndpointErrors(t *testing.T) {
	h, _ := newTestHandler(map[int64]int{1: 2})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing user", `{"product_id":1,"quantity":1}`, http.StatusBadRequest},
		{"zero quantity", `{"user_id":"u","product_id":1,"quantity":0}`, http.StatusBadRequest},
		{"unknown product", `{"user_id":"u","product_id":99,"quantity":1}`, http.StatusNotFound},
		{"insufficient stock", `{"user_id":"u","product_id":1,"quantity":5}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCancelEndpoint(t *testing.T) {
	h, store := newTestHandler(map[int64]int{1: 10})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/", "application/json",
		strings.NewReader(`{"user_id":"user-1","product_id":1,"quantity":4}`))
	require.NoError(t, err)
	var body reservationResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/"+body.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 10, store.stock[1])

	// Cancelling the same reservation again is a 404.
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListEndpoint(t *testing.T) {
	h, _ := newTestHandler(map[int64]int{1: 10})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/", "application/json",
		strings.NewReader(`{"user_id":"user-1","product_id":1,"quantity":2}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/?user_id=user-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []reservationResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ProductID)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
