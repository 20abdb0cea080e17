package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mzaleski/shop-core/internal/reservation/domain"
)

const reapInterval = 5 * time.Minute

// Reaper periodically returns expired reservations' stock to the ledger.
// Each reservation is reclaimed in its own transaction so one bad row
// cannot block the rest of the batch; failures stay in the store and are
// retried on the next tick.
type Reaper struct {
	log      *slog.Logger
	store    ReservationStore
	interval time.Duration
	now      func() time.Time
}

func NewReaper(log *slog.Logger, store ReservationStore) *Reaper {
	return &Reaper{
		log:      log,
		store:    store,
		interval: reapInterval,
		now:      time.Now,
	}
}

func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopping")
			return nil
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// Tick reclaims everything expired as of now. Safe to call concurrently
// with live traffic: a reservation consumed by checkout between the scan
// and the reap is simply skipped.
func (r *Reaper) Tick(ctx context.Context) {
	now := r.now().UTC()
	expired, err := r.store.ListExpired(ctx, now)
	if err != nil {
		r.log.Error("reaper scan failed", "err", err)
		return
	}

	for _, res := range expired {
		payload, err := json.Marshal(domain.ReservationReaped{
			ReservationID: res.ID,
			UserID:        res.UserID,
			ProductID:     res.ProductID,
			Quantity:      res.Quantity,
		})
		if err != nil {
			r.log.Error("reaper marshal failed", "reservation_id", res.ID, "err", err)
			continue
		}
		reaped, err := r.store.Reap(ctx, res.ID, "ReservationReaped", payload)
		if err != nil {
			// Left in place on purpose: retried next tick.
			r.log.Error("reap failed", "reservation_id", res.ID, "err", err)
			continue
		}
		if reaped {
			r.log.Info("reservation reaped", "reservation_id", res.ID, "product_id", res.ProductID, "quantity", res.Quantity)
		}
	}
}
