package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	inventorydomain "github.com/mzaleski/shop-core/internal/inventory/domain"
	"github.com/mzaleski/shop-core/internal/reservation/application"
	"github.com/mzaleski/shop-core/internal/reservation/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("cart-http"),
	}
}

type claimReq struct {
	UserID    string `json:"user_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type reservationResp struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ProductID  int64     `json:"product_id"`
	Quantity   int       `json:"quantity"`
	ReservedAt time.Time `json:"reserved_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.claim)
	r.Get("/", h.list)
	r.Delete("/{reservationID}", h.cancel)
	return r
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ClaimReservation")
	defer span.End()

	var req claimReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.Claim(ctx, req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toResp(res))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListReservations")
	defer span.End()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	reservations, err := h.service.ListForUser(ctx, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]reservationResp, 0, len(reservations))
	for _, res := range reservations {
		out = append(out, toResp(res))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelReservation")
	defer span.End()

	id := chi.URLParam(r, "reservationID")
	if err := h.service.Cancel(ctx, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrReservationNotFound),
		errors.Is(err, inventorydomain.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, inventorydomain.ErrInsufficientStock):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("cart request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResp(res domain.Reservation) reservationResp {
	return reservationResp{
		ID:         res.ID,
		UserID:     res.UserID,
		ProductID:  res.ProductID,
		Quantity:   res.Quantity,
		ReservedAt: res.ReservedAt,
		ExpiresAt:  res.ExpiresAt,
	}
}
