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
	"github.com/mzaleski/shop-core/internal/order/application"
	"github.com/mzaleski/shop-core/internal/order/domain"
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
		tracer:  otel.Tracer("order-http"),
	}
}

type createOrderReq struct {
	UserID string `json:"user_id"`
	Items  []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

type checkoutReq struct {
	UserID string `json:"user_id"`
}

type orderLineResp struct {
	ProductID             int64 `json:"product_id"`
	Quantity              int   `json:"quantity"`
	PriceAtOrderTimeCents int64 `json:"price_at_order_time_cents"`
}

type orderResp struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Lines         []orderLineResp `json:"lines"`
	TotalCents    int64           `json:"total_cents"`
	PaymentStatus string          `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.createOrder)
	r.Post("/checkout", h.checkout)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	items := make([]application.ItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, application.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.service.CreateOrder(ctx, req.UserID, items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toResp(o))
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "FinalizeOrder")
	defer span.End()

	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	o, err := h.service.FinalizeOrder(ctx, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toResp(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrdersForUser")
	defer span.End()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	orders, err := h.service.GetOrdersForUser(ctx, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResp(o))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrderByID")
	defer span.End()

	o, err := h.service.GetOrderByID(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResp(o))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrNoItems),
		errors.Is(err, application.ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, inventorydomain.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrReservationExpired),
		errors.Is(err, inventorydomain.ErrInsufficientStock):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("order request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResp(o domain.Order) orderResp {
	lines := make([]orderLineResp, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResp{
			ProductID:             l.ProductID,
			Quantity:              l.Quantity,
			PriceAtOrderTimeCents: l.PriceAtOrderTimeCents,
		})
	}
	return orderResp{
		ID:            o.ID,
		UserID:        o.UserID,
		Lines:         lines,
		TotalCents:    o.TotalCents(),
		PaymentStatus: string(o.PaymentStatus),
		CreatedAt:     o.CreatedAt,
	}
}
