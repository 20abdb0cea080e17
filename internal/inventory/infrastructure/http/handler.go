package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mzaleski/shop-core/internal/inventory/application"
	"github.com/mzaleski/shop-core/internal/inventory/domain"
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
		tracer:  otel.Tracer("inventory-http"),
	}
}

type adjustReq struct {
	Delta           int    `json:"delta"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type stockResp struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Version   int64 `json:"version"`
}

type productResp struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Version    int64  `json:"version"`
}

func (h *Handler) StockRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/{productID}/adjust", h.adjust)
	return r
}

func (h *Handler) ProductRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{productID}", h.get)
	return r
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdjustStock")
	defer span.End()

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	stock, err := h.service.AdjustStock(ctx, productID, req.Delta, req.ExpectedVersion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stockResp{ProductID: stock.ProductID, Quantity: stock.Quantity, Version: stock.Version})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}
	p, err := h.service.GetProduct(ctx, productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toProductResp(p))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	products, err := h.service.ListProducts(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResp(p))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrZeroDelta):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("stock request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toProductResp(p domain.Product) productResp {
	return productResp{ID: p.ID, Name: p.Name, PriceCents: p.PriceCents, Quantity: p.Quantity, Version: p.Version}
}
