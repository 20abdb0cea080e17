package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mzaleski/shop-core/internal/inventory/domain"
)

var ErrZeroDelta = errors.New("adjustment delta must be non-zero")

// Service is the stock ledger: the only path through which a product's
// quantity is ever mutated.
type Service struct {
	log  *slog.Logger
	repo StockRepository
}

func NewService(log *slog.Logger, repo StockRepository) *Service {
	return &Service{log: log, repo: repo}
}

// AdjustStock decrements (negative delta) or restores (positive delta) a
// product's available quantity. Callers that read a version first can pass
// it as expectedVersion to fail with domain.ErrVersionConflict instead of
// racing a concurrent writer.
func (s *Service) AdjustStock(ctx context.Context, productID int64, delta int, expectedVersion *int64) (domain.Stock, error) {
	if delta == 0 {
		return domain.Stock{}, ErrZeroDelta
	}
	stock, err := s.repo.Adjust(ctx, productID, delta, expectedVersion)
	if err != nil {
		return domain.Stock{}, err
	}
	s.log.Info("stock adjusted", "product_id", productID, "delta", delta, "quantity", stock.Quantity, "version", stock.Version)
	return stock, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}
