package application

import (
	"context"

	"github.com/mzaleski/shop-core/internal/inventory/domain"
)

type StockRepository interface {
	// Adjust applies delta to a product's quantity in a single conditional
	// write. A nil expectedVersion skips the optimistic-concurrency check.
	Adjust(ctx context.Context, productID int64, delta int, expectedVersion *int64) (domain.Stock, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}
