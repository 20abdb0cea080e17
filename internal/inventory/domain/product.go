package domain

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrVersionConflict   = errors.New("stock version conflict")
)

// Product is the catalog record the ledger mutates. Quantity and Version
// are owned exclusively by the stock ledger; Version increases by one on
// every committed adjustment.
type Product struct {
	ID         int64
	Name       string
	PriceCents int64
	Quantity   int
	Version    int64
}

// Stock is the ledger's view of a product right after an adjustment.
type Stock struct {
	ProductID  int64
	PriceCents int64
	Quantity   int
	Version    int64
}
