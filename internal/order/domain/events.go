package domain

// OrderCreated is published through the outbox in the same transaction
// that persists the order.
type OrderCreated struct {
	OrderID string
	UserID  string
	Source  string // "direct" or "cart"
}
