package domain

// ReservationReaped is published through the outbox when the reaper
// returns an expired hold's stock to the ledger.
type ReservationReaped struct {
	ReservationID string
	UserID        string
	ProductID     int64
	Quantity      int
}
