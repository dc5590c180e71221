// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderPlacedEvent is published when a checkout completes and a paid order
// exists. It contains enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
// ExpiresOn is empty for purchases that never expire.
type OrderPlacedEvent struct {
	OrderID          uint64   `json:"order_id"`
	OrderKey         string   `json:"order_key"`
	UserID           uint64   `json:"user_id"` // 0 for guest orders
	ProductIDs       []uint64 `json:"product_ids"`
	ProductTitles    []string `json:"product_titles"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	ExpiresOn        string   `json:"expires_on,omitempty"`
	PlacedAt         string   `json:"placed_at"`
}
