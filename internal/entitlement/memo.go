package entitlement

// MemoCache is the request-scoped memo table for per-product boolean
// properties ("is_active", "is_purchasable", ...). A compute function runs
// at most once per (product id, property) for the lifetime of the memo;
// later lookups return the stored value even if the underlying state
// changed. That staleness is deliberate: entitlement does not change
// mid-request except right after checkout, which calls Invalidate
// explicitly.
//
// The memo must never outlive a request and is not safe for concurrent
// use; each request builds its own.
type MemoCache struct {
	entries map[uint64]map[string]bool
}

// Property names memoized per product.
const (
	PropertyIsActive = "is_active"
)

// NewMemoCache returns an empty memo table.
func NewMemoCache() *MemoCache {
	return &MemoCache{entries: make(map[uint64]map[string]bool)}
}

// GetOrCompute returns the memoized value for (productID, property),
// running compute and storing its result on the first call.
func (m *MemoCache) GetOrCompute(productID uint64, property string, compute func() bool) bool {
	if props, ok := m.entries[productID]; ok {
		if v, ok := props[property]; ok {
			return v
		}
	}
	v := compute()
	props := m.entries[productID]
	if props == nil {
		props = make(map[string]bool)
		m.entries[productID] = props
	}
	props[property] = v
	return v
}

// Invalidate drops every memoized property for one product.
func (m *MemoCache) Invalidate(productID uint64) {
	delete(m.entries, productID)
}

// Reset drops the whole table. Broadcast after a purchase completes
// mid-request so subsequent checks see the new order.
func (m *MemoCache) Reset() {
	m.entries = make(map[uint64]map[string]bool)
}
