// Package entitlement decides whether a visitor may view a gated product:
// it pairs purchased products with the orders that bought them, applies
// expiration rules, and answers per-product queries through a request-scoped
// resolver.
package entitlement

import (
	"log"
	"time"

	"github.com/iliyamo/content-paywall/internal/clock"
	"github.com/iliyamo/content-paywall/internal/expiration"
	"github.com/iliyamo/content-paywall/internal/model"
)

// Expiration statuses of a purchased product.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Record pairs a purchased product with the order that bought it. Records
// are derived on demand while building a ledger and never persisted; a
// record only exists when the order actually contains the product as a
// line item.
type Record struct {
	Product *model.Product
	Order   *model.Order
	Item    *model.OrderItem

	global expiration.ExpireAfter

	// expireAfterFn overrides rule resolution in tests.
	expireAfterFn func() expiration.ExpireAfter
}

// NewRecord builds a record. item may be nil when the order predates the
// expiration snapshot; global is the store-wide default rule.
func NewRecord(product *model.Product, order *model.Order, item *model.OrderItem, global expiration.ExpireAfter) *Record {
	return &Record{Product: product, Order: order, Item: item, global: global}
}

// ExpireAfter resolves the rule that applies to this purchase: the order
// item snapshot when valid, else the product's custom rule, else the
// global default. The order-level absolute override is not a rule and is
// handled in ExpirationStatus directly.
func (r *Record) ExpireAfter() expiration.ExpireAfter {
	if r.expireAfterFn != nil {
		return r.expireAfterFn()
	}
	if r.Item != nil {
		if snap, ok := r.Item.ExpireSnapshot(); ok {
			return snap
		}
	}
	return r.Product.ExpireAfter(r.global)
}

// AnchorDate returns the date the expiration countdown starts from: the
// first present of paid, completed, created. An order with none of them is
// anomalous; the countdown then starts "now", which in effect never
// expires.
func (r *Record) AnchorDate(clk clock.Clock) time.Time {
	switch {
	case r.Order.DatePaid != nil:
		return *r.Order.DatePaid
	case r.Order.DateCompleted != nil:
		log.Printf("entitlement: order %d has no paid date, using completed date", r.Order.ID)
		return *r.Order.DateCompleted
	case r.Order.DateCreated != nil:
		log.Printf("entitlement: order %d has no paid date, using created date", r.Order.ID)
		return *r.Order.DateCreated
	}
	log.Printf("entitlement: order %d has no dates at all, anchoring at now (never expires)", r.Order.ID)
	return clk.Now()
}

// ExpirationStatus derives the record's status. An order-level absolute
// override, when present, decides outright and the per-product rule is not
// consulted.
func (r *Record) ExpirationStatus(clk clock.Clock) string {
	if r.Order.ExpiresOn != nil {
		if r.Order.ExpiresOn.Before(clk.Now()) {
			return StatusExpired
		}
		return StatusActive
	}
	if r.ExpireAfter().IsExpiredSince(clk, r.AnchorDate(clk)) {
		return StatusExpired
	}
	return StatusActive
}

// IsActive reports whether the record currently grants access.
func (r *Record) IsActive(clk clock.Clock) bool {
	return r.ExpirationStatus(clk) == StatusActive
}

// HasExpiration reports whether anything can ever expire this record:
// either the order carries an absolute override or the effective rule has
// a nonzero magnitude.
func (r *Record) HasExpiration() bool {
	return r.Order.ExpiresOn != nil || r.ExpireAfter().IsSet()
}

// TimeToExpire returns how long until the record expires. The second
// return value is false when the record never expires or the expiry cannot
// be computed. A negative duration means already expired.
func (r *Record) TimeToExpire(clk clock.Clock) (time.Duration, bool) {
	if r.Order.ExpiresOn != nil {
		return r.Order.ExpiresOn.Sub(clk.Now()), true
	}
	expiresOn, ok := r.ExpireAfter().ExpiresOn(clk, r.AnchorDate(clk))
	if !ok {
		return 0, false
	}
	return expiresOn.Sub(clk.Now()), true
}
