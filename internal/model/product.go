package model

import (
	"time"

	"github.com/iliyamo/content-paywall/internal/expiration"
)

// Product types. A "paywall" product gates its own premium content; a
// "pass" product unlocks every paywall product while the purchase is
// active.
const (
	ProductTypePaywall = "paywall"
	ProductTypePass    = "pass"
)

// Product statuses. Only published products participate in entitlement.
const (
	ProductStatusPublish = "publish"
	ProductStatusDraft   = "draft"
)

// Product represents a gated product as stored in the `products` table.
// The catalog owns these rows; the paywall core reads them and never
// writes.
//
// Fields:
//  ID               – primary key identifier.
//  Title            – product title.
//  Type             – "paywall" or "pass".
//  Status           – publication status; only "publish" is gated.
//  PriceCents       – price in cents. Free products skip storefront
//                     alterations but are gated all the same.
//  CustomExpiration – whether this product overrides the global
//                     expiration rule.
//  ExpireValue      – override magnitude (0 = never expires).
//  ExpireUnits      – override units ("hours" or "days").
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Product struct {
	ID               uint64    // products.id
	Title            string    // products.title
	Type             string    // products.type
	Status           string    // products.status
	PriceCents       uint32    // products.price_cents
	CustomExpiration bool      // products.custom_expiration
	ExpireValue      int       // products.expire_value
	ExpireUnits      string    // products.expire_units
	CreatedAt        time.Time // products.created_at
	UpdatedAt        time.Time // products.updated_at
}

// IsPass reports whether this product is a blanket pass.
func (p *Product) IsPass() bool { return p.Type == ProductTypePass }

// IsGatedType reports whether the product participates in the paywall at
// all (either type).
func (p *Product) IsGatedType() bool {
	return p.Type == ProductTypePaywall || p.Type == ProductTypePass
}

// IsPublished reports whether the product is in a publishable state.
// Unpublished products never enter a purchase ledger.
func (p *Product) IsPublished() bool { return p.Status == ProductStatusPublish }

// ExpireAfter returns the product's effective expiration rule: its own
// custom rule when it opted in, otherwise the global default passed by the
// caller.
func (p *Product) ExpireAfter(global expiration.ExpireAfter) expiration.ExpireAfter {
	if p.CustomExpiration {
		units, _ := expiration.ParseUnits(p.ExpireUnits)
		return expiration.New(p.ExpireValue, units)
	}
	return global
}
