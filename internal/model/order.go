package model

import (
	"time"

	"github.com/iliyamo/content-paywall/internal/expiration"
)

// Order statuses. Only paid orders grant entitlement.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)

// Order represents a transaction as stored in the `orders` table. The
// commerce platform owns these rows; the paywall core reads them and never
// writes (the checkout handler, acting as the platform, is the only
// writer).
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owner; nil for guest orders.
//  Status        – PENDING, PAID or CANCELLED.
//  OrderKey      – opaque token enabling guest proof-of-purchase via URL.
//  DatePaid      – when payment was captured (nullable).
//  DateCompleted – when the order was completed (nullable fallback anchor).
//  DateCreated   – when the order was placed (nullable fallback anchor).
//  ExpiresOn     – order-level absolute expiry override; when set it
//                  supersedes every per-product rule.
//  CreatedAt     – row creation timestamp.
//  UpdatedAt     – row update timestamp.
//  Items         – line items, populated by the repository on demand.
type Order struct {
	ID            uint64      // orders.id
	UserID        *uint64     // orders.user_id (nullable)
	Status        string      // orders.status
	OrderKey      string      // orders.order_key
	DatePaid      *time.Time  // orders.date_paid (nullable)
	DateCompleted *time.Time  // orders.date_completed (nullable)
	DateCreated   *time.Time  // orders.date_created (nullable)
	ExpiresOn     *time.Time  // orders.expires_on (nullable override)
	CreatedAt     time.Time   // orders.created_at
	UpdatedAt     time.Time   // orders.updated_at
	Items         []OrderItem // order_items rows
}

// OrderItem links an order to a purchased product. At checkout the
// product's expiration rule is snapshotted into the item so later changes
// to the product do not alter already-sold purchases.
//
// Fields:
//  ID          – primary key identifier.
//  OrderID     – owning order.
//  ProductID   – purchased product.
//  PriceCents  – price paid in cents.
//  ExpireValue – snapshotted expiration magnitude (nullable).
//  ExpireUnits – snapshotted expiration units (nullable).
type OrderItem struct {
	ID          uint64  // order_items.id
	OrderID     uint64  // order_items.order_id
	ProductID   uint64  // order_items.product_id
	PriceCents  uint32  // order_items.price_cents
	ExpireValue *int    // order_items.expire_value (nullable)
	ExpireUnits *string // order_items.expire_units (nullable)
}

// IsPaid reports whether the order grants entitlement at all.
func (o *Order) IsPaid() bool { return o.Status == OrderStatusPaid }

// IsOwnedBy reports whether the order belongs to the given registered
// user. Guest orders (nil UserID) belong to nobody.
func (o *Order) IsOwnedBy(userID uint64) bool {
	return o.UserID != nil && *o.UserID == userID
}

// IsGuestOrder reports whether the order was placed without an account.
func (o *Order) IsGuestOrder() bool { return o.UserID == nil }

// ContainsProduct reports whether the order has a line item for the given
// product.
func (o *Order) ContainsProduct(productID uint64) bool {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return true
		}
	}
	return false
}

// ExpireSnapshot returns the expiration rule stored on the line item at
// checkout. The second return value is false when no valid snapshot
// exists and the caller should fall back to the product rule.
func (it *OrderItem) ExpireSnapshot() (expiration.ExpireAfter, bool) {
	if it.ExpireValue == nil || it.ExpireUnits == nil {
		return expiration.ExpireAfter{}, false
	}
	units, ok := expiration.ParseUnits(*it.ExpireUnits)
	if !ok || *it.ExpireValue < 0 {
		return expiration.ExpireAfter{}, false
	}
	return expiration.New(*it.ExpireValue, units), true
}
