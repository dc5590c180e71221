package entitlement

import (
	"context"
	"log"

	"github.com/iliyamo/content-paywall/internal/clock"
	"github.com/iliyamo/content-paywall/internal/expiration"
	"github.com/iliyamo/content-paywall/internal/model"
)

// ProductSource is the catalog boundary the ledger needs: read-only product
// lookup.
type ProductSource interface {
	GetProduct(ctx context.Context, id uint64) (*model.Product, error)
}

// OrderSource is the order-store boundary. FindPaidOrdersByUser returns
// paid orders newest first with line items populated; GetOrder and
// FindOrderByKey return a single order with items, or nil when not found.
type OrderSource interface {
	FindPaidOrdersByUser(ctx context.Context, userID uint64) ([]*model.Order, error)
	GetOrder(ctx context.Context, id uint64) (*model.Order, error)
	FindOrderByKey(ctx context.Context, orderKey string) (*model.Order, error)
}

// Ledger maps product id to the entitlement record backing it, unique per
// product. Orders are inserted newest first, so the first record for a
// product wins and older duplicate purchases are shadowed.
type Ledger struct {
	records map[uint64]*Record
	order   []uint64 // insertion order, for stable listings
}

func newLedger() *Ledger {
	return &Ledger{records: make(map[uint64]*Record)}
}

// Record returns the entitlement record for a product id, if any.
func (l *Ledger) Record(productID uint64) (*Record, bool) {
	r, ok := l.records[productID]
	return r, ok
}

// Records returns all records in insertion order (newest purchase first).
func (l *Ledger) Records() []*Record {
	out := make([]*Record, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.records[id])
	}
	return out
}

// Len returns the number of distinct purchased products.
func (l *Ledger) Len() int { return len(l.records) }

// AnyActivePass reports whether the visitor holds an active blanket pass,
// which unlocks every standard product regardless of its own purchase
// history.
func (l *Ledger) AnyActivePass(clk clock.Clock) bool {
	for _, id := range l.order {
		r := l.records[id]
		if r.Product.IsPass() && r.IsActive(clk) {
			return true
		}
	}
	return false
}

// LedgerBuilder builds per-visitor ledgers from the catalog and order
// stores. It holds no per-request state and is safe to share.
type LedgerBuilder struct {
	products ProductSource
	orders   OrderSource
	global   expiration.ExpireAfter
}

// NewLedgerBuilder wires a builder to its sources. global is the
// store-wide default expiration rule.
func NewLedgerBuilder(products ProductSource, orders OrderSource, global expiration.ExpireAfter) *LedgerBuilder {
	return &LedgerBuilder{products: products, orders: orders, global: global}
}

// ForUser builds the ledger of a registered user from all their paid
// orders, newest first.
func (b *LedgerBuilder) ForUser(ctx context.Context, userID uint64) (*Ledger, error) {
	orders, err := b.orders.FindPaidOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ledger := newLedger()
	for _, order := range orders {
		b.addOrder(ctx, ledger, order)
	}
	return ledger, nil
}

// ForGuest builds the ledger of an anonymous visitor from the order ids
// recorded in their session, in the order they were appended. An id that
// no longer resolves to an order is skipped.
func (b *LedgerBuilder) ForGuest(ctx context.Context, orderIDs []uint64) (*Ledger, error) {
	ledger := newLedger()
	for _, id := range orderIDs {
		order, err := b.orders.GetOrder(ctx, id)
		if err != nil {
			log.Printf("entitlement: session order %d not loadable: %v", id, err)
			continue
		}
		if order == nil || !order.IsPaid() {
			continue
		}
		b.addOrder(ctx, ledger, order)
	}
	return ledger, nil
}

// addOrder inserts (product, order) pairs for every gated, published line
// item whose product id is not yet in the ledger. First occurrence wins.
func (b *LedgerBuilder) addOrder(ctx context.Context, ledger *Ledger, order *model.Order) {
	for i := range order.Items {
		item := &order.Items[i]
		if _, exists := ledger.records[item.ProductID]; exists {
			continue
		}
		product, err := b.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			log.Printf("entitlement: product %d not loadable: %v", item.ProductID, err)
			continue
		}
		if product == nil || !product.IsGatedType() || !product.IsPublished() {
			continue
		}
		ledger.records[item.ProductID] = NewRecord(product, order, item, b.global)
		ledger.order = append(ledger.order, item.ProductID)
	}
}

// BuildRecord constructs a single record for one product inside one order,
// outside of any ledger. Used for ad-hoc order-key proof checks. Returns
// nil when the order does not contain the product or the product is not a
// published gated product.
func (b *LedgerBuilder) BuildRecord(ctx context.Context, order *model.Order, productID uint64) *Record {
	var item *model.OrderItem
	for i := range order.Items {
		if order.Items[i].ProductID == productID {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return nil
	}
	product, err := b.products.GetProduct(ctx, productID)
	if err != nil || product == nil || !product.IsGatedType() || !product.IsPublished() {
		return nil
	}
	return NewRecord(product, order, item, b.global)
}
