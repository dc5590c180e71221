package entitlement

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/content-paywall/internal/clock"
)

// Visitor identifies who is asking: a registered user (UserID set) or a
// guest carrying a session list of order ids.
type Visitor struct {
	UserID          *uint64
	SessionOrderIDs []uint64
}

// Query describes one entitlement question. ExpandedIDs is normally empty
// (just the product id); a localization layer may expand it to all language
// variants of the same product. Preview is the operator-only preview
// toggle: non-nil bypasses every other check and is returned verbatim.
// OrderKey is an out-of-band proof-of-purchase token from the URL.
type Query struct {
	ProductID   uint64
	ExpandedIDs []uint64
	OrderKey    string
	Preview     *bool
}

// Resolver answers entitlement queries. It is shared and stateless; all
// per-request state lives in the VisitorEntitlements it creates.
type Resolver struct {
	builder *LedgerBuilder
	orders  OrderSource
	clk     clock.Clock
}

// NewResolver wires a resolver to the ledger builder and order store.
func NewResolver(builder *LedgerBuilder, orders OrderSource, clk clock.Clock) *Resolver {
	return &Resolver{builder: builder, orders: orders, clk: clk}
}

// ForVisitor opens a request-scoped view for one visitor, with a fresh
// memo table and a lazily built ledger. Never share it across requests.
func (r *Resolver) ForVisitor(visitor Visitor) *VisitorEntitlements {
	return &VisitorEntitlements{resolver: r, visitor: visitor, memo: NewMemoCache()}
}

// VisitorEntitlements is the per-request decision surface: one visitor,
// one memo table, one lazily built ledger.
type VisitorEntitlements struct {
	resolver *Resolver
	visitor  Visitor
	memo     *MemoCache
	ledger   *Ledger
}

// Ledger returns the visitor's purchase ledger, building it on first use.
// A build failure is logged and yields an empty ledger: the only visible
// effect of an internal failure is "no access".
func (v *VisitorEntitlements) Ledger(ctx context.Context) *Ledger {
	if v.ledger != nil {
		return v.ledger
	}
	var (
		ledger *Ledger
		err    error
	)
	if v.visitor.UserID != nil {
		ledger, err = v.resolver.builder.ForUser(ctx, *v.visitor.UserID)
	} else {
		ledger, err = v.resolver.builder.ForGuest(ctx, v.visitor.SessionOrderIDs)
	}
	if err != nil {
		log.Printf("entitlement: ledger build failed: %v", err)
		ledger = newLedger()
	}
	v.ledger = ledger
	return v.ledger
}

// CanView answers "may this visitor view this product now". The result is
// memoized per product id for the rest of the request; InvalidatePurchases
// clears the memo after a mid-request purchase.
func (v *VisitorEntitlements) CanView(ctx context.Context, q Query) bool {
	return v.memo.GetOrCompute(q.ProductID, PropertyIsActive, func() bool {
		return v.computeCanView(ctx, q)
	})
}

// computeCanView runs the decision chain in order, short-circuiting on the
// first grant:
//  1. operator preview toggle, returned verbatim;
//  2. order-key proof of purchase;
//  3. any active blanket pass in the ledger;
//  4. an active record for any id in the expanded id set.
func (v *VisitorEntitlements) computeCanView(ctx context.Context, q Query) bool {
	if q.Preview != nil {
		return *q.Preview
	}

	if q.OrderKey != "" && v.orderKeyGrants(ctx, q.OrderKey, q.ProductID) {
		return true
	}

	ledger := v.Ledger(ctx)
	if ledger.Len() == 0 {
		return false
	}

	clk := v.resolver.clk
	if ledger.AnyActivePass(clk) {
		return true
	}

	ids := q.ExpandedIDs
	if len(ids) == 0 {
		ids = []uint64{q.ProductID}
	}
	for _, id := range ids {
		if rec, ok := ledger.Record(id); ok && rec.IsActive(clk) {
			return true
		}
	}
	return false
}

// orderKeyGrants validates an ad-hoc proof-of-purchase token: the key must
// resolve to a paid, non-expired order that belongs to this visitor (or to
// no one, for guest orders), contains the product, and yields an active
// record. Any failure means "no proof", never an error to the visitor.
func (v *VisitorEntitlements) orderKeyGrants(ctx context.Context, orderKey string, productID uint64) bool {
	order, err := v.resolver.orders.FindOrderByKey(ctx, orderKey)
	if err != nil {
		log.Printf("entitlement: order key lookup failed: %v", err)
		return false
	}
	if order == nil || !order.IsPaid() {
		return false
	}
	if order.ExpiresOn != nil && order.ExpiresOn.Before(v.resolver.clk.Now()) {
		return false
	}
	if !order.IsGuestOrder() {
		if v.visitor.UserID == nil || !order.IsOwnedBy(*v.visitor.UserID) {
			return false
		}
	}
	if !order.ContainsProduct(productID) {
		return false
	}
	rec := v.resolver.builder.BuildRecord(ctx, order, productID)
	return rec != nil && rec.IsActive(v.resolver.clk)
}

// ExpirationStatus reports the record status for a product, when the
// visitor has one.
func (v *VisitorEntitlements) ExpirationStatus(ctx context.Context, productID uint64) (string, bool) {
	rec, ok := v.Ledger(ctx).Record(productID)
	if !ok {
		return "", false
	}
	return rec.ExpirationStatus(v.resolver.clk), true
}

// TimeToExpire reports how long the visitor's access to a product lasts.
// False when the product is not actively held or never expires.
func (v *VisitorEntitlements) TimeToExpire(ctx context.Context, productID uint64) (time.Duration, bool) {
	rec, ok := v.Ledger(ctx).Record(productID)
	if !ok || !rec.IsActive(v.resolver.clk) || !rec.HasExpiration() {
		return 0, false
	}
	return rec.TimeToExpire(v.resolver.clk)
}

// InvalidatePurchases drops the memo and the cached ledger so the next
// query rebuilds from storage. Broadcast after a purchase completes
// mid-request.
func (v *VisitorEntitlements) InvalidatePurchases() {
	v.memo.Reset()
	v.ledger = nil
}

// AppendSessionOrder records a just-placed guest order id so the rebuilt
// ledger sees it without a new request.
func (v *VisitorEntitlements) AppendSessionOrder(orderID uint64) {
	for _, id := range v.visitor.SessionOrderIDs {
		if id == orderID {
			return
		}
	}
	v.visitor.SessionOrderIDs = append(v.visitor.SessionOrderIDs, orderID)
}
