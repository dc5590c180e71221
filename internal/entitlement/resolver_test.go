package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-paywall/internal/clock"
	"github.com/iliyamo/content-paywall/internal/expiration"
	"github.com/iliyamo/content-paywall/internal/model"
)

func newTestResolver(catalog *fakeCatalog, store *fakeOrderStore, now time.Time) *Resolver {
	b := NewLedgerBuilder(catalog, store, expiration.Never())
	return NewResolver(b, store, clock.NewFixed(now))
}

func TestVisitorEntitlements_CanView(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("purchased product is viewable", func(t *testing.T) {
		catalog := &fakeCatalog{products: map[uint64]*model.Product{10: publishedProduct(10, model.ProductTypePaywall)}}
		store := &fakeOrderStore{paidByUser: map[uint64][]*model.Order{7: {paidOrder(1, uptr(7), now, 10)}}}
		v := newTestResolver(catalog, store, now).ForVisitor(Visitor{UserID: uptr(7)})

		assert.True(t, v.CanView(ctx, Query{ProductID: 10}))
		assert.False(t, v.CanView(ctx, Query{ProductID: 11}))
	})

	t.Run("active blanket pass unlocks unpurchased standard items", func(t *testing.T) {
		catalog := &fakeCatalog{products: map[uint64]*model.Product{
			10: publishedProduct(10, model.ProductTypePaywall),
			50: publishedProduct(50, model.ProductTypePass),
		}}
		store := &fakeOrderStore{paidByUser: map[uint64][]*model.Order{7: {paidOrder(1, uptr(7), now, 50)}}}
		v := newTestResolver(catalog, store, now).ForVisitor(Visitor{UserID: uptr(7)})

		assert.True(t, v.CanView(ctx, Query{ProductID: 10}))
	})

	t.Run("expired pass does not unlock", func(t *testing.T) {
		pass := publishedProduct(50, model.ProductTypePass)
		pass.CustomExpiration = true
		pass.ExpireValue = 1
		pass.ExpireUnits = string(expiration.UnitsDays)
		catalog := &fakeCatalog{products: map[uint64]*model.Product{
			10: publishedProduct(10, model.ProductTypePaywall),
			50: pass,
		}}
		store := &fakeOrderStore{paidByUser: map[uint64][]*model.Order{7: {paidOrder(1, uptr(7), now.AddDate(0, 0, -2), 50)}}}
		v := newTestResolver(catalog, store, now).ForVisitor(Visitor{UserID: uptr(7)})

		assert.False(t, v.CanView(ctx, Query{ProductID: 10}))
	})

	t.Run("expanded id set keeps the base grant and adds variants", func(t *testing.T) {
		catalog := &fakeCatalog{products: map[uint64]*model.Product{10: publishedProduct(10, model.ProductTypePaywall)}}
		store := &fakeOrderStore{paidByUser: map[uint64][]*model.Order{7: {paidOrder(1, uptr(7), now, 10)}}}
		r := newTestResolver(catalog, store, now)

		// Monotonicity: true for the bare id stays true for any expanded
		// set containing it.
		v1 := r.ForVisitor(Visitor{UserID: uptr(7)})
		require.True(t, v1.CanView(ctx, Query{ProductID: 10}))
		v2 := r.ForVisitor(Visitor{UserID: uptr(7)})
		assert.True(t, v2.CanView(ctx, Query{ProductID: 10, ExpandedIDs: []uint64{99, 10, 42}}))

		// A translation variant resolves through the purchased original.
		v3 := r.ForVisitor(Visitor{UserID: uptr(7)})
		assert.True(t, v3.CanView(ctx, Query{ProductID: 99, ExpandedIDs: []uint64{99, 10}}))
	})

	t.Run("preview override bypasses everything", func(t *testing.T) {
		catalog := &fakeCatalog{products: map[uint64]*model.Product{10: publishedProduct(10, model.ProductTypePaywall)}}
		store := &fakeOrderStore{paidByUser: map[uint64][]*model.Order{7: {paidOrder(1, uptr(7), now, 10)}}}
		r := newTestResolver(catalog, store, now)

		locked := false
		v := r.ForVisitor(Visitor{UserID: uptr(7)})
		assert.False(t, v.CanView(ctx, Query{ProductID: 10, Preview: &locked}),
			"preview=locked must hide even a purchased product")

		paid := true
		v2 := r.ForVisitor(Visitor{UserID: uptr(7)})
		assert.True(t, v2.CanView(ctx, Query{ProductID: 11, Preview: &paid}),
			"preview=paid must show even an unpurchased product")
	})

	t.Run("guest ledger comes from session order ids", func(t *testing.T) {
		catalog := &fakeCatalog{products: map[uint64]*model.Product{10: publishedProduct(10, model.ProductTypePaywall)}}
		store := &fakeOrderStore{byID: map[uint64]*model.Order{5: paidOrder(5, nil, now, 10)}}
		r := newTestResolver(catalog, store, now)

		v := r.ForVisitor(Visitor{SessionOrderIDs: []uint64{5}})
		assert.True(t, v.CanView(ctx, Query{ProductID: 10}))

		stranger := r.ForVisitor(Visitor{})
		assert.False(t, stranger.CanView(ctx, Query{ProductID: 10}))
	})
}

func TestVisitorEntitlements_OrderKey(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	catalog := &fakeCatalog{products: map[uint64]*model.Product{10: publishedProduct(10, model.ProductTypePaywall)}}
	guestOrder := paidOrder(5, nil, now, 10)
	guestOrder.OrderKey = "wc_key_abc"
	ownedOrder := paidOrder(6, uptr(7), now, 10)
	ownedOrder.OrderKey = "wc_key_owned"
	store := &fakeOrderStore{byKey: map[string]*model.Order{
		"wc_key_abc":   guestOrder,
		"wc_key_owned": ownedOrder,
	}}
	r := newTestResolver(catalog, store, now)

	t.Run("valid guest key grants access", func(t *testing.T) {
		v := r.ForVisitor(Visitor{})
		assert.True(t, v.CanView(ctx, Query{ProductID: 10, OrderKey: "wc_key_abc"}))
	})

	t.Run("malformed key falls through to ledger", func(t *testing.T) {
		v := r.ForVisitor(Visitor{})
		assert.False(t, v.CanView(ctx, Query{ProductID: 10, OrderKey: "nope"}))
	})

	t.Run("another user's order key does not grant", func(t *testing.T) {
		v := r.ForVisitor(Visitor{UserID: uptr(8)})
		assert.False(t, v.CanView(ctx, Query{ProductID: 10, OrderKey: "wc_key_owned"}))

		owner := r.ForVisitor(Visitor{UserID: uptr(7)})
		assert.True(t, owner.CanView(ctx, Query{ProductID: 10, OrderKey: "wc_key_owned"}))
	})

	t.Run("expired order override blocks the key", func(t *testing.T) {
		past := now.Add(-time.Hour)
		expired := paidOrder(9, nil, now, 10)
		expired.OrderKey = "wc_key_exp"
		expired.ExpiresOn = &past
		store.byKey["wc_key_exp"] = expired

		v := r.ForVisitor(Visitor{})
		assert.False(t, v.CanView(ctx, Query{ProductID: 10, OrderKey: "wc_key_exp"}))
	})
}

func TestVisitorEntitlements_Memoization(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	catalog := &fakeCatalog{products: map[uint64]*model.Product{10: publishedProduct(10, model.ProductTypePaywall)}}
	store := &fakeOrderStore{byID: map[uint64]*model.Order{}}
	r := newTestResolver(catalog, store, now)

	v := r.ForVisitor(Visitor{})
	assert.False(t, v.CanView(ctx, Query{ProductID: 10}))

	// The purchase lands mid-request; without invalidation the memo keeps
	// returning the stale denial.
	store.byID[5] = paidOrder(5, nil, now, 10)
	v.AppendSessionOrder(5)
	assert.False(t, v.CanView(ctx, Query{ProductID: 10}), "memoized result survives state change")

	v.InvalidatePurchases()
	assert.True(t, v.CanView(ctx, Query{ProductID: 10}), "explicit broadcast rebuilds the ledger")
}

func TestVisitorEntitlements_TimeToExpire(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	product := publishedProduct(10, model.ProductTypePaywall)
	product.CustomExpiration = true
	product.ExpireValue = 3
	product.ExpireUnits = string(expiration.UnitsHours)
	catalog := &fakeCatalog{products: map[uint64]*model.Product{10: product}}
	store := &fakeOrderStore{paidByUser: map[uint64][]*model.Order{7: {paidOrder(1, uptr(7), now.Add(-time.Hour), 10)}}}
	v := newTestResolver(catalog, store, now).ForVisitor(Visitor{UserID: uptr(7)})

	d, ok := v.TimeToExpire(ctx, 10)
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, d)

	_, ok = v.TimeToExpire(ctx, 42)
	assert.False(t, ok)
}

func TestMemoCache(t *testing.T) {
	m := NewMemoCache()
	calls := 0
	compute := func() bool { calls++; return true }

	assert.True(t, m.GetOrCompute(1, PropertyIsActive, compute))
	assert.True(t, m.GetOrCompute(1, PropertyIsActive, compute))
	assert.Equal(t, 1, calls, "compute runs at most once per (id, property)")

	m.Invalidate(1)
	assert.True(t, m.GetOrCompute(1, PropertyIsActive, compute))
	assert.Equal(t, 2, calls)
}
