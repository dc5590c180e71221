package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-paywall/internal/expiration"
	"github.com/iliyamo/content-paywall/internal/model"
)

func TestLedgerBuilder_ForUser(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("duplicate purchases: newest order wins", func(t *testing.T) {
		catalog := &fakeCatalog{products: map[uint64]*model.Product{
			10: publishedProduct(10, model.ProductTypePaywall),
		}}
		newer := paidOrder(2, uptr(7), now.AddDate(0, 0, -1), 10)
		older := paidOrder(1, uptr(7), now.AddDate(0, 0, -30), 10)
		store := &fakeOrderStore{paidByUser: map[uint64][]*model.Order{
			7: {newer, older}, // newest first, as the repository returns them
		}}

		b := NewLedgerBuilder(catalog, store, expiration.Never())
		ledger, err := b.ForUser(ctx, 7)
		require.NoError(t, err)

		require.Equal(t, 1, ledger.Len())
		rec, ok := ledger.Record(10)
		require.True(t, ok)
		assert.Equal(t, uint64(2), rec.Order.ID)
	})

	t.Run("unpublished and foreign products are skipped", func(t *testing.T) {
		draft := publishedProduct(11, model.ProductTypePaywall)
		draft.Status = model.ProductStatusDraft
		catalog := &fakeCatalog{products: map[uint64]*model.Product{
			10: publishedProduct(10, model.ProductTypePaywall),
			11: draft,
			12: {ID: 12, Type: "simple", Status: model.ProductStatusPublish},
		}}
		store := &fakeOrderStore{paidByUser: map[uint64][]*model.Order{
			7: {paidOrder(1, uptr(7), now, 10, 11, 12, 99)}, // 99 has no catalog row
		}}

		b := NewLedgerBuilder(catalog, store, expiration.Never())
		ledger, err := b.ForUser(ctx, 7)
		require.NoError(t, err)

		assert.Equal(t, 1, ledger.Len())
		_, ok := ledger.Record(10)
		assert.True(t, ok)
	})
}

func TestLedgerBuilder_ForGuest(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	catalog := &fakeCatalog{products: map[uint64]*model.Product{
		10: publishedProduct(10, model.ProductTypePaywall),
		20: publishedProduct(20, model.ProductTypePaywall),
	}}
	unpaid := paidOrder(3, nil, now, 20)
	unpaid.Status = model.OrderStatusPending
	store := &fakeOrderStore{byID: map[uint64]*model.Order{
		1: paidOrder(1, nil, now, 10),
		3: unpaid,
	}}

	b := NewLedgerBuilder(catalog, store, expiration.Never())
	ledger, err := b.ForGuest(ctx, []uint64{1, 2, 3}) // 2 does not resolve
	require.NoError(t, err)

	assert.Equal(t, 1, ledger.Len())
	_, ok := ledger.Record(10)
	assert.True(t, ok)
	_, ok = ledger.Record(20)
	assert.False(t, ok, "unpaid session order must not grant entitlement")
}
