package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-paywall/internal/clock"
	"github.com/iliyamo/content-paywall/internal/expiration"
	"github.com/iliyamo/content-paywall/internal/model"
)

func TestRecord_ExpirationStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	global := expiration.New(7, expiration.UnitsDays)

	t.Run("order override wins, rule never consulted", func(t *testing.T) {
		future := now.Add(48 * time.Hour)
		order := paidOrder(1, nil, now.AddDate(-1, 0, 0), 10)
		order.ExpiresOn = &future

		rec := NewRecord(publishedProduct(10, model.ProductTypePaywall), order, &order.Items[0], global)
		ruleConsulted := false
		rec.expireAfterFn = func() expiration.ExpireAfter {
			ruleConsulted = true
			return global
		}

		// Anchor is a year old, the 7-day rule would say expired; the
		// override says active and must decide alone.
		assert.Equal(t, StatusActive, rec.ExpirationStatus(clk))
		assert.False(t, ruleConsulted)
	})

	t.Run("order override in the past means expired", func(t *testing.T) {
		past := now.Add(-time.Minute)
		order := paidOrder(1, nil, now, 10)
		order.ExpiresOn = &past

		rec := NewRecord(publishedProduct(10, model.ProductTypePaywall), order, &order.Items[0], expiration.Never())
		assert.Equal(t, StatusExpired, rec.ExpirationStatus(clk))
	})

	t.Run("falls back to rule against anchor date", func(t *testing.T) {
		order := paidOrder(1, nil, now.AddDate(0, 0, -8), 10)
		rec := NewRecord(publishedProduct(10, model.ProductTypePaywall), order, &order.Items[0], global)
		assert.Equal(t, StatusExpired, rec.ExpirationStatus(clk))

		order2 := paidOrder(2, nil, now.AddDate(0, 0, -6), 10)
		rec2 := NewRecord(publishedProduct(10, model.ProductTypePaywall), order2, &order2.Items[0], global)
		assert.Equal(t, StatusActive, rec2.ExpirationStatus(clk))
	})

	t.Run("item snapshot beats product rule", func(t *testing.T) {
		order := paidOrder(1, nil, now.AddDate(0, 0, -8), 10)
		val := 30
		units := string(expiration.UnitsDays)
		order.Items[0].ExpireValue = &val
		order.Items[0].ExpireUnits = &units

		// Product rule alone would expire this purchase.
		product := publishedProduct(10, model.ProductTypePaywall)
		product.CustomExpiration = true
		product.ExpireValue = 1
		product.ExpireUnits = string(expiration.UnitsDays)

		rec := NewRecord(product, order, &order.Items[0], global)
		assert.Equal(t, StatusActive, rec.ExpirationStatus(clk))
	})
}

func TestRecord_AnchorDate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	paid := now.AddDate(0, 0, -3)
	completed := now.AddDate(0, 0, -2)
	created := now.AddDate(0, 0, -1)

	t.Run("prefers paid then completed then created", func(t *testing.T) {
		order := &model.Order{ID: 1, Status: model.OrderStatusPaid, DatePaid: &paid, DateCompleted: &completed, DateCreated: &created}
		rec := NewRecord(publishedProduct(10, model.ProductTypePaywall), order, nil, expiration.Never())
		assert.Equal(t, paid, rec.AnchorDate(clk))

		order.DatePaid = nil
		assert.Equal(t, completed, rec.AnchorDate(clk))

		order.DateCompleted = nil
		assert.Equal(t, created, rec.AnchorDate(clk))
	})

	t.Run("no dates at all anchors at now and never expires", func(t *testing.T) {
		order := &model.Order{ID: 1, Status: model.OrderStatusPaid}
		rec := NewRecord(publishedProduct(10, model.ProductTypePaywall), order, nil, expiration.New(1, expiration.UnitsHours))
		assert.Equal(t, now, rec.AnchorDate(clk))
		assert.Equal(t, StatusActive, rec.ExpirationStatus(clk))
	})
}

func TestRecord_HasExpirationAndTimeToExpire(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	t.Run("no override, zero rule", func(t *testing.T) {
		order := paidOrder(1, nil, now, 10)
		rec := NewRecord(publishedProduct(10, model.ProductTypePaywall), order, &order.Items[0], expiration.Never())
		assert.False(t, rec.HasExpiration())
		_, ok := rec.TimeToExpire(clk)
		assert.False(t, ok)
	})

	t.Run("rule-driven time to expire", func(t *testing.T) {
		order := paidOrder(1, nil, now.Add(-2*time.Hour), 10)
		rec := NewRecord(publishedProduct(10, model.ProductTypePaywall), order, &order.Items[0], expiration.New(3, expiration.UnitsHours))
		require.True(t, rec.HasExpiration())
		d, ok := rec.TimeToExpire(clk)
		require.True(t, ok)
		assert.Equal(t, time.Hour, d)
	})

	t.Run("override-driven time to expire", func(t *testing.T) {
		future := now.Add(30 * time.Minute)
		order := paidOrder(1, nil, now, 10)
		order.ExpiresOn = &future
		rec := NewRecord(publishedProduct(10, model.ProductTypePaywall), order, &order.Items[0], expiration.Never())
		require.True(t, rec.HasExpiration())
		d, ok := rec.TimeToExpire(clk)
		require.True(t, ok)
		assert.Equal(t, 30*time.Minute, d)
	})
}
