package expiration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-paywall/internal/clock"
)

func TestExpireAfter_IsExpiredSince(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	t.Run("zero value never expires", func(t *testing.T) {
		rule := New(0, UnitsDays)
		assert.False(t, rule.IsExpiredSince(clk, now.AddDate(-10, 0, 0)))
		assert.False(t, rule.IsExpiredSince(clk, time.Time{}))
	})

	t.Run("seven days, anchor eight days ago", func(t *testing.T) {
		rule := New(7, UnitsDays)
		assert.True(t, rule.IsExpiredSince(clk, now.AddDate(0, 0, -8)))
	})

	t.Run("seven days, anchor six days ago", func(t *testing.T) {
		rule := New(7, UnitsDays)
		assert.False(t, rule.IsExpiredSince(clk, now.AddDate(0, 0, -6)))
	})

	t.Run("hours", func(t *testing.T) {
		rule := New(3, UnitsHours)
		assert.True(t, rule.IsExpiredSince(clk, now.Add(-4*time.Hour)))
		assert.False(t, rule.IsExpiredSince(clk, now.Add(-2*time.Hour)))
	})

	t.Run("expiry exactly now is not expired", func(t *testing.T) {
		// Expired means strictly in the past.
		rule := New(1, UnitsHours)
		assert.False(t, rule.IsExpiredSince(clk, now.Add(-time.Hour)))
	})

	t.Run("unknown units fail open", func(t *testing.T) {
		rule := ExpireAfter{Value: 7, Units: "weeks"}
		assert.False(t, rule.IsExpiredSince(clk, now.AddDate(-1, 0, 0)))
	})
}

func TestExpireAfter_ExpiresOn(t *testing.T) {
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)

	now := time.Date(2025, 3, 8, 9, 0, 0, 0, loc)
	clk := clock.NewFixed(now)

	t.Run("days are calendar days in store timezone", func(t *testing.T) {
		// Crossing the DST spring-forward boundary: the expiry keeps the
		// local clock time of the anchor.
		rule := New(1, UnitsDays)
		expiresOn, ok := rule.ExpiresOn(clk, now)
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 3, 9, 9, 0, 0, 0, loc), expiresOn)
	})

	t.Run("no expiry for zero rule", func(t *testing.T) {
		_, ok := Never().ExpiresOn(clk, now)
		assert.False(t, ok)
	})
}

func TestNew_Clamps(t *testing.T) {
	assert.Equal(t, 0, New(-5, UnitsDays).Value)
	assert.Equal(t, MaxValue, New(1000, UnitsDays).Value)
	assert.Equal(t, DefaultUnits, New(7, "fortnights").Units)
}

func TestParseUnits(t *testing.T) {
	u, ok := ParseUnits("hours")
	assert.True(t, ok)
	assert.Equal(t, UnitsHours, u)

	u, ok = ParseUnits("months")
	assert.False(t, ok)
	assert.Equal(t, DefaultUnits, u)
}
