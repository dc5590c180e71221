package cachebuster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	const secret = "test-secret"

	t.Run("both inputs empty is the sentinel, not a hash", func(t *testing.T) {
		fp := Compute(secret, "", nil)
		assert.False(t, fp.IsSet())
		assert.Equal(t, ValueNone, fp.Value())
	})

	t.Run("idempotent for identical inputs", func(t *testing.T) {
		a := Compute(secret, "cart123", []uint64{3, 1})
		b := Compute(secret, "cart123", []uint64{3, 1})
		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Value(), b.Value())
	})

	t.Run("order-id storage order does not matter", func(t *testing.T) {
		a := Compute(secret, "cart123", []uint64{1, 3})
		b := Compute(secret, "cart123", []uint64{3, 1})
		assert.True(t, a.Equal(b))
	})

	t.Run("changing either input changes the value", func(t *testing.T) {
		base := Compute(secret, "cart123", []uint64{1})
		assert.NotEqual(t, base.Value(), Compute(secret, "cart456", []uint64{1}).Value())
		assert.NotEqual(t, base.Value(), Compute(secret, "cart123", []uint64{1, 2}).Value())
	})

	t.Run("nonempty input never collides with the sentinel", func(t *testing.T) {
		fp := Compute(secret, "", []uint64{1})
		assert.True(t, fp.IsSet())
		assert.NotEqual(t, ValueNone, fp.Value())

		fp = Compute(secret, "cart123", nil)
		assert.True(t, fp.IsSet())
	})

	t.Run("value is short and stable length", func(t *testing.T) {
		fp := Compute(secret, "cart123", []uint64{1, 2, 3})
		assert.Len(t, fp.Value(), 12)
	})
}

func TestFromValue(t *testing.T) {
	assert.False(t, FromValue("").IsSet())
	assert.False(t, FromValue(ValueNone).IsSet())
	assert.True(t, FromValue("abc123def456").IsSet())
	assert.Equal(t, "abc123def456", FromValue("abc123def456").Value())
}
