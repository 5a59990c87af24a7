package shop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
)

func item(t *testing.T, cost, stock int) *Item {
	t.Helper()
	it, err := NewItem(NewItemParams{ID: "hat", Name: "Hat", Cost: cost, Stock: stock}, time.Now())
	require.NoError(t, err)
	return it
}

func TestNewItem_Validation(t *testing.T) {
	for _, p := range []NewItemParams{
		{Name: "x"},
		{ID: "x", Name: " "},
		{ID: "x", Name: "x", Cost: -1},
		{ID: "x", Name: "x", Stock: -2},
	} {
		_, err := NewItem(p, time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidItem, "%+v", p)
	}
}

func TestItem_CheckRedeemable(t *testing.T) {
	assert.NoError(t, item(t, 10, 1).CheckRedeemable(10))
	assert.ErrorIs(t, item(t, 10, 1).CheckRedeemable(9), shared.ErrInsufficientPoints)

	// Stock is checked before balance.
	assert.ErrorIs(t, item(t, 10, 0).CheckRedeemable(0), shared.ErrOutOfStock)

	assert.NoError(t, item(t, 0, Unlimited).CheckRedeemable(0))
}

func TestItem_Take(t *testing.T) {
	it := item(t, 5, 2)
	require.NoError(t, it.Take())
	require.NoError(t, it.Take())
	assert.Zero(t, it.Stock)
	assert.False(t, it.InStock())
	assert.ErrorIs(t, it.Take(), shared.ErrStockNegative)

	inf := item(t, 5, Unlimited)
	for i := 0; i < 3; i++ {
		require.NoError(t, inf.Take())
	}
	assert.True(t, inf.IsUnlimited())
}

func TestItem_Restock(t *testing.T) {
	it := item(t, 5, 0)
	require.NoError(t, it.Restock(3))
	assert.Equal(t, 3, it.Stock)

	assert.ErrorIs(t, it.Restock(-4), shared.ErrInvalidItem)

	require.NoError(t, it.Restock(Unlimited))
	assert.True(t, it.IsUnlimited())
	require.NoError(t, it.Restock(10))
	assert.Equal(t, Unlimited, it.Stock)
}
