package addresscache

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

func TestCache_CommonTierHoldsSpecialAndTxLabels(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	special := model.NewAddress(model.LabelCoinbase, 1)
	c.Put(special)
	got, ok := c.Get(model.LabelCoinbase)
	require.True(t, ok)
	assert.Equal(t, special, got)

	tx := model.NewAddress(model.TxLabel("abc"), 1)
	c.Put(tx)
	got, ok = c.Get(model.TxLabel("abc"))
	require.True(t, ok)
	assert.Equal(t, tx, got)
}

func TestCache_NormalTierRoundTrips(t *testing.T) {
	c, err := New(1000)
	require.NoError(t, err)

	addr := model.NewAddress(model.Label("1abc"), 5)
	c.Put(addr)

	got, ok := c.Get(model.Label("1abc"))
	require.True(t, ok)
	assert.Equal(t, addr, got)
}

func TestCache_Invalidate(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	c.Put(model.NewAddress(model.LabelFee, 1))
	c.Invalidate(model.LabelFee)

	_, ok := c.Get(model.LabelFee)
	assert.False(t, ok)
}

func TestCache_ClearDropsBothTiers(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	c.Put(model.NewAddress(model.LabelCoinbase, 1))
	c.Put(model.NewAddress(model.Label("1abc"), 1))
	c.Clear()

	_, ok := c.Get(model.LabelCoinbase)
	assert.False(t, ok)
	_, ok = c.Get(model.Label("1abc"))
	assert.False(t, ok)
}

func TestCache_NormalTierFlushesWholeTierOnceOverCapacity(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	first := model.NewAddress(model.Label("addr-0"), 1)
	c.Put(first)
	for i := 1; i < 4; i++ {
		c.Put(model.NewAddress(model.Label("addr-"+strconv.Itoa(i)), 1))
	}
	_, ok := c.Get(model.Label("addr-0"))
	assert.True(t, ok, "tier must still hold its first entry before capacity is exceeded")

	// The fifth write exceeds capacity and must drop the entire tier,
	// not just evict the least-recently-used key.
	c.Put(model.NewAddress(model.Label("addr-4"), 1))

	_, ok = c.Get(model.Label("addr-0"))
	assert.False(t, ok, "a capacity-triggered flush must drop every prior normal-tier key, not select individual ones")
}
