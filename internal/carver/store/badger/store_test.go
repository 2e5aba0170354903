package badgerstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
)

type doc struct {
	Label       string `json:"label"`
	Height      uint64 `json:"height"`
	IsConfirmed bool   `json:"is_confirmed"`
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InsertOneAndFindByID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "addresses", "addr1", doc{Label: "addr1", Height: 5}))

	var out []doc
	require.NoError(t, s.Find(ctx, chain.Query{
		Collection: "addresses",
		Filter:     map[string]any{"_id": "addr1"},
	}, &out))

	require.Len(t, out, 1)
	assert.Equal(t, uint64(5), out[0].Height)
}

func TestStore_FindWithGteFilterAndSort(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for h := uint64(1); h <= 5; h++ {
		require.NoError(t, s.InsertOne(ctx, "blocks", "block:"+string(rune('0'+h)), doc{Height: h}))
	}

	var out []doc
	require.NoError(t, s.Find(ctx, chain.Query{
		Collection: "blocks",
		Filter:     map[string]any{"height__gte": float64(3)},
		SortField:  "height",
		Descending: true,
	}, &out))

	require.Len(t, out, 3)
	assert.Equal(t, uint64(5), out[0].Height)
	assert.Equal(t, uint64(3), out[2].Height)
}

func TestStore_FindRespectsLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for h := uint64(1); h <= 5; h++ {
		require.NoError(t, s.InsertOne(ctx, "blocks", "block:"+string(rune('0'+h)), doc{Height: h}))
	}

	var out []doc
	require.NoError(t, s.Find(ctx, chain.Query{
		Collection: "blocks",
		SortField:  "height",
		Limit:      2,
	}, &out))

	assert.Len(t, out, 2)
}

func TestStore_UpdateByIDOverwrites(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "addresses", "addr1", doc{Label: "addr1", Height: 1}))
	require.NoError(t, s.UpdateByID(ctx, "addresses", "addr1", doc{Label: "addr1", Height: 2}))

	var out []doc
	require.NoError(t, s.Find(ctx, chain.Query{
		Collection: "addresses",
		Filter:     map[string]any{"_id": "addr1"},
	}, &out))

	require.Len(t, out, 1)
	assert.Equal(t, uint64(2), out[0].Height)
}

func TestStore_DeleteManyRemovesMatchesAndLeavesOthers(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "movements", "m1", doc{Height: 10}))
	require.NoError(t, s.InsertOne(ctx, "movements", "m2", doc{Height: 20}))

	n, err := s.DeleteMany(ctx, chain.Query{
		Collection: "movements",
		Filter:     map[string]any{"height__gte": float64(15)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var out []doc
	require.NoError(t, s.Find(ctx, chain.Query{Collection: "movements"}, &out))
	require.Len(t, out, 1)
	assert.Equal(t, uint64(10), out[0].Height)
}

func TestStore_FindScopesByCollection(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "addresses", "shared", doc{Height: 1}))
	require.NoError(t, s.InsertOne(ctx, "blocks", "shared", doc{Height: 2}))

	var out []doc
	require.NoError(t, s.Find(ctx, chain.Query{Collection: "addresses"}, &out))
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].Height)
}
