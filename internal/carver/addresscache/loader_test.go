package addresscache

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

type fakeStore struct {
	docs      map[string]map[string]any
	findErr   error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]map[string]any)}
}

func (s *fakeStore) InsertOne(ctx context.Context, collection string, id string, doc any) error {
	return nil
}

func (s *fakeStore) InsertMany(ctx context.Context, collection string, docs map[string]any) error {
	return nil
}

func (s *fakeStore) Find(ctx context.Context, q chain.Query, out any) error {
	if s.findErr != nil {
		return s.findErr
	}
	id, _ := q.Filter["_id"].(string)
	addrs, ok := s.docs[id]
	ptr, okOut := out.(*[]model.CarverAddress)
	if !okOut {
		return errors.New("unsupported out type in fake store")
	}
	if !ok {
		*ptr = nil
		return nil
	}
	*ptr = []model.CarverAddress{addrs["value"].(model.CarverAddress)}
	return nil
}

func (s *fakeStore) DeleteMany(ctx context.Context, q chain.Query) (int, error) { return 0, nil }

func (s *fakeStore) UpdateByID(ctx context.Context, collection string, id string, doc any) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	addr, ok := doc.(*model.CarverAddress)
	if !ok {
		return errors.New("unsupported doc type in fake store")
	}
	s.docs[id] = map[string]any{"value": *addr}
	return nil
}

func (s *fakeStore) Close() error { return nil }

func TestLoader_Load_CreatesWhenMissing(t *testing.T) {
	cache, err := New(10)
	require.NoError(t, err)
	store := newFakeStore()
	loader := NewLoader(cache, store)

	addr, err := loader.Load(context.Background(), model.Label("1abc"), 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), addr.BlockHeight)
	assert.True(t, addr.Balance.IsZero())

	cached, ok := cache.Get(model.Label("1abc"))
	require.True(t, ok)
	assert.True(t, reflect.DeepEqual(addr, cached))
}

func TestLoader_Load_ReadsFromStoreOnCacheMiss(t *testing.T) {
	cache, err := New(10)
	require.NoError(t, err)
	store := newFakeStore()
	stored := model.NewAddress(model.Label("1abc"), 1)
	stored.CountIn = 3
	require.NoError(t, store.UpdateByID(context.Background(), "addresses", stored.ID(), stored))

	loader := NewLoader(cache, store)
	addr, err := loader.Load(context.Background(), model.Label("1abc"), 99)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), addr.CountIn)
}

func TestLoader_Load_StoreErrorWrapped(t *testing.T) {
	cache, err := New(10)
	require.NoError(t, err)
	store := newFakeStore()
	store.findErr = errors.New("connection refused")

	loader := NewLoader(cache, store)
	_, err = loader.Load(context.Background(), model.Label("1abc"), 1)
	require.Error(t, err)
}

func TestLoader_Save_UpdatesCacheAndStore(t *testing.T) {
	cache, err := New(10)
	require.NoError(t, err)
	store := newFakeStore()
	loader := NewLoader(cache, store)

	addr := model.NewAddress(model.Label("1abc"), 1)
	addr.CountIn = 7
	require.NoError(t, loader.Save(context.Background(), addr))

	cached, ok := cache.Get(model.Label("1abc"))
	require.True(t, ok)
	assert.Equal(t, uint64(7), cached.CountIn)
}
