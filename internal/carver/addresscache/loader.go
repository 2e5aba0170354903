package addresscache

import (
	"context"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/carverrors"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

const addressCollection = "addresses"

// Loader resolves a Label to its CarverAddress record, checking the
// Cache first, then the Store, and finally synthesizing a fresh record
// for a label never seen before. It is shared by the MovementBuilder's
// parse sweep and the SequenceApplier, since both need the same
// cache-then-store-then-create resolution order.
type Loader struct {
	cache *Cache
	store chain.Store
}

// NewLoader constructs a Loader over cache and store.
func NewLoader(cache *Cache, store chain.Store) *Loader {
	return &Loader{cache: cache, store: store}
}

// Load returns the CarverAddress for label, creating it at blockHeight
// if it has never been seen before.
func (l *Loader) Load(ctx context.Context, label model.Label, blockHeight uint64) (*model.CarverAddress, error) {
	if addr, ok := l.cache.Get(label); ok {
		return addr, nil
	}

	var docs []model.CarverAddress
	err := l.store.Find(ctx, chain.Query{
		Collection: addressCollection,
		Filter:     map[string]any{"_id": string(label)},
		Limit:      1,
	}, &docs)
	if err != nil {
		return nil, &carverrors.StoreError{Op: "find address " + string(label), Err: err}
	}
	if len(docs) > 0 {
		addr := &docs[0]
		l.cache.Put(addr)
		return addr, nil
	}

	addr := model.NewAddress(label, blockHeight)
	l.cache.Put(addr)
	return addr, nil
}

// Save persists addr and refreshes the cache entry for it. Callers must
// write to the store before any later Get of the same label can be
// trusted to return the updated record.
func (l *Loader) Save(ctx context.Context, addr *model.CarverAddress) error {
	if err := l.store.UpdateByID(ctx, addressCollection, addr.ID(), addr); err != nil {
		return &carverrors.StoreError{Op: "save address " + addr.ID(), Err: err}
	}
	l.cache.Put(addr)
	return nil
}
