// Package addresscache implements the two-tier AddressCache: an
// unbounded common tier for special labels and transaction pseudo
// addresses, and a bounded normal tier for ordinary on-chain addresses.
//
// Correctness depends only on cache coherence, not hit rate: writes go
// to the store first, then the cache entry for the same label is
// overwritten, and a rollback clears both tiers outright.
package addresscache

import (
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

// Cache is the two-tier address cache shared between the MovementBuilder
// and the SequenceApplier.
type Cache struct {
	mu     sync.RWMutex
	common map[model.Label]*model.CarverAddress

	normal   *ristretto.Cache[string, *model.CarverAddress]
	capacity int64
	normalN  atomic.Int64
}

// New constructs a Cache. capacity bounds the normal tier; once the
// number of keys written to it would exceed capacity, the entire normal
// tier is dropped rather than evicting individual keys — a deliberately
// coarse policy, since the store remains the source of truth on a miss.
// ristretto's own NumCounters/MaxCost are sized generously above
// capacity so its TinyLFU eviction never fires first; normalN is what
// actually triggers the flush.
func New(capacity int64) (*Cache, error) {
	if capacity <= 0 {
		capacity = 50_000
	}
	normal, err := ristretto.NewCache(&ristretto.Config[string, *model.CarverAddress]{
		// Sized well above capacity: Cache.Put's own normalN count is
		// what enforces the tier's size, by flushing it outright, so
		// ristretto's per-key TinyLFU eviction never fires. Each key
		// costs exactly 1, with ristretto's internal overhead not counted.
		NumCounters:        capacity * 20,
		MaxCost:            capacity * 2,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{
		common:   make(map[model.Label]*model.CarverAddress),
		normal:   normal,
		capacity: capacity,
	}, nil
}

// Get returns the cached record for label, if present.
func (c *Cache) Get(label model.Label) (*model.CarverAddress, bool) {
	if label.IsSpecial() || model.KindForLabel(label) == model.KindTx {
		c.mu.RLock()
		defer c.mu.RUnlock()
		addr, ok := c.common[label]
		return addr, ok
	}
	return c.normal.Get(string(label))
}

// Put writes addr into the tier appropriate for its label; the entry is
// visible to Get as soon as Put returns. Callers put records they have
// persisted, except Loader.Load, which also caches a newly created
// record that is saved later, at the end of its block. A write to the
// normal tier that would push it past capacity flushes the whole tier
// first, all at once, rather than evicting individual keys.
func (c *Cache) Put(addr *model.CarverAddress) {
	if addr.Label.IsSpecial() || addr.Kind == model.KindTx {
		c.mu.Lock()
		c.common[addr.Label] = addr
		c.mu.Unlock()
		return
	}
	if c.normalN.Add(1) > c.capacity {
		c.normal.Clear()
		c.normalN.Store(1)
	}
	c.normal.Set(string(addr.Label), addr, 1)
	c.normal.Wait()
}

// Invalidate removes a single label from whichever tier holds it. The
// Unwinder uses this for addresses it restores in place rather than
// deletes, so a subsequent Get observes the store's rolled-back value.
func (c *Cache) Invalidate(label model.Label) {
	if label.IsSpecial() || model.KindForLabel(label) == model.KindTx {
		c.mu.Lock()
		delete(c.common, label)
		c.mu.Unlock()
		return
	}
	c.normal.Del(string(label))
}

// Clear drops both tiers outright. Called on rollback: the common tier
// may now reference entities the Unwinder deleted, so it cannot be
// trusted until the store is re-read.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.common = make(map[model.Label]*model.CarverAddress)
	c.mu.Unlock()
	c.normal.Clear()
	c.normalN.Store(0)
}
