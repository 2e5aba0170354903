// Package confirm implements the Confirmer: watching stored blocks
// mature past a confirmation threshold, and unwinding past a reorg
// the moment a stored block's merkle root stops matching the node's.
package confirm

import (
	"context"
	"fmt"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/carverrors"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/unwind"
)

const blockCollection = "blocks"

// Unwinder is the subset of unwind.Unwinder the Confirmer drives on a
// detected reorg.
type Unwinder interface {
	Unwind(ctx context.Context, height uint64) error
}

var _ Unwinder = (*unwind.Unwinder)(nil)

// Confirmer walks stored blocks from the first unconfirmed height,
// marking each confirmed once the node reports enough confirmations,
// or rolling back and retrying once it detects the node's view of that
// height has changed.
type Confirmer struct {
	node                  chain.NodeClient
	store                 chain.Store
	unwinder              Unwinder
	requiredConfirmations int64
}

// New constructs a Confirmer. requiredConfirmations is the minimum node
// confirmation count (K) before a block is considered final.
func New(node chain.NodeClient, store chain.Store, unwinder Unwinder, requiredConfirmations int64) *Confirmer {
	return &Confirmer{node: node, store: store, unwinder: unwinder, requiredConfirmations: requiredConfirmations}
}

// Run confirms or rolls back blocks until it reaches a block not yet
// final, or runs out of stored blocks to confirm.
func (c *Confirmer) Run(ctx context.Context) error {
	for {
		block, ok, err := firstUnconfirmed(ctx, c.store)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		hash, err := c.node.GetBlockHash(ctx, block.Height)
		if err != nil {
			return &carverrors.RpcError{Op: fmt.Sprintf("getblockhash(%d)", block.Height), Err: err}
		}
		raw, err := c.node.GetBlock(ctx, hash)
		if err != nil {
			return &carverrors.RpcError{Op: fmt.Sprintf("getblock(%s)", hash), Err: err}
		}

		if raw.Confirmations < c.requiredConfirmations {
			return nil
		}

		if raw.MerkleRoot != block.MerkleRoot {
			lastHeight, ok, err := lastStoredHeight(ctx, c.store)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := c.unwinder.Unwind(ctx, lastHeight); err != nil {
				return err
			}
			continue
		}

		block.IsConfirmed = true
		if err := c.store.UpdateByID(ctx, blockCollection, block.ID(), &block); err != nil {
			return &carverrors.StoreError{Op: "mark block confirmed", Err: err}
		}
	}
}

func firstUnconfirmed(ctx context.Context, store chain.Store) (model.Block, bool, error) {
	var blocks []model.Block
	err := store.Find(ctx, chain.Query{
		Collection: blockCollection,
		Filter:     map[string]any{"is_confirmed": false},
		SortField:  "height",
		Descending: false,
		Limit:      1,
	}, &blocks)
	if err != nil {
		return model.Block{}, false, &carverrors.StoreError{Op: "find first unconfirmed block", Err: err}
	}
	if len(blocks) == 0 {
		return model.Block{}, false, nil
	}
	return blocks[0], true, nil
}

func lastStoredHeight(ctx context.Context, store chain.Store) (uint64, bool, error) {
	var blocks []model.Block
	err := store.Find(ctx, chain.Query{
		Collection: blockCollection,
		SortField:  "height",
		Descending: true,
		Limit:      1,
	}, &blocks)
	if err != nil {
		return 0, false, &carverrors.StoreError{Op: "find last stored block", Err: err}
	}
	if len(blocks) == 0 {
		return 0, false, nil
	}
	return blocks[0].Height, true, nil
}
