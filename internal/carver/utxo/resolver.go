// Package utxo implements the UtxoResolver: given a transaction's inputs,
// it returns the outputs they spend, preferring outputs of transactions
// already seen in the current block over a round trip to the node.
package utxo

import (
	"context"
	"fmt"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
)

// Resolver resolves transaction inputs to the outputs they spend. It is
// pure relative to the node's view: no caching survives across blocks,
// only within the batch currently being synced, grounded on how the
// teacher's chain.TransactionOutputResolver seeds per-transaction
// outputs before falling back to a repository/RPC lookup.
type Resolver struct {
	node  chain.NodeClient
	local map[string][]chain.RawOutput
}

// New constructs a Resolver bound to a node client.
func New(node chain.NodeClient) *Resolver {
	return &Resolver{
		node:  node,
		local: make(map[string][]chain.RawOutput),
	}
}

// Reset discards every output seeded or fetched so far, returning the
// Resolver to an empty batch. The caller must call this before each
// block: local accumulates unboundedly otherwise, since nothing else
// ever evicts from it.
func (r *Resolver) Reset() {
	r.local = make(map[string][]chain.RawOutput)
}

// Seed registers the outputs of a transaction produced earlier in the
// same sync batch, so later inputs spending them resolve without I/O.
func (r *Resolver) Seed(txid string, outputs []chain.RawOutput) {
	r.local[txid] = outputs
}

// Resolve returns the output referenced by a (txid, vout) input pair.
// Resolution order: (1) this batch's in-memory outputs, (2) the node's
// getrawtransaction RPC, (3) failure — the caller fails the whole block
// on an unresolvable input rather than guessing.
func (r *Resolver) Resolve(ctx context.Context, input chain.RawInput) (chain.RawOutput, error) {
	if input.IsCoinbase() {
		return chain.RawOutput{}, fmt.Errorf("resolve: input is a coinbase marker, has no prior output")
	}

	if outputs, ok := r.local[input.TxID]; ok {
		return pick(outputs, input)
	}

	tx, err := r.node.GetRawTransaction(ctx, input.TxID)
	if err != nil {
		return chain.RawOutput{}, fmt.Errorf("resolve input %s:%d: %w", input.TxID, input.Vout, err)
	}
	r.local[input.TxID] = tx.Vout
	return pick(tx.Vout, input)
}

func pick(outputs []chain.RawOutput, input chain.RawInput) (chain.RawOutput, error) {
	for _, out := range outputs {
		if out.N == input.Vout {
			return out, nil
		}
	}
	return chain.RawOutput{}, fmt.Errorf("input references missing vout %d in tx %s", input.Vout, input.TxID)
}
