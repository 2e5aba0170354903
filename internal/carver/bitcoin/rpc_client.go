package bitcoin

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
)

// RPCMetrics records per-call outcome and latency for the node client.
// Concrete implementation is internal/metrics.RPCClient.
type RPCMetrics interface {
	Observe(operation string, err error, started time.Time)
}

// rawClient is the subset of *rpcclient.Client the engine calls. Defining
// it as an interface, rather than depending on the concrete btcd type
// directly, is what lets RPCClient's own tests substitute a mock without
// a live node.
type rawClient interface {
	GetBlockCount() (int64, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetBlockVerboseTx(blockHash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error)
	GetRawTransactionVerbose(txHash *chainhash.Hash) (*btcjson.TxRawResult, error)
}

// RPCClient implements chain.NodeClient over github.com/btcsuite/btcd's
// JSON-RPC client, instrumented the way the teacher wraps its own RPC
// calls: every method times itself and reports through RPCMetrics.
type RPCClient struct {
	client  rawClient
	metrics RPCMetrics
}

// NewRPCClient constructs an instrumented node client wrapping a live
// *rpcclient.Client (which satisfies rawClient).
func NewRPCClient(client rawClient, metrics RPCMetrics) *RPCClient {
	return &RPCClient{client: client, metrics: metrics}
}

func (r *RPCClient) observe(operation string, started time.Time, err error) {
	r.metrics.Observe(operation, err, started)
}

// GetInfo reports the node's current chain tip height.
func (r *RPCClient) GetInfo(ctx context.Context) (info chain.NodeInfo, err error) {
	started := time.Now()
	defer func() { r.observe("get_block_count", started, err) }()

	count, err := r.client.GetBlockCount()
	if err != nil {
		return chain.NodeInfo{}, fmt.Errorf("getblockcount: %w", err)
	}
	if count < 0 {
		return chain.NodeInfo{}, fmt.Errorf("getblockcount returned negative height %d", count)
	}
	return chain.NodeInfo{Blocks: uint64(count)}, nil
}

// GetBlockHash returns the hash of the block at height.
func (r *RPCClient) GetBlockHash(ctx context.Context, height uint64) (hash string, err error) {
	started := time.Now()
	defer func() { r.observe("get_block_hash", started, err) }()

	h, err := r.client.GetBlockHash(int64(height))
	if err != nil {
		return "", fmt.Errorf("getblockhash(%d): %w", height, err)
	}
	return h.String(), nil
}

// GetBlock returns the verbose block (with full transactions) for hash.
func (r *RPCClient) GetBlock(ctx context.Context, hash string) (blk chain.RawBlock, err error) {
	started := time.Now()
	defer func() { r.observe("get_block_verbose_tx", started, err) }()

	h, perr := chainhash.NewHashFromStr(hash)
	if perr != nil {
		return chain.RawBlock{}, fmt.Errorf("parse block hash %q: %w", hash, perr)
	}
	res, perr := r.client.GetBlockVerboseTx(h)
	if perr != nil {
		err = perr
		return chain.RawBlock{}, fmt.Errorf("getblock(%s): %w", hash, err)
	}
	blk, err = convertBlock(res)
	if err != nil {
		return chain.RawBlock{}, err
	}
	return blk, nil
}

// GetRawTransaction returns the decoded inputs/outputs of a transaction,
// used by the UtxoResolver when a spent output was not seen earlier in
// the current sync batch. This call has no counterpart on the teacher's
// RPCClient, which only ever walked freshly-fetched blocks forward.
func (r *RPCClient) GetRawTransaction(ctx context.Context, txid string) (tx chain.RawTransaction, err error) {
	started := time.Now()
	defer func() { r.observe("get_raw_transaction_verbose", started, err) }()

	h, perr := chainhash.NewHashFromStr(txid)
	if perr != nil {
		return chain.RawTransaction{}, fmt.Errorf("parse txid %q: %w", txid, perr)
	}
	res, perr := r.client.GetRawTransactionVerbose(h)
	if perr != nil {
		err = perr
		return chain.RawTransaction{}, fmt.Errorf("getrawtransaction(%s): %w", txid, err)
	}
	tx, err = convertTx(res)
	if err != nil {
		return chain.RawTransaction{}, err
	}
	return tx, nil
}
