package chain

import (
	"context"
	"time"
)

// NodeClient is the subset of full-node RPC the engine needs: block tip
// height, block lookup by height, and raw transaction lookup for the
// UtxoResolver's fallback path. Concrete implementation wraps
// github.com/btcsuite/btcd/rpcclient (see internal/carver/bitcoin).
//
//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE
type NodeClient interface {
	GetInfo(ctx context.Context) (NodeInfo, error)
	GetBlockHash(ctx context.Context, height uint64) (string, error)
	GetBlock(ctx context.Context, hash string) (RawBlock, error)
	GetRawTransaction(ctx context.Context, txid string) (RawTransaction, error)
}

// NodeInfo is the result of getinfo, trimmed to what the engine needs.
type NodeInfo struct {
	Blocks uint64
}

// RawBlock is the engine-facing view of getblock's verbose result.
type RawBlock struct {
	Height        uint64
	Hash          string
	PrevHash      string
	MerkleRoot    string
	Bits          string
	Nonce         uint32
	Difficulty    float64
	Size          uint32
	Version       uint32
	Time          time.Time
	Confirmations int64
	TxIDs         []string
	Transactions  []RawTransaction
}

// RawTransaction is the engine-facing view of getrawtransaction's
// verbose result.
type RawTransaction struct {
	TxID string
	Vin  []RawInput
	Vout []RawOutput
}

// RawInput is one vin entry: either a coinbase marker or a reference to
// a prior (txid, vout) pair the UtxoResolver must resolve.
type RawInput struct {
	Coinbase string
	TxID     string
	Vout     uint32
}

// IsCoinbase reports whether this input is the implicit coinbase input
// rather than a reference to a prior output.
func (i RawInput) IsCoinbase() bool {
	return i.Coinbase != "" || (i.TxID == "" && i.Vout == 0)
}

// RawOutput is one vout entry.
type RawOutput struct {
	N            uint32
	Value        float64
	ScriptPubKey string
	ScriptType   string
	Addresses    []string
}
