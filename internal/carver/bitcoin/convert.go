// Package bitcoin adapts github.com/btcsuite/btcd to the engine's
// chain.NodeClient contract and classifies scriptPubKeys into the
// ledger's address taxonomy.
package bitcoin

import (
	"fmt"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/pkg/safe"
)

// BtcToSatoshis converts a BTC-denominated amount into base units with
// overflow checks, grounded on btcutil.Amount's own arithmetic.
func BtcToSatoshis(value float64) (int64, error) {
	amt, err := btcutil.NewAmount(value)
	if err != nil {
		return 0, err
	}
	return int64(amt), nil
}

// ParseBits parses the hex-encoded difficulty bits field returned by the
// node into the 32-bit value the Block record stores.
func ParseBits(value string) (uint32, error) {
	parsed, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(parsed), nil
}

// convertBlock maps a verbose block RPC result into the engine's
// RawBlock, decoding every contained transaction along the way.
func convertBlock(src *btcjson.GetBlockVerboseTxResult) (chain.RawBlock, error) {
	size, err := safe.Uint32(src.Size)
	if err != nil {
		return chain.RawBlock{}, fmt.Errorf("block %d size overflow: %w", src.Height, err)
	}
	version, err := safe.Uint32(src.Version)
	if err != nil {
		return chain.RawBlock{}, fmt.Errorf("block %d version overflow: %w", src.Height, err)
	}
	height, err := safe.Uint64(src.Height)
	if err != nil {
		return chain.RawBlock{}, fmt.Errorf("block %d height overflow: %w", src.Height, err)
	}

	txs := make([]chain.RawTransaction, 0, len(src.Tx))
	txids := make([]string, 0, len(src.Tx))
	for i := range src.Tx {
		tx, err := convertTx(&src.Tx[i])
		if err != nil {
			return chain.RawBlock{}, fmt.Errorf("block %d tx %s: %w", src.Height, src.Tx[i].Txid, err)
		}
		txs = append(txs, tx)
		txids = append(txids, tx.TxID)
	}

	return chain.RawBlock{
		Height:        height,
		Hash:          src.Hash,
		PrevHash:      src.PreviousHash,
		MerkleRoot:    src.MerkleRoot,
		Bits:          src.Bits,
		Nonce:         src.Nonce,
		Difficulty:    src.Difficulty,
		Size:          size,
		Version:       version,
		Time:          time.Unix(src.Time, 0).UTC(),
		Confirmations: src.Confirmations,
		TxIDs:         txids,
		Transactions:  txs,
	}, nil
}

// convertTx maps a verbose transaction RPC result into RawTransaction.
func convertTx(src *btcjson.TxRawResult) (chain.RawTransaction, error) {
	vins := make([]chain.RawInput, 0, len(src.Vin))
	for _, in := range src.Vin {
		vins = append(vins, chain.RawInput{
			Coinbase: in.Coinbase,
			TxID:     in.Txid,
			Vout:     in.Vout,
		})
	}

	vouts := make([]chain.RawOutput, 0, len(src.Vout))
	for _, out := range src.Vout {
		addrs := outputAddresses(out.ScriptPubKey)
		vouts = append(vouts, chain.RawOutput{
			N:            out.N,
			Value:        out.Value,
			ScriptPubKey: out.ScriptPubKey.Hex,
			ScriptType:   out.ScriptPubKey.Type,
			Addresses:    addrs,
		})
	}

	return chain.RawTransaction{
		TxID: src.Txid,
		Vin:  vins,
		Vout: vouts,
	}, nil
}

// outputAddresses normalizes the two shapes rpcclient's Vout result has
// carried across btcd versions: a plural Addresses slice, or a single
// Address field.
func outputAddresses(spk btcjson.ScriptPubKeyResult) []string {
	if len(spk.Addresses) > 0 {
		return append([]string(nil), spk.Addresses...)
	}
	if spk.Address != "" {
		return []string{spk.Address}
	}
	return nil
}
