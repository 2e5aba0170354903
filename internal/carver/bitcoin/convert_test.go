package bitcoin

import (
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBtcToSatoshis(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		want    int64
		wantErr bool
	}{
		{name: "one btc", value: 1.0, want: 100_000_000},
		{name: "fractional", value: 0.00000001, want: 1},
		{name: "invalid infinite value returns error", value: math.Inf(1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BtcToSatoshis(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBits(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    uint32
		wantErr bool
	}{
		{name: "valid hex", value: "1d00ffff", want: 0x1d00ffff},
		{name: "invalid hex returns error", value: "zzzz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBits(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputAddresses(t *testing.T) {
	tests := []struct {
		name string
		spk  btcjson.ScriptPubKeyResult
		want []string
	}{
		{
			name: "prefers plural addresses",
			spk:  btcjson.ScriptPubKeyResult{Addresses: []string{"addr1", "addr2"}},
			want: []string{"addr1", "addr2"},
		},
		{
			name: "falls back to singular address",
			spk:  btcjson.ScriptPubKeyResult{Address: "single"},
			want: []string{"single"},
		},
		{
			name: "neither present returns nil",
			spk:  btcjson.ScriptPubKeyResult{},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outputAddresses(tt.spk)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertBlock(t *testing.T) {
	src := &btcjson.GetBlockVerboseTxResult{
		Hash:          "hash",
		PreviousHash:  "prev",
		Height:        5,
		Time:          1_700_000_010,
		Version:       2,
		Size:          1234,
		Bits:          "1d00ffff",
		Nonce:         9,
		Difficulty:    1.0,
		MerkleRoot:    "root",
		Confirmations: 3,
		Tx: []btcjson.TxRawResult{
			{
				Txid: "tx1",
				Vin:  []btcjson.Vin{{Coinbase: "abcd"}},
				Vout: []btcjson.Vout{{N: 0, Value: 1.5, ScriptPubKey: btcjson.ScriptPubKeyResult{Hex: "", Type: "pubkeyhash"}}},
			},
		},
	}

	got, err := convertBlock(src)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Height)
	assert.Equal(t, "hash", got.Hash)
	assert.Equal(t, "prev", got.PrevHash)
	assert.Equal(t, "root", got.MerkleRoot)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "tx1", got.Transactions[0].TxID)
	require.Len(t, got.Transactions[0].Vin, 1)
	assert.True(t, got.Transactions[0].Vin[0].IsCoinbase())
}
