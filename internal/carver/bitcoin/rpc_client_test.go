package bitcoin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRawClient struct {
	blockCount   int64
	blockCountErr error
	hash         *chainhash.Hash
	hashErr      error
	block        *btcjson.GetBlockVerboseTxResult
	blockErr     error
	tx           *btcjson.TxRawResult
	txErr        error
}

func (f *fakeRawClient) GetBlockCount() (int64, error) { return f.blockCount, f.blockCountErr }
func (f *fakeRawClient) GetBlockHash(int64) (*chainhash.Hash, error) { return f.hash, f.hashErr }
func (f *fakeRawClient) GetBlockVerboseTx(*chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error) {
	return f.block, f.blockErr
}
func (f *fakeRawClient) GetRawTransactionVerbose(*chainhash.Hash) (*btcjson.TxRawResult, error) {
	return f.tx, f.txErr
}

type fakeMetrics struct {
	calls []string
}

func (m *fakeMetrics) Observe(operation string, err error, started time.Time) {
	m.calls = append(m.calls, operation)
}

func TestRPCClient_GetInfo(t *testing.T) {
	metrics := &fakeMetrics{}
	c := NewRPCClient(&fakeRawClient{blockCount: 101}, metrics)
	info, err := c.GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(101), info.Blocks)
	assert.Contains(t, metrics.calls, "get_block_count")
}

func TestRPCClient_GetInfo_Error(t *testing.T) {
	metrics := &fakeMetrics{}
	c := NewRPCClient(&fakeRawClient{blockCountErr: errors.New("boom")}, metrics)
	_, err := c.GetInfo(context.Background())
	require.Error(t, err)
}

func TestRPCClient_GetBlockHash(t *testing.T) {
	h, err := chainhash.NewHashFromStr("0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)

	metrics := &fakeMetrics{}
	c := NewRPCClient(&fakeRawClient{hash: h}, metrics)
	got, err := c.GetBlockHash(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, h.String(), got)
}

func TestRPCClient_GetBlock(t *testing.T) {
	h, err := chainhash.NewHashFromStr("0000000000000000000000000000000000000000000000000000000000000002")
	require.NoError(t, err)

	metrics := &fakeMetrics{}
	c := NewRPCClient(&fakeRawClient{
		block: &btcjson.GetBlockVerboseTxResult{
			Hash:   h.String(),
			Height: 10,
			Tx:     []btcjson.TxRawResult{{Txid: "abc"}},
		},
	}, metrics)

	got, err := c.GetBlock(context.Background(), h.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Height)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "abc", got.Transactions[0].TxID)
}

func TestRPCClient_GetRawTransaction(t *testing.T) {
	metrics := &fakeMetrics{}
	c := NewRPCClient(&fakeRawClient{
		tx: &btcjson.TxRawResult{
			Txid: "abc",
			Vout: []btcjson.Vout{{N: 0, Value: 1.0}},
		},
	}, metrics)

	got, err := c.GetRawTransaction(context.Background(), "0000000000000000000000000000000000000000000000000000000000000003")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.TxID)
	require.Len(t, got.Vout, 1)
}
