package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/movement"
)

func noInputHeight(string) (uint64, bool) { return 0, false }

func TestIsCoinbase(t *testing.T) {
	coinbase := chain.RawTransaction{Vin: []chain.RawInput{{Coinbase: "04ffff"}}}
	assert.True(t, IsCoinbase(coinbase))

	ordinary := chain.RawTransaction{Vin: []chain.RawInput{{TxID: "abc", Vout: 0}}}
	assert.False(t, IsCoinbase(ordinary))
}

func TestIsCoinstake(t *testing.T) {
	coinstake := chain.RawTransaction{
		Vin:  []chain.RawInput{{TxID: "abc", Vout: 0}},
		Vout: []chain.RawOutput{{Value: 0, ScriptPubKey: ""}, {Value: 5, ScriptPubKey: "76a914..."}},
	}
	assert.True(t, IsCoinstake(coinstake))

	assert.False(t, IsCoinstake(chain.RawTransaction{
		Vin:  []chain.RawInput{{Coinbase: "04ffff"}},
		Vout: []chain.RawOutput{{Value: 0}, {Value: 5}},
	}))

	assert.False(t, IsCoinstake(chain.RawTransaction{
		Vin:  []chain.RawInput{{TxID: "abc", Vout: 0}},
		Vout: []chain.RawOutput{{Value: 1, ScriptPubKey: "76a914..."}},
	}))
}

func TestIsRewardTransaction(t *testing.T) {
	assert.True(t, IsRewardTransaction(chain.RawTransaction{Vin: []chain.RawInput{{Coinbase: "04"}}}))
	assert.False(t, IsRewardTransaction(chain.RawTransaction{Vin: []chain.RawInput{{TxID: "x", Vout: 0}}, Vout: []chain.RawOutput{{Value: 1}}}))
}

func TestClassify_Coinbase(t *testing.T) {
	tx := chain.RawTransaction{TxID: "tx1", Vin: []chain.RawInput{{Coinbase: "04"}}}
	subsidy := FixedSubsidy(mustAmount(t, 50))
	fees := mustAmount(t, 0.001)

	rc, err := Classify(tx, nil, 100, fees, subsidy, noInputHeight)
	require.NoError(t, err)
	assert.Equal(t, movement.RoleCoinbase, rc.Role)
	assert.Equal(t, 0, rc.Subsidy.Cmp(mustAmount(t, 50)))
	assert.Equal(t, 0, rc.CollectedFees.Cmp(fees))
}

func TestClassify_Coinstake(t *testing.T) {
	tx := chain.RawTransaction{
		TxID: "tx2",
		Vin:  []chain.RawInput{{TxID: "prev", Vout: 0}},
		Vout: []chain.RawOutput{{Value: 0}, {Value: 10}},
	}
	resolved := []movement.ResolvedInput{
		{Index: 0, Input: tx.Vin[0], Output: chain.RawOutput{Value: 9.5}},
	}
	inputHeight := func(txid string) (uint64, bool) {
		if txid == "prev" {
			return 90, true
		}
		return 0, false
	}

	rc, err := Classify(tx, resolved, 100, model.Zero, FixedSubsidy(model.Zero), inputHeight)
	require.NoError(t, err)
	assert.Equal(t, movement.RoleCoinstake, rc.Role)
	assert.Equal(t, 0, rc.StakeInputAmount.Cmp(mustAmount(t, 9.5)))
	assert.Equal(t, int64(10), rc.StakeInputBlockHeightDiff)
	assert.Nil(t, rc.MasternodeOutputs)
}

func TestClassify_Ordinary(t *testing.T) {
	tx := chain.RawTransaction{
		TxID: "tx3",
		Vin:  []chain.RawInput{{TxID: "prev", Vout: 1}},
		Vout: []chain.RawOutput{{Value: 1, ScriptPubKey: "abc"}},
	}
	rc, err := Classify(tx, nil, 100, model.Zero, FixedSubsidy(model.Zero), noInputHeight)
	require.NoError(t, err)
	assert.Equal(t, movement.RoleOrdinary, rc.Role)
}

func TestHalvingSubsidy(t *testing.T) {
	subsidy := HalvingSubsidy(mustAmount(t, 50), 100)
	assert.Equal(t, 0, subsidy(0).Cmp(mustAmount(t, 50)))
	assert.Equal(t, 0, subsidy(99).Cmp(mustAmount(t, 50)))
	assert.Equal(t, 0, subsidy(100).Cmp(mustAmount(t, 25)))
	assert.Equal(t, 0, subsidy(200).Cmp(mustAmount(t, 12.5)))
}

func mustAmount(t *testing.T, satoshis float64) model.Amount {
	t.Helper()
	amt, err := model.NewAmountFromSatoshis(int64(satoshis * 1e8))
	require.NoError(t, err)
	return amt
}
