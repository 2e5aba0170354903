package movement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

type fakeDecoder struct{}

func (fakeDecoder) Decode(addresses []string, scriptPubKeyHex string) (model.Label, model.AddressKind, error) {
	if len(addresses) > 0 {
		return model.Label(addresses[0]), model.KindAddress, nil
	}
	return model.Label("script:" + scriptPubKeyHex), model.KindUnknown, nil
}

func TestBuildRequired_CoinbaseTx(t *testing.T) {
	tx := chain.RawTransaction{
		TxID: "cb1",
		Vin:  []chain.RawInput{{Coinbase: "00"}},
		Vout: []chain.RawOutput{{N: 0, Value: 50.0, Addresses: []string{"miner1"}}},
	}
	subsidy, err := model.NewAmountFromSatoshis(5_000_000_000)
	require.NoError(t, err)

	stubs, err := BuildRequired(tx, nil, fakeDecoder{}, RewardContext{Role: RoleCoinbase, Subsidy: subsidy})
	require.NoError(t, err)
	require.Len(t, stubs, 2)

	assert.Equal(t, model.CoinbaseToTx, stubs[0].MovementType)
	assert.Equal(t, model.LabelCoinbase, stubs[0].From)
	assert.Equal(t, model.TxLabel("cb1"), stubs[0].To)

	assert.Equal(t, model.TxToAddress, stubs[1].MovementType)
	assert.Equal(t, model.TxLabel("cb1"), stubs[1].From)
	assert.Equal(t, model.Label("miner1"), stubs[1].To)
}

func TestBuildRequired_OrdinaryTxWithFee(t *testing.T) {
	tx := chain.RawTransaction{
		TxID: "tx1",
		Vin:  []chain.RawInput{{TxID: "prev", Vout: 0}},
		Vout: []chain.RawOutput{{N: 0, Value: 0.9, Addresses: []string{"recipient"}}},
	}
	resolved := []ResolvedInput{
		{Index: 0, Input: tx.Vin[0], Output: chain.RawOutput{Value: 1.0, Addresses: []string{"sender"}}},
	}

	stubs, err := BuildRequired(tx, resolved, fakeDecoder{}, RewardContext{})
	require.NoError(t, err)
	require.Len(t, stubs, 3)

	assert.Equal(t, model.AddressToTx, stubs[0].MovementType)
	assert.Equal(t, model.Label("sender"), stubs[0].From)

	assert.Equal(t, model.TxToAddress, stubs[1].MovementType)
	assert.Equal(t, model.Label("recipient"), stubs[1].To)

	assert.Equal(t, model.TxToFee, stubs[2].MovementType)
	assert.Equal(t, model.LabelFee, stubs[2].To)
}

func TestBuildRequired_EmptyTxProducesNoMovements(t *testing.T) {
	tx := chain.RawTransaction{TxID: "empty"}
	stubs, err := BuildRequired(tx, nil, fakeDecoder{}, RewardContext{Role: RoleCoinstake})
	require.NoError(t, err)
	assert.Empty(t, stubs)
}

func TestBuildRequired_CoinstakeSplitsRewardAndMasternode(t *testing.T) {
	tx := chain.RawTransaction{
		TxID: "cs1",
		Vin:  []chain.RawInput{{TxID: "staked", Vout: 0}},
		Vout: []chain.RawOutput{
			{N: 0, Value: 11.0, Addresses: []string{"staker"}},
			{N: 1, Value: 2.0, Addresses: []string{"masternode1"}},
		},
	}
	resolved := []ResolvedInput{
		{Index: 0, Input: tx.Vin[0], Output: chain.RawOutput{Value: 10.0, Addresses: []string{"staker"}}},
	}
	stakeAmt, err := model.NewAmountFromSatoshis(1_000_000_000)
	require.NoError(t, err)

	rc := RewardContext{
		Role:              RoleCoinstake,
		StakeInputAmount:  stakeAmt,
		MasternodeOutputs: map[uint32]bool{1: true},
	}

	stubs, err := BuildRequired(tx, resolved, fakeDecoder{}, rc)
	require.NoError(t, err)

	var sawReward, sawMn, sawStakerOut, sawMnOut bool
	for _, s := range stubs {
		switch s.MovementType {
		case model.PosRewardToTx:
			sawReward = true
			assert.False(t, s.Amount.IsNegative())
		case model.MasternodeRewardToTx:
			sawMn = true
		case model.TxToPosAddress:
			sawStakerOut = true
		case model.TxToMnAddress:
			sawMnOut = true
		}
	}
	assert.True(t, sawReward)
	assert.True(t, sawMn)
	assert.True(t, sawStakerOut)
	assert.True(t, sawMnOut)
}
