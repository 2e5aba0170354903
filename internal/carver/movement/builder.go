package movement

import (
	"fmt"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/bitcoin"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

// ResolvedInput pairs one transaction input with the output it spends,
// as returned by the UtxoResolver, and the input's position in Vin (so
// RewardContext.ZerocoinInputs can be consulted).
type ResolvedInput struct {
	Index  int
	Input  chain.RawInput
	Output chain.RawOutput
}

// BuildRequired runs the required-movements sweep: a synchronous,
// I/O-free pass over a transaction's inputs and outputs that decides
// which movements exist and what they move, without yet resolving the
// CarverAddress records the parse sweep will attach.
//
// Ordering matches spec: all inbound stubs (credits to the transaction
// pseudo-address) first, in input order, then all outbound stubs, in
// output order — required so a later PosRewardToTx/TxToPosAddress pair
// in the same transaction lines up correctly.
func BuildRequired(tx chain.RawTransaction, resolved []ResolvedInput, decoder bitcoin.Decoder, rc RewardContext) ([]Stub, error) {
	txLabel := model.TxLabel(tx.TxID)

	var inbound, outbound []Stub
	var totalIn model.Amount

	switch rc.Role {
	case RoleCoinbase:
		if !rc.Subsidy.IsZero() {
			inbound = append(inbound, Stub{MovementType: model.CoinbaseToTx, From: model.LabelCoinbase, To: txLabel, Amount: rc.Subsidy})
			totalIn = totalIn.Add(rc.Subsidy)
		}
		if !rc.CollectedFees.IsZero() {
			inbound = append(inbound, Stub{MovementType: model.FeeToTx, From: model.LabelFee, To: txLabel, Amount: rc.CollectedFees})
			totalIn = totalIn.Add(rc.CollectedFees)
		}
	case RoleCoinstake:
		stakerTotal, mnTotal, err := splitCoinstakeOutputs(tx, rc)
		if err != nil {
			return nil, err
		}
		reward := stakerTotal.Sub(rc.StakeInputAmount)
		if reward.IsNegative() {
			reward = model.Zero
		}
		if !reward.IsZero() {
			stub := Stub{
				MovementType:            model.PosRewardToTx,
				From:                    model.LabelProofOfStake,
				To:                      txLabel,
				Amount:                  reward,
				PosInputAmount:          rc.StakeInputAmount,
				PosInputBlockHeightDiff: rc.StakeInputBlockHeightDiff,
			}
			inbound = append(inbound, stub)
			totalIn = totalIn.Add(reward)
		}
		if !mnTotal.IsZero() {
			inbound = append(inbound, Stub{MovementType: model.MasternodeRewardToTx, From: model.LabelMasternode, To: txLabel, Amount: mnTotal})
			totalIn = totalIn.Add(mnTotal)
		}
		if !rc.CollectedFees.IsZero() {
			inbound = append(inbound, Stub{MovementType: model.FeeToTx, From: model.LabelFee, To: txLabel, Amount: rc.CollectedFees})
			totalIn = totalIn.Add(rc.CollectedFees)
		}
	}

	for _, in := range resolved {
		if amt, ok := rc.ZerocoinInputs[in.Index]; ok {
			inbound = append(inbound, Stub{MovementType: model.ZerocoinToTx, From: model.LabelZerocoin, To: txLabel, Amount: amt})
			totalIn = totalIn.Add(amt)
			continue
		}
		if in.Input.IsCoinbase() {
			continue
		}
		label, _, err := decoder.Decode(in.Output.Addresses, in.Output.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("decode input %d of tx %s: %w", in.Index, tx.TxID, err)
		}
		amt, err := amountFromBTC(in.Output.Value)
		if err != nil {
			return nil, fmt.Errorf("input %d of tx %s: %w", in.Index, tx.TxID, err)
		}
		inbound = append(inbound, Stub{MovementType: model.AddressToTx, From: label, To: txLabel, Amount: amt})
		totalIn = totalIn.Add(amt)
	}

	var totalOut model.Amount
	for _, out := range tx.Vout {
		amt, err := amountFromBTC(out.Value)
		if err != nil {
			return nil, fmt.Errorf("output %d of tx %s: %w", out.N, tx.TxID, err)
		}
		if amt.IsZero() {
			continue
		}
		if out.ScriptType == "nulldata" {
			continue
		}

		label, _, err := decoder.Decode(out.Addresses, out.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("decode output %d of tx %s: %w", out.N, tx.TxID, err)
		}

		var movementType model.MovementType
		switch {
		case out.ScriptType == "zerocoinmint":
			movementType = model.TxToZerocoin
		case rc.MasternodeOutputs[out.N]:
			movementType = model.TxToMnAddress
		case rc.Role == RoleCoinstake:
			movementType = model.TxToPosAddress
		default:
			movementType = model.TxToAddress
		}

		outbound = append(outbound, Stub{MovementType: movementType, From: txLabel, To: label, Amount: amt})
		totalOut = totalOut.Add(amt)
	}

	if totalOut.Cmp(totalIn) > 0 {
		return nil, fmt.Errorf("tx %s outputs (%s) exceed inputs (%s)", tx.TxID, totalOut, totalIn)
	}
	if fee := totalIn.Sub(totalOut); !fee.IsZero() {
		outbound = append(outbound, Stub{MovementType: model.TxToFee, From: txLabel, To: model.LabelFee, Amount: fee})
	}

	if len(inbound) == 0 && len(outbound) == 0 {
		return nil, nil
	}

	return append(inbound, outbound...), nil
}

func splitCoinstakeOutputs(tx chain.RawTransaction, rc RewardContext) (stakerTotal, mnTotal model.Amount, err error) {
	for _, out := range tx.Vout {
		amt, aerr := amountFromBTC(out.Value)
		if aerr != nil {
			return model.Zero, model.Zero, fmt.Errorf("coinstake output %d of tx %s: %w", out.N, tx.TxID, aerr)
		}
		if rc.MasternodeOutputs[out.N] {
			mnTotal = mnTotal.Add(amt)
			continue
		}
		stakerTotal = stakerTotal.Add(amt)
	}
	return stakerTotal, mnTotal, nil
}

func amountFromBTC(value float64) (model.Amount, error) {
	sat, err := bitcoin.BtcToSatoshis(value)
	if err != nil {
		return model.Amount{}, err
	}
	return model.NewAmountFromSatoshis(sat)
}
