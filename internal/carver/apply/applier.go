// Package apply implements the SequenceApplier: the single place that
// advances the monotonic ledger sequence and mutates address balances.
package apply

import (
	"context"
	"time"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/carverrors"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/movement"
)

// Applier owns no state itself — the sequence counter is threaded in
// explicitly by the caller (the SyncCoordinator) per movement batch,
// never held as a package-level singleton, so a single process can run
// more than one chain's sync loop without cross-talk.
type Applier struct{}

// NewApplier constructs an Applier.
func NewApplier() *Applier {
	return &Applier{}
}

// Apply assigns sequences to parsed movements in order and mutates their
// endpoint addresses, returning the finished CarverMovement records and
// the set of addresses touched (for the caller to persist). seq is
// advanced in place; it must hold the sequence of the last movement
// applied anywhere in the engine.
func (a *Applier) Apply(
	ctx context.Context,
	blockHeight uint64,
	date time.Time,
	parsed []movement.ParsedMovement,
	seq *uint64,
) ([]model.CarverMovement, map[string]*model.CarverAddress, error) {
	movements := make([]model.CarverMovement, 0, len(parsed))
	touched := make(map[string]*model.CarverAddress)

	for _, pm := range parsed {
		*seq++
		sequence := *seq

		from, to := pm.From, pm.To

		if from.Sequence >= sequence {
			return nil, nil, &carverrors.ReconciliationError{Label: string(from.Label), ExpectedBelow: sequence, Got: from.Sequence}
		}
		if to.Label != from.Label && to.Sequence >= sequence {
			return nil, nil, &carverrors.ReconciliationError{Label: string(to.Label), ExpectedBelow: sequence, Got: to.Sequence}
		}

		fromBalancePre := from.Balance
		toBalancePre := to.Balance
		lastFromMovement := from.LastMovement
		lastToMovement := to.LastMovement

		from.Balance = from.Balance.Sub(pm.Amount)
		from.ValueOut = from.ValueOut.Add(pm.Amount)
		from.CountOut++

		to.Balance = to.Balance.Add(pm.Amount)
		to.ValueIn = to.ValueIn.Add(pm.Amount)
		to.CountIn++

		id := model.MovementID(sequence)

		posRewardAmount := model.Zero
		if pm.MovementType == model.PosRewardToTx {
			posRewardAmount = pm.Amount
		}

		switch pm.MovementType {
		case model.PowAddressReward:
			to.PowCountIn++
			to.PowValueIn = to.PowValueIn.Add(pm.Amount)
		case model.TxToPosAddress:
			to.PosCountIn++
			to.PosValueIn = to.PosValueIn.Add(pm.Amount)
			to.PosRewardMovement = id
		case model.TxToMnAddress:
			to.MnCountIn++
			to.MnValueIn = to.MnValueIn.Add(pm.Amount)
			to.MnRewardMovement = id
		}

		from.LastMovement = id
		from.Sequence = sequence
		to.LastMovement = id
		to.Sequence = sequence

		mv := model.CarverMovement{
			ID:                      id,
			Label:                   pm.MovementType,
			Amount:                  pm.Amount,
			Date:                    date,
			BlockHeight:             blockHeight,
			From:                    from.Label,
			To:                      to.Label,
			DestinationAddress:      pm.DestinationAddress,
			FromBalance:             fromBalancePre,
			ToBalance:               toBalancePre,
			MovementType:            pm.MovementType,
			Sequence:                sequence,
			LastFromMovement:        lastFromMovement,
			LastToMovement:          lastToMovement,
			PosRewardAmount:         posRewardAmount,
			PosInputAmount:          pm.PosInputAmount,
			PosInputBlockHeightDiff: pm.PosInputBlockHeightDiff,
		}
		mv.SetContext(from.Kind, to.Kind)

		movements = append(movements, mv)
		touched[from.ID()] = from
		touched[to.ID()] = to
	}

	return movements, touched, nil
}
