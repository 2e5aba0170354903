// Package movement implements the MovementBuilder: turning one decoded
// transaction into the ordered list of ledger movements it produces,
// in two sweeps — a synchronous classification sweep, then an I/O sweep
// that resolves the CarverAddress each stub touches.
package movement

import (
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

// TxRole tags which consensus-level reward role a transaction plays.
// The builder does not infer it: classify.Classify decides it from the
// transaction's own shape (a coinbase input, or the coinstake marker
// output) and passes it in through RewardContext.
type TxRole string

const (
	RoleOrdinary  TxRole = "ordinary"
	RoleCoinbase  TxRole = "coinbase"
	RoleCoinstake TxRole = "coinstake"
)

// RewardContext carries the block-level facts the builder needs for a
// reward-carrying transaction: the consensus-determined subsidy/fee
// split, the staked input's principal and age (for a coinstake), and
// which output indices are masternode or zerocoin routed rather than
// plain payee outputs.
type RewardContext struct {
	Role TxRole

	// Subsidy is newly-minted coin credited to the coinbase transaction.
	// Zero for a coinstake, which only repays principal plus reward.
	Subsidy model.Amount

	// CollectedFees is the pool of fees gathered from all ordinary
	// transactions in the same block, injected into the
	// reward transaction's pseudo-address alongside Subsidy.
	CollectedFees model.Amount

	// StakeInputAmount and StakeInputBlockHeightDiff describe the
	// staked input being matured by a coinstake transaction.
	StakeInputAmount          model.Amount
	StakeInputBlockHeightDiff int64

	// MasternodeOutputs marks vout indices that pay a masternode rather
	// than the staker/miner.
	MasternodeOutputs map[uint32]bool

	// ZerocoinInputs marks vin indices that redeem a zerocoin mint
	// rather than spend a prior transparent output; the resolver never
	// sees these, since they carry no (txid, vout) reference.
	ZerocoinInputs map[int]model.Amount
}

// Stub is a required-movements-sweep result: enough information to
// know which addresses the parse sweep must load, and the final amount
// and type, but not yet the resolved CarverAddress records or sequence.
type Stub struct {
	MovementType model.MovementType
	From         model.Label
	To           model.Label
	Amount       model.Amount

	// DestinationAddress names the final recipient for a pass-through
	// movement whose To is a special label rather than the real payee.
	// BuildRequired currently has no such case — every outbound movement
	// resolves straight to its real recipient — but CarverMovement still
	// carries the field for whichever taxonomy case does route through
	// an intermediate.
	DestinationAddress model.Label

	PosInputAmount          model.Amount
	PosInputBlockHeightDiff int64
}

// ParsedMovement is a Stub with its endpoints resolved to live
// CarverAddress records, ready for the SequenceApplier.
type ParsedMovement struct {
	MovementType       model.MovementType
	Amount             model.Amount
	From               *model.CarverAddress
	To                 *model.CarverAddress
	DestinationAddress model.Label

	PosInputAmount          model.Amount
	PosInputBlockHeightDiff int64
}
