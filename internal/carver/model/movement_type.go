package model

// MovementType is the closed taxonomy of ledger movements a transaction
// can produce. The constants are listed in inbound/outbound pairs, each
// inbound type followed by its outbound counterpart.
type MovementType string

const (
	CoinbaseToTx         MovementType = "coinbase_to_tx"
	TxToPowAddress       MovementType = "tx_to_pow_address"
	PowAddressReward     MovementType = "pow_address_reward"
	PosRewardToTx        MovementType = "pos_reward_to_tx"
	TxToPosAddress       MovementType = "tx_to_pos_address"
	MasternodeRewardToTx MovementType = "masternode_reward_to_tx"
	TxToMnAddress        MovementType = "tx_to_mn_address"
	FeeToTx              MovementType = "fee_to_tx"
	TxToFee              MovementType = "tx_to_fee"
	AddressToTx          MovementType = "address_to_tx"
	TxToAddress          MovementType = "tx_to_address"
	ZerocoinToTx         MovementType = "zerocoin_to_tx"
	TxToZerocoin         MovementType = "tx_to_zerocoin"
)

// Inbound reports whether t credits the transaction pseudo-address (true)
// or debits it (false). The MovementBuilder does not call it: its
// required-movements sweep collects inbound and outbound stubs in
// separate slices.
func (t MovementType) Inbound() bool {
	switch t {
	case CoinbaseToTx, PosRewardToTx, MasternodeRewardToTx, FeeToTx, AddressToTx, ZerocoinToTx:
		return true
	default:
		return false
	}
}
