package model

import (
	"strconv"
	"strings"
	"time"
)

// CarverMovement is an immutable ledger record: a single directed
// transfer of value between two CarverAddress entities. Movements are
// created only during sync and deleted only by the Unwinder; they are
// never mutated in place.
type CarverMovement struct {
	ID                       string       `json:"id" bson:"_id"`
	Label                    MovementType `json:"label" bson:"label"`
	Amount                   Amount       `json:"amount" bson:"amount"`
	Date                     time.Time    `json:"date" bson:"date"`
	BlockHeight              uint64       `json:"block_height" bson:"block_height"`
	From                     Label        `json:"from" bson:"from"`
	To                       Label        `json:"to" bson:"to"`
	DestinationAddress       Label        `json:"destination_address,omitempty" bson:"destination_address,omitempty"`
	FromBalance              Amount       `json:"from_balance" bson:"from_balance"`
	ToBalance                Amount       `json:"to_balance" bson:"to_balance"`
	MovementType             MovementType `json:"movement_type" bson:"movement_type"`
	Sequence                 uint64       `json:"sequence" bson:"sequence"`
	LastFromMovement         string       `json:"last_from_movement,omitempty" bson:"last_from_movement,omitempty"`
	LastToMovement           string       `json:"last_to_movement,omitempty" bson:"last_to_movement,omitempty"`
	ContextAddress           Label        `json:"context_address,omitempty" bson:"context_address,omitempty"`
	ContextTx                Label        `json:"context_tx,omitempty" bson:"context_tx,omitempty"`
	PosRewardAmount          Amount       `json:"pos_reward_amount,omitempty" bson:"pos_reward_amount,omitempty"`
	PosInputAmount           Amount       `json:"pos_input_amount,omitempty" bson:"pos_input_amount,omitempty"`
	PosInputBlockHeightDiff  int64        `json:"pos_input_block_height_diff,omitempty" bson:"pos_input_block_height_diff,omitempty"`
}

// MovementID derives the document id for a movement from its sequence.
// Sequences are globally monotonic among the movements stored at any one
// time, so no two stored movements share an id and no separate counter is
// needed. Unwinding a movement frees its sequence, and the next movement
// applied reuses that sequence and therefore the same id.
func MovementID(sequence uint64) string {
	return "mv:" + strconv.FormatUint(sequence, 10)
}

// SequenceFromMovementID recovers the sequence a movement id was derived
// from. The Unwinder uses this to restore an address's sequence to
// whatever its restored last_movement pointer implies, without a second
// store round trip. An empty id (no prior movement) yields (0, true).
func SequenceFromMovementID(id string) (uint64, bool) {
	if id == "" {
		return 0, true
	}
	rest, ok := strings.CutPrefix(id, "mv:")
	if !ok {
		return 0, false
	}
	seq, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// SetContext fills ContextAddress/ContextTx: whichever endpoint is of
// kind Tx becomes the context tx, the other the context address. It is
// the caller's job to know each endpoint's kind (the applier does).
func (m *CarverMovement) SetContext(fromKind, toKind AddressKind) {
	if fromKind == KindTx {
		m.ContextTx = m.From
		m.ContextAddress = m.To
		return
	}
	if toKind == KindTx {
		m.ContextTx = m.To
		m.ContextAddress = m.From
		return
	}
	// Neither side is a tx pseudo-address (e.g. a direct special-to-special
	// movement); the From side becomes the context address by convention
	// and ContextTx stays empty.
	m.ContextAddress = m.From
}
