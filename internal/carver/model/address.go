package model

// CarverAddress is a unique accounting entity identified by a stable
// Label. Balance is always equal to ValueIn minus ValueOut; that
// invariant is maintained by the SequenceApplier, never here.
type CarverAddress struct {
	Label             Label       `json:"label" bson:"_id"`
	Kind              AddressKind `json:"kind" bson:"kind"`
	BlockHeight       uint64      `json:"block_height" bson:"block_height"`
	Sequence          uint64      `json:"sequence" bson:"sequence"`
	LastMovement      string      `json:"last_movement,omitempty" bson:"last_movement,omitempty"`
	Balance           Amount      `json:"balance" bson:"balance"`
	CountIn           uint64      `json:"count_in" bson:"count_in"`
	CountOut          uint64      `json:"count_out" bson:"count_out"`
	ValueIn           Amount      `json:"value_in" bson:"value_in"`
	ValueOut          Amount      `json:"value_out" bson:"value_out"`
	PowCountIn        uint64      `json:"pow_count_in" bson:"pow_count_in"`
	PowValueIn        Amount      `json:"pow_value_in" bson:"pow_value_in"`
	PosCountIn        uint64      `json:"pos_count_in" bson:"pos_count_in"`
	PosValueIn        Amount      `json:"pos_value_in" bson:"pos_value_in"`
	MnCountIn         uint64      `json:"mn_count_in" bson:"mn_count_in"`
	MnValueIn         Amount      `json:"mn_value_in" bson:"mn_value_in"`
	PosRewardMovement string      `json:"pos_reward_movement,omitempty" bson:"pos_reward_movement,omitempty"`
	MnRewardMovement  string      `json:"mn_reward_movement,omitempty" bson:"mn_reward_movement,omitempty"`
}

// ID returns the document id the store keys this record under.
func (a CarverAddress) ID() string {
	return string(a.Label)
}

// NewAddress creates a freshly-seen address record at the given block
// height. It carries zero sequence until the SequenceApplier's first
// touch sets it.
func NewAddress(label Label, height uint64) *CarverAddress {
	return &CarverAddress{
		Label:       label,
		Kind:        KindForLabel(label),
		BlockHeight: height,
		Balance:     Zero,
		ValueIn:     Zero,
		ValueOut:    Zero,
		PowValueIn:  Zero,
		PosValueIn:  Zero,
		MnValueIn:   Zero,
	}
}
