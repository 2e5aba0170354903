package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point value. The constructors reject negative values;
// Sub can go below zero (see Sub). Movements and balances are
// modeled on decimal.Decimal rather than float64 so that conservation
// (sum of credits equals sum of debits) holds exactly across millions of
// movements instead of drifting with accumulated float error.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// NewAmount builds an Amount from a decimal, rejecting negative values.
func NewAmount(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("amount %s is negative", d.String())
	}
	return Amount{d: d}, nil
}

// NewAmountFromSatoshis builds an Amount from an integer base-unit count.
func NewAmountFromSatoshis(satoshis int64) (Amount, error) {
	if satoshis < 0 {
		return Amount{}, fmt.Errorf("amount %d satoshis is negative", satoshis)
	}
	return Amount{d: decimal.New(satoshis, -8)}, nil
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b. The caller is responsible for checking IsNegative
// afterwards where the domain forbids negative balances.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// DivInt64 returns a / n, truncating like integer division on the
// underlying satoshi count. Used by halving reward schedules.
func (a Amount) DivInt64(n int64) Amount {
	q, _ := a.d.QuoRem(decimal.New(n, 0), 8)
	return Amount{d: q}
}

// Cmp compares a to b the way decimal.Decimal.Cmp does.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// IsNegative reports whether a is below zero.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// IsZero reports whether a equals zero.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

func (a Amount) String() string {
	return a.d.String()
}

// MarshalBinary and UnmarshalBinary let Amount round-trip through the
// document store's byte-oriented value encoding.
func (a Amount) MarshalBinary() ([]byte, error) {
	return a.d.MarshalBinary()
}

func (a *Amount) UnmarshalBinary(data []byte) error {
	return a.d.UnmarshalBinary(data)
}

// MarshalJSON and UnmarshalJSON let Amount round-trip through the
// badger store's JSON document encoding without losing precision to
// a float64 intermediate.
func (a Amount) MarshalJSON() ([]byte, error) {
	return a.d.MarshalJSON()
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.d.UnmarshalJSON(data)
}
