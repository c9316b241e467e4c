/*
Package generic provides the domain-agnostic building blocks of the fee engine.

PURPOSE:
  Fee items, adjustments and disablements all deal with two recurring
  concerns: money that can be owed or credited, and rules that decide which
  academic years something applies to. Both live here so the fees package
  only has to express school-fee semantics.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: an unsigned magnitude plus an explicit Direction
  - Direction: charge (owed by the pupil) or credit (owed to the pupil)

SIGN CONVENTION:
  Magnitudes are never negative. A discount of 10,000 is
  Money{Magnitude: 10000, Direction: DirectionCredit}, not -10000.
  Signed() converts to the ledger view (credit = negative) when arithmetic
  needs it, and MoneyFromSigned converts back.

USAGE:
  fee := generic.Charge(decimal.NewFromInt(100000))
  total := fee.Plus(generic.Credit(decimal.NewFromInt(5000)))  // 95,000 charge

SEE ALSO:
  - scope.go: TemporalScope and the year coverage predicate
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTION
// =============================================================================

type Direction string

const (
	DirectionCharge Direction = "charge"
	DirectionCredit Direction = "credit"
)

func (d Direction) Valid() bool {
	return d == DirectionCharge || d == DirectionCredit
}

// =============================================================================
// MONEY - Unsigned magnitude with explicit direction
// =============================================================================

type Money struct {
	Magnitude decimal.Decimal
	Direction Direction
}

// Charge returns an amount owed. The sign of v is ignored.
func Charge(v decimal.Decimal) Money {
	return Money{Magnitude: v.Abs(), Direction: DirectionCharge}
}

// Credit returns an amount owed back or deducted. The sign of v is ignored.
func Credit(v decimal.Decimal) Money {
	return Money{Magnitude: v.Abs(), Direction: DirectionCredit}
}

// MoneyFromSigned maps a ledger value to Money: negative values become credits.
func MoneyFromSigned(v decimal.Decimal) Money {
	if v.IsNegative() {
		return Credit(v)
	}
	return Charge(v)
}

func ChargeFromInt(v int64) Money { return Charge(decimal.NewFromInt(v)) }
func CreditFromInt(v int64) Money { return Credit(decimal.NewFromInt(v)) }

// ParseMoney parses a decimal string in the given direction.
func ParseMoney(s string, d Direction) (Money, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, ErrInvalidAmount)
	}
	if !d.Valid() {
		return Money{}, fmt.Errorf("direction %q: %w", d, ErrInvalidAmount)
	}
	return Money{Magnitude: v.Abs(), Direction: d}, nil
}

// Signed returns the ledger view: charges positive, credits negative.
func (m Money) Signed() decimal.Decimal {
	if m.Direction == DirectionCredit {
		return m.Magnitude.Abs().Neg()
	}
	return m.Magnitude.Abs()
}

func (m Money) Plus(o Money) Money               { return MoneyFromSigned(m.Signed().Add(o.Signed())) }
func (m Money) Minus(o Money) Money              { return MoneyFromSigned(m.Signed().Sub(o.Signed())) }
func (m Money) AddSigned(d decimal.Decimal) Money { return MoneyFromSigned(m.Signed().Add(d)) }
func (m Money) IsZero() bool                     { return m.Magnitude.IsZero() }
func (m Money) IsCredit() bool                   { return m.Direction == DirectionCredit && !m.IsZero() }
func (m Money) Equal(o Money) bool               { return m.Signed().Equal(o.Signed()) }

func (m Money) String() string {
	if m.IsCredit() {
		return "-" + m.Magnitude.Abs().String()
	}
	return m.Magnitude.Abs().String()
}
