package generic_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestMoney_SignedView(t *testing.T) {
	assert.True(t, generic.ChargeFromInt(100).Signed().Equal(dec(100)))
	assert.True(t, generic.CreditFromInt(100).Signed().Equal(dec(-100)))

	// Sign of the input is ignored by the constructors
	assert.True(t, generic.Charge(dec(-50)).Signed().Equal(dec(50)))
	assert.True(t, generic.Credit(dec(-50)).Signed().Equal(dec(-50)))
}

func TestMoney_FromSigned(t *testing.T) {
	m := generic.MoneyFromSigned(dec(-10000))
	assert.Equal(t, generic.DirectionCredit, m.Direction)
	assert.True(t, m.Magnitude.Equal(dec(10000)))

	m = generic.MoneyFromSigned(dec(0))
	assert.Equal(t, generic.DirectionCharge, m.Direction)
	assert.True(t, m.IsZero())
	assert.False(t, m.IsCredit())
}

func TestMoney_Arithmetic(t *testing.T) {
	// GIVEN: A 100,000 charge
	// WHEN: A 5,000 credit is added and then 120,000 subtracted
	// THEN: Direction follows the sign of the running total

	fee := generic.ChargeFromInt(100000)
	total := fee.Plus(generic.CreditFromInt(5000))
	assert.True(t, total.Equal(generic.ChargeFromInt(95000)))

	below := total.Minus(generic.ChargeFromInt(120000))
	assert.Equal(t, generic.DirectionCredit, below.Direction)
	assert.True(t, below.Magnitude.Equal(dec(25000)))
	assert.Equal(t, "-25000", below.String())

	assert.True(t, fee.AddSigned(dec(-100000)).IsZero())
}

func TestParseMoney(t *testing.T) {
	m, err := generic.ParseMoney("-1500.50", generic.DirectionCredit)
	require.NoError(t, err)
	assert.Equal(t, "-1500.5", m.String())

	_, err = generic.ParseMoney("ten", generic.DirectionCharge)
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)

	_, err = generic.ParseMoney("10", generic.Direction("owed"))
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)
}
