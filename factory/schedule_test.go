package factory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mukisa95/Trinity-Family-school-sub002/factory"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
	"github.com/Mukisa95/Trinity-Family-school-sub002/validate"
)

const schedule = `{
	"years": [
		{"id": "2024", "name": "2024", "terms": [
			{"id": "2024-t1", "name": "Term 1", "start": "2024-02-05", "end": "2024-04-26", "current": true}
		]},
		{"id": "y25", "name": "2025/26", "sequence": 2025, "locked": true}
	],
	"fees": [
		{"id": "tuition", "name": "Tuition", "amount": "100000", "category": "Tuition", "class_ids": ["p1"]},
		{"id": "sibling", "name": "Sibling", "amount": "-10000", "category": "Discount", "linked_fee_id": "tuition"},
		{"id": "boarding", "name": "Boarding", "amount": "250000", "category": "Boarding", "frequency": "per_year",
		 "disabled": {"disable_type": "year_range", "start_year_id": "2024", "end_year_id": "y25",
		              "reason": "renovation", "at": "2023-12-01T10:00:00Z"}}
	],
	"adjustments": [
		{"fee_id": "tuition", "adjustment_type": "increase", "amount": "20000",
		 "effective_period_type": "from_year_onwards", "start_year_id": "2024",
		 "created_at": "2024-01-01", "idempotency_key": "k1"}
	]
}`

func TestParse_Schedule(t *testing.T) {
	// GIVEN: A schedule with two years, three fees and one adjustment
	// WHEN: Parsing
	// THEN: Sequences, directions, disablement and the ledger entry are set

	b, err := factory.Parse([]byte(schedule))
	require.NoError(t, err)

	require.Len(t, b.Years, 2)
	assert.Equal(t, 2024, b.Years[0].Sequence)
	require.Len(t, b.Years[0].Terms, 1)
	assert.True(t, b.Years[0].Terms[0].IsCurrent)
	assert.Equal(t, generic.YearID("2024"), b.Years[0].Terms[0].YearID)
	assert.Equal(t, time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC), b.Years[0].Terms[0].Start)
	assert.Equal(t, 2025, b.Years[1].Sequence)
	assert.True(t, b.Years[1].IsLocked)

	require.Len(t, b.Fees, 3)
	assert.Equal(t, generic.DirectionCharge, b.Fees[0].Amount.Direction)
	assert.Equal(t, fees.FrequencyPerTerm, b.Fees[0].Frequency)
	assert.Equal(t, []string{"p1"}, b.Fees[0].Targeting.ClassIDs)

	assert.Equal(t, generic.DirectionCredit, b.Fees[1].Amount.Direction)
	assert.True(t, b.Fees[1].Amount.Magnitude.Equal(decimal.NewFromInt(10000)))

	assert.True(t, b.Fees[2].State.Disabled)
	assert.Equal(t, generic.YearRange("2024", "y25"), b.Fees[2].State.Scope)
	require.Len(t, b.History, 1)
	assert.Equal(t, fees.FeeID("boarding"), b.History[0].FeeID)
	assert.Equal(t, fees.ActionDisable, b.History[0].Action)

	require.Len(t, b.Adjustments, 1)
	adj := b.Adjustments[0]
	assert.Equal(t, fees.AdjustmentIncrease, adj.Type)
	assert.Equal(t, generic.FromYearOnwards("2024"), adj.Scope)
	assert.Equal(t, "k1", adj.IdempotencyKey)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), adj.CreatedAt)
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		check func(t *testing.T, err error)
	}{
		{
			name:  "invalid json",
			json:  `{"fees": [`,
			check: func(t *testing.T, err error) { assert.Error(t, err) },
		},
		{
			name:  "missing name",
			json:  `{"fees": [{"id": "x", "amount": "1", "category": "Other"}]}`,
			check: func(t *testing.T, err error) { assert.True(t, validate.IsValidation(err)) },
		},
		{
			name:  "discount without link",
			json:  `{"fees": [{"id": "x", "name": "x", "amount": "1", "category": "Discount"}]}`,
			check: func(t *testing.T, err error) { assert.True(t, validate.IsValidation(err)) },
		},
		{
			name:  "negative charge",
			json:  `{"fees": [{"id": "x", "name": "x", "amount": "-1", "category": "Other"}]}`,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, generic.ErrInvalidAmount) },
		},
		{
			name:  "non numeric year without sequence",
			json:  `{"years": [{"id": "a", "name": "2024/25"}]}`,
			check: func(t *testing.T, err error) { assert.Error(t, err) },
		},
		{
			name:  "term ends before start",
			json:  `{"years": [{"id": "2024", "name": "2024", "terms": [{"id": "t", "name": "t", "start": "2024-05-01", "end": "2024-04-01"}]}]}`,
			check: func(t *testing.T, err error) { assert.Error(t, err) },
		},
		{
			name:  "range adjustment without end",
			json:  `{"adjustments": [{"fee_id": "x", "adjustment_type": "increase", "amount": "1", "effective_period_type": "year_range", "start_year_id": "2024"}]}`,
			check: func(t *testing.T, err error) { assert.True(t, validate.IsValidation(err)) },
		},
		{
			name:  "negative adjustment",
			json:  `{"adjustments": [{"fee_id": "x", "adjustment_type": "decrease", "amount": "-5", "effective_period_type": "specific_year", "start_year_id": "2024"}]}`,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, generic.ErrInvalidAmount) },
		},
		{
			name:  "indefinite disable with years",
			json:  `{"fees": [{"id": "x", "name": "x", "amount": "1", "category": "Other", "disabled": {"disable_type": "immediate_indefinite", "start_year_id": "2024"}}]}`,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, generic.ErrInvalidScope) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.Parse([]byte(tt.json))
			tt.check(t, err)
		})
	}
}
