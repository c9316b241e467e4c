/*
Package factory provides JSON to Go fee schedule conversion.

PURPOSE:
  Converts JSON fee schedules into calendar years, fee items and adjustment
  entries ready for fees.Service.Import. Schools can keep their fee
  structure in a file, and demo scenarios ship as JSON.

JSON SCHEMA:
  {
    "years": [
      {"id": "2024", "name": "2024", "sequence": 2024, "terms": [
        {"id": "2024-t1", "name": "Term 1", "start": "2024-02-05", "end": "2024-04-26"}
      ]}
    ],
    "fees": [
      {"id": "tuition-p1", "name": "Tuition P1", "amount": "100000",
       "category": "Tuition", "class_ids": ["p1"], "frequency": "per_term"},
      {"id": "sibling", "name": "Sibling discount", "amount": "10000",
       "category": "Discount", "linked_fee_id": "tuition-p1"}
    ],
    "adjustments": [
      {"fee_id": "tuition-p1", "adjustment_type": "increase", "amount": "20000",
       "effective_period_type": "from_year_onwards", "start_year_id": "2024",
       "created_at": "2024-01-01T00:00:00Z"}
    ]
  }

KEY FEATURES:
  - Validates every entry with the same tags as the HTTP inputs
  - Sets defaults (frequency per_term, sequence from a numeric name)
  - Discounts are credits whatever sign the file uses
  - Disabled fees carry their current state and one history event

SEE ALSO:
  - legacy.go: Documents from the previous school system
  - fees/service.go: Import
  - api/scenarios.go: Demo schedules
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
	"github.com/Mukisa95/Trinity-Family-school-sub002/validate"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a fee schedule.
type ScheduleJSON struct {
	Years       []YearJSON       `json:"years" validate:"dive"`
	Fees        []FeeJSON        `json:"fees" validate:"dive"`
	Adjustments []AdjustmentJSON `json:"adjustments" validate:"dive"`
}

type YearJSON struct {
	ID       string     `json:"id" validate:"required"`
	Name     string     `json:"name" validate:"required"`
	Sequence *int       `json:"sequence,omitempty"` // defaults to the numeric name
	Locked   bool       `json:"locked,omitempty"`
	Terms    []TermJSON `json:"terms" validate:"dive"`
}

type TermJSON struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
	Current bool   `json:"current,omitempty"`
}

type FeeJSON struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name" validate:"required"`
	Amount      string       `json:"amount" validate:"required,decimal_str"`
	Category    string       `json:"category" validate:"required"`
	YearID      string       `json:"year_id,omitempty"`
	TermID      string       `json:"term_id,omitempty"`
	ClassIDs    []string     `json:"class_ids,omitempty"`
	SectionIDs  []string     `json:"section_ids,omitempty"`
	IsRequired  bool         `json:"is_required,omitempty"`
	IsRecurring bool         `json:"is_recurring,omitempty"`
	Frequency   string       `json:"frequency,omitempty" validate:"omitempty,frequency"`
	LinkedFeeID string       `json:"linked_fee_id,omitempty" validate:"required_if=Category Discount"`
	Disabled    *DisableJSON `json:"disabled,omitempty"`
}

type DisableJSON struct {
	DisableType string `json:"disable_type" validate:"required,disable_type"`
	StartYearID string `json:"start_year_id,omitempty"`
	EndYearID   string `json:"end_year_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	At          string `json:"at,omitempty"`
}

type AdjustmentJSON struct {
	ID             string `json:"id,omitempty"`
	FeeID          string `json:"fee_id" validate:"required"`
	Type           string `json:"adjustment_type" validate:"required,adjustment_type"`
	Amount         string `json:"amount" validate:"required,decimal_str"`
	PeriodType     string `json:"effective_period_type" validate:"required,scope_type"`
	StartYearID    string `json:"start_year_id" validate:"required"`
	EndYearID      string `json:"end_year_id,omitempty" validate:"required_if=PeriodType year_range"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse converts a JSON schedule into an import bundle.
func Parse(data []byte) (fees.Bundle, error) {
	var s ScheduleJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return fees.Bundle{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return s.Bundle()
}

// Bundle validates the schedule and converts it.
func (s ScheduleJSON) Bundle() (fees.Bundle, error) {
	if err := validate.Struct(s); err != nil {
		return fees.Bundle{}, err
	}

	var b fees.Bundle
	for _, y := range s.Years {
		year, err := y.toYear()
		if err != nil {
			return fees.Bundle{}, err
		}
		b.Years = append(b.Years, year)
	}

	for _, f := range s.Fees {
		fee, event, err := f.toFee()
		if err != nil {
			return fees.Bundle{}, err
		}
		b.Fees = append(b.Fees, fee)
		if event != nil {
			b.History = append(b.History, *event)
		}
	}

	for i, a := range s.Adjustments {
		adj, err := a.toAdjustment()
		if err != nil {
			return fees.Bundle{}, fmt.Errorf("adjustment %d: %w", i, err)
		}
		b.Adjustments = append(b.Adjustments, adj)
	}
	return b, nil
}

func (y YearJSON) toYear() (calendar.AcademicYear, error) {
	year := calendar.AcademicYear{
		ID:       generic.YearID(y.ID),
		Name:     y.Name,
		IsLocked: y.Locked,
	}
	if y.Sequence != nil {
		year.Sequence = *y.Sequence
	} else {
		seq, err := calendar.ParseSequence(y.Name)
		if err != nil {
			return calendar.AcademicYear{}, fmt.Errorf("year %s: sequence missing: %w", y.ID, err)
		}
		year.Sequence = seq
	}
	for _, t := range y.Terms {
		start, err := parseDate(t.Start)
		if err != nil {
			return calendar.AcademicYear{}, fmt.Errorf("term %s start: %w", t.ID, err)
		}
		end, err := parseDate(t.End)
		if err != nil {
			return calendar.AcademicYear{}, fmt.Errorf("term %s end: %w", t.ID, err)
		}
		if end.Before(start) {
			return calendar.AcademicYear{}, fmt.Errorf("term %s ends before it starts", t.ID)
		}
		year.Terms = append(year.Terms, calendar.Term{
			ID:        t.ID,
			YearID:    year.ID,
			Name:      t.Name,
			Start:     start,
			End:       end,
			IsCurrent: t.Current,
		})
	}
	return year, nil
}

func (f FeeJSON) toFee() (fees.FeeItem, *fees.DisableEvent, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(f.Amount))
	if err != nil {
		return fees.FeeItem{}, nil, fmt.Errorf("fee %s amount: %w", f.ID, generic.ErrInvalidAmount)
	}

	fee := fees.FeeItem{
		ID:          fees.FeeID(f.ID),
		Name:        f.Name,
		Category:    fees.Category(f.Category),
		YearID:      generic.YearID(f.YearID),
		TermID:      f.TermID,
		Targeting:   fees.Targeting{ClassIDs: f.ClassIDs, SectionIDs: f.SectionIDs},
		IsRequired:  f.IsRequired,
		IsRecurring: f.IsRecurring,
		Frequency:   fees.Frequency(f.Frequency),
		LinkedFeeID: fees.FeeID(f.LinkedFeeID),
	}
	if fee.Frequency == "" {
		fee.Frequency = fees.FrequencyPerTerm
	}
	if fee.IsDiscount() {
		fee.Amount = generic.Credit(value)
	} else {
		if value.IsNegative() {
			return fees.FeeItem{}, nil, fmt.Errorf("fee %s amount %s is negative: %w", f.ID, value, generic.ErrInvalidAmount)
		}
		fee.Amount = generic.Charge(value)
	}

	if f.Disabled == nil {
		return fee, nil, nil
	}
	scope := generic.TemporalScope{
		Type:        generic.ScopeType(f.Disabled.DisableType),
		StartYearID: generic.YearID(f.Disabled.StartYearID),
		EndYearID:   generic.YearID(f.Disabled.EndYearID),
	}
	if err := scope.Validate(); err != nil {
		return fees.FeeItem{}, nil, fmt.Errorf("fee %s: %w", f.ID, err)
	}
	var at time.Time
	if f.Disabled.At != "" {
		if at, err = parseTimestamp(f.Disabled.At); err != nil {
			return fees.FeeItem{}, nil, fmt.Errorf("fee %s disabled at: %w", f.ID, err)
		}
	}
	fee.State = fees.Disablement{Disabled: true, Scope: scope, Since: at, Reason: f.Disabled.Reason}
	event := &fees.DisableEvent{
		ID:     "schedule:" + string(fee.ID) + ":disabled",
		FeeID:  fee.ID,
		Action: fees.ActionDisable,
		Scope:  scope,
		Reason: f.Disabled.Reason,
		At:     at,
	}
	return fee, event, nil
}

func (a AdjustmentJSON) toAdjustment() (fees.AdjustmentEntry, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(a.Amount))
	if err != nil {
		return fees.AdjustmentEntry{}, fmt.Errorf("amount %q: %w", a.Amount, generic.ErrInvalidAmount)
	}
	adj := fees.AdjustmentEntry{
		ID:     a.ID,
		FeeID:  fees.FeeID(a.FeeID),
		Type:   fees.AdjustmentType(a.Type),
		Amount: amount,
		Scope: generic.TemporalScope{
			Type:        generic.ScopeType(a.PeriodType),
			StartYearID: generic.YearID(a.StartYearID),
			EndYearID:   generic.YearID(a.EndYearID),
		},
		Reason:         a.Reason,
		IdempotencyKey: a.IdempotencyKey,
	}
	if a.CreatedAt != "" {
		if adj.CreatedAt, err = parseTimestamp(a.CreatedAt); err != nil {
			return fees.AdjustmentEntry{}, err
		}
	}
	if err := adj.Validate(); err != nil {
		return fees.AdjustmentEntry{}, err
	}
	return adj, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return parseTimestamp(s)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if d, derr := time.Parse("2006-01-02", s); derr == nil {
			return d, nil
		}
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
