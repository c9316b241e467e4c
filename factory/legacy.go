package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// =============================================================================
// LEGACY DOCUMENTS - Exports of the previous school system
// =============================================================================

// LegacyDocument is an export of the previous system. Years are ordered by
// their numeric names, amounts are signed (discounts negative) and a fee's
// disablement is a status flag plus a history log.
type LegacyDocument struct {
	AcademicYears []LegacyYear       `json:"academicYears"`
	FeeStructures []LegacyFee        `json:"feeStructures"`
	Adjustments   []LegacyAdjustment `json:"feeAdjustments"`
}

type LegacyYear struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	IsLocked bool         `json:"isLocked"`
	Terms    []LegacyTerm `json:"terms"`
}

type LegacyTerm struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	IsCurrent bool   `json:"isCurrent"`
}

type LegacyFee struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Amount         decimal.Decimal    `json:"amount"`
	Category       string             `json:"category"`
	AcademicYearID string             `json:"academicYearId"`
	TermID         string             `json:"termId"`
	ClassIDs       []string           `json:"classIds"`
	SectionIDs     []string           `json:"sectionIds"`
	IsRequired     bool               `json:"isRequired"`
	IsRecurring    bool               `json:"isRecurring"`
	Frequency      string             `json:"frequency"`
	Status         string             `json:"status"`
	LinkedFeeID    string             `json:"linkedFeeId"`
	DisableHistory []LegacyDisableLog `json:"disableHistory"`
	CreatedAt      string             `json:"createdAt"`
	CreatedBy      string             `json:"createdBy"`
}

type LegacyDisableLog struct {
	Date        string `json:"date"`
	Reason      string `json:"reason"`
	DisableType string `json:"disableType"`
	StartYearID string `json:"startYearId"`
	EndYearID   string `json:"endYearId"`
	ActorID     string `json:"disabledBy"`
}

type LegacyAdjustment struct {
	ID                  string          `json:"id"`
	FeeItemID           string          `json:"feeItemId"`
	AdjustmentType      string          `json:"adjustmentType"`
	Amount              decimal.Decimal `json:"amount"`
	EffectivePeriodType string          `json:"effectivePeriodType"`
	StartYearID         string          `json:"startYearId"`
	EndYearID           string          `json:"endYearId"`
	Reason              string          `json:"reason"`
	CreatedAt           string          `json:"createdAt"`
	CreatedBy           string          `json:"createdBy"`
}

// ParseLegacy converts a legacy export into an import bundle. A year whose
// name is not a number is rejected: ordering needs a sequence and guessing
// one would silently change which adjustments apply.
func ParseLegacy(data []byte) (fees.Bundle, error) {
	var doc LegacyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fees.Bundle{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return doc.Bundle()
}

func (d LegacyDocument) Bundle() (fees.Bundle, error) {
	var b fees.Bundle

	for _, y := range d.AcademicYears {
		seq, err := calendar.ParseSequence(y.Name)
		if err != nil {
			return fees.Bundle{}, fmt.Errorf("year %s: %w", y.ID, err)
		}
		year := calendar.AcademicYear{
			ID:       generic.YearID(y.ID),
			Name:     y.Name,
			Sequence: seq,
			IsLocked: y.IsLocked,
		}
		for _, t := range y.Terms {
			start, err := parseDate(t.StartDate)
			if err != nil {
				return fees.Bundle{}, fmt.Errorf("term %s: %w", t.ID, err)
			}
			end, err := parseDate(t.EndDate)
			if err != nil {
				return fees.Bundle{}, fmt.Errorf("term %s: %w", t.ID, err)
			}
			year.Terms = append(year.Terms, calendar.Term{
				ID: t.ID, YearID: year.ID, Name: t.Name, Start: start, End: end, IsCurrent: t.IsCurrent,
			})
		}
		b.Years = append(b.Years, year)
	}

	for _, f := range d.FeeStructures {
		fee, history, err := f.convert()
		if err != nil {
			return fees.Bundle{}, err
		}
		b.Fees = append(b.Fees, fee)
		b.History = append(b.History, history...)
	}

	for _, a := range d.Adjustments {
		adj := fees.AdjustmentEntry{
			ID:     a.ID,
			FeeID:  fees.FeeID(a.FeeItemID),
			Type:   fees.AdjustmentType(a.AdjustmentType),
			Amount: a.Amount,
			Scope: generic.TemporalScope{
				Type:        generic.ScopeType(a.EffectivePeriodType),
				StartYearID: generic.YearID(a.StartYearID),
				EndYearID:   generic.YearID(a.EndYearID),
			},
			Reason:    a.Reason,
			CreatedBy: a.CreatedBy,
		}
		if a.ID != "" {
			adj.IdempotencyKey = "legacy:" + a.ID
		}
		if a.CreatedAt != "" {
			at, err := parseTimestamp(a.CreatedAt)
			if err != nil {
				return fees.Bundle{}, fmt.Errorf("adjustment %s: %w", a.ID, err)
			}
			adj.CreatedAt = at
		}
		if err := adj.Validate(); err != nil {
			return fees.Bundle{}, fmt.Errorf("adjustment %s: %w", a.ID, err)
		}
		b.Adjustments = append(b.Adjustments, adj)
	}
	return b, nil
}

func (f LegacyFee) convert() (fees.FeeItem, []fees.DisableEvent, error) {
	fee := fees.FeeItem{
		ID:          fees.FeeID(f.ID),
		Name:        f.Name,
		Amount:      generic.MoneyFromSigned(f.Amount),
		Category:    fees.Category(f.Category),
		YearID:      generic.YearID(f.AcademicYearID),
		TermID:      f.TermID,
		Targeting:   fees.Targeting{ClassIDs: f.ClassIDs, SectionIDs: f.SectionIDs},
		IsRequired:  f.IsRequired,
		IsRecurring: f.IsRecurring,
		Frequency:   fees.Frequency(f.Frequency),
		LinkedFeeID: fees.FeeID(f.LinkedFeeID),
		CreatedBy:   f.CreatedBy,
	}
	if fee.IsDiscount() {
		fee.Amount = generic.Credit(f.Amount)
	}
	if fee.Frequency == "" {
		fee.Frequency = fees.FrequencyPerTerm
	}
	if f.CreatedAt != "" {
		at, err := parseTimestamp(f.CreatedAt)
		if err != nil {
			return fees.FeeItem{}, nil, fmt.Errorf("fee %s: %w", f.ID, err)
		}
		fee.CreatedAt = at
	}

	// Re-enables were logged as immediate_indefinite entries, so the only
	// reliable signal for the action is the status transition order: the
	// last entry of an active fee was an enable.
	history := make([]fees.DisableEvent, 0, len(f.DisableHistory))
	for i, h := range f.DisableHistory {
		var at time.Time
		if h.Date != "" {
			t, err := parseTimestamp(h.Date)
			if err != nil {
				return fees.FeeItem{}, nil, fmt.Errorf("fee %s history: %w", f.ID, err)
			}
			at = t
		}
		action := fees.ActionDisable
		if i == len(f.DisableHistory)-1 && f.Status != string(fees.StatusDisabled) {
			action = fees.ActionEnable
		}
		history = append(history, fees.DisableEvent{
			ID:     fmt.Sprintf("legacy:%s:%d", fee.ID, i),
			FeeID:  fee.ID,
			Action: action,
			Scope: generic.TemporalScope{
				Type:        generic.ScopeType(h.DisableType),
				StartYearID: generic.YearID(h.StartYearID),
				EndYearID:   generic.YearID(h.EndYearID),
			},
			Reason:  h.Reason,
			ActorID: h.ActorID,
			At:      at,
		})
	}

	fee.State = fees.StateFromHistory(fees.Status(f.Status), history)
	return fee, history, nil
}
