/*
dto.go - Data Transfer Objects for HTTP API

PURPOSE:
  Defines the JSON request/response structures for the REST API. Keeps the
  wire format separate from the fees and calendar types.

CONVENTIONS:
  - snake_case JSON keys
  - Dates as "2006-01-02", timestamps as RFC3339
  - Money as {amount, direction, signed}; amounts are decimal strings so no
    precision is lost in transit

SEE ALSO:
  - handlers.go: Uses these DTOs
  - fees/service.go: Request inputs (NewFee, NewAdjustment, DisableRequest)
*/
package api

import (
	"time"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
	"github.com/Mukisa95/Trinity-Family-school-sub002/validate"
)

// =============================================================================
// CALENDAR DTOs
// =============================================================================

type TermDTO struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Start     string `json:"start" validate:"required,datetime=2006-01-02"`
	End       string `json:"end" validate:"required,datetime=2006-01-02"`
	IsCurrent bool   `json:"is_current"`
}

type YearDTO struct {
	ID       string    `json:"id" validate:"required"`
	Name     string    `json:"name" validate:"required"`
	Sequence int       `json:"sequence"`
	IsLocked bool      `json:"is_locked"`
	Terms    []TermDTO `json:"terms" validate:"dive"`
}

// SaveYearRequest creates or replaces an academic year. A missing sequence
// is derived from a numeric name.
type SaveYearRequest struct {
	ID       string    `json:"id" validate:"required"`
	Name     string    `json:"name" validate:"required"`
	Sequence *int      `json:"sequence"`
	IsLocked bool      `json:"is_locked"`
	Terms    []TermDTO `json:"terms" validate:"dive"`
}

// =============================================================================
// FEE DTOs
// =============================================================================

type MoneyDTO struct {
	Amount    string `json:"amount"`
	Direction string `json:"direction"`
	Signed    string `json:"signed"`
}

type ScopeDTO struct {
	Type        string `json:"type"`
	StartYearID string `json:"start_year_id,omitempty"`
	EndYearID   string `json:"end_year_id,omitempty"`
}

type DisablementDTO struct {
	Scope  ScopeDTO `json:"scope"`
	Since  string   `json:"since,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

type FeeDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Amount      MoneyDTO        `json:"amount"`
	Category    string          `json:"category"`
	YearID      string          `json:"year_id,omitempty"`
	TermID      string          `json:"term_id,omitempty"`
	ClassIDs    []string        `json:"class_ids"`
	SectionIDs  []string        `json:"section_ids"`
	IsRequired  bool            `json:"is_required"`
	IsRecurring bool            `json:"is_recurring"`
	Frequency   string          `json:"frequency"`
	Status      string          `json:"status"`
	Disablement *DisablementDTO `json:"disablement,omitempty"`
	LinkedFeeID string          `json:"linked_fee_id,omitempty"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   string          `json:"created_at"`
}

type AdjustmentDTO struct {
	ID             string   `json:"id"`
	FeeID          string   `json:"fee_id"`
	Type           string   `json:"adjustment_type"`
	Amount         string   `json:"amount"`
	Scope          ScopeDTO `json:"scope"`
	Reason         string   `json:"reason,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
	CreatedBy      string   `json:"created_by"`
	CreatedAt      string   `json:"created_at"`
}

type DisableEventDTO struct {
	ID      string   `json:"id"`
	Action  string   `json:"action"`
	Scope   ScopeDTO `json:"scope"`
	Reason  string   `json:"reason,omitempty"`
	ActorID string   `json:"actor_id"`
	At      string   `json:"at"`
}

// EnableRequest is the body of POST /api/fees/{id}/enable.
type EnableRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// RESOLUTION DTOs
// =============================================================================

type BreakdownLineDTO struct {
	Adjustment AdjustmentDTO `json:"adjustment"`
	Before     MoneyDTO      `json:"before"`
	After      MoneyDTO      `json:"after"`
}

type DiscountDTO struct {
	DiscountID   string   `json:"discount_id"`
	LinkedFeeID  string   `json:"linked_fee_id"`
	LinkedAmount MoneyDTO `json:"linked_amount"`
	NetAmount    MoneyDTO `json:"net_amount"`
}

type QuoteDTO struct {
	Fee       FeeDTO             `json:"fee"`
	YearID    string             `json:"year_id"`
	Base      MoneyDTO           `json:"base"`
	Amount    MoneyDTO           `json:"amount"`
	Active    bool               `json:"active"`
	Breakdown []BreakdownLineDTO `json:"breakdown"`
	Discount  *DiscountDTO       `json:"discount,omitempty"`
}

type StatementLineDTO struct {
	FeeID    string   `json:"fee_id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Amount   MoneyDTO `json:"amount"`
	Active   bool     `json:"active"`
}

type StatementDTO struct {
	YearID       string             `json:"year_id"`
	TermID       string             `json:"term_id,omitempty"`
	Lines        []StatementLineDTO `json:"lines"`
	TotalCharges MoneyDTO           `json:"total_charges"`
	TotalCredits MoneyDTO           `json:"total_credits"`
	Net          MoneyDTO           `json:"net"`
}

// =============================================================================
// AUDIT & SCENARIO DTOs
// =============================================================================

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	FeeID     string         `json:"fee_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string                `json:"error"`
	Details any                   `json:"details,omitempty"`
	Fields  []validate.FieldError `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMoneyDTO(m generic.Money) MoneyDTO {
	dir := m.Direction
	if !dir.Valid() {
		dir = generic.DirectionCharge
	}
	return MoneyDTO{
		Amount:    m.Magnitude.Abs().String(),
		Direction: string(dir),
		Signed:    m.Signed().String(),
	}
}

func toScopeDTO(s generic.TemporalScope) ScopeDTO {
	return ScopeDTO{
		Type:        string(s.Type),
		StartYearID: string(s.StartYearID),
		EndYearID:   string(s.EndYearID),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toYearDTO(y calendar.AcademicYear) YearDTO {
	dto := YearDTO{
		ID:       string(y.ID),
		Name:     y.Name,
		Sequence: y.Sequence,
		IsLocked: y.IsLocked,
		Terms:    make([]TermDTO, 0, len(y.Terms)),
	}
	for _, t := range y.Terms {
		dto.Terms = append(dto.Terms, TermDTO{
			ID:        t.ID,
			Name:      t.Name,
			Start:     t.Start.Format("2006-01-02"),
			End:       t.End.Format("2006-01-02"),
			IsCurrent: t.IsCurrent,
		})
	}
	return dto
}

func toFeeDTO(f fees.FeeItem) FeeDTO {
	dto := FeeDTO{
		ID:          string(f.ID),
		Name:        f.Name,
		Amount:      toMoneyDTO(f.Amount),
		Category:    string(f.Category),
		YearID:      string(f.YearID),
		TermID:      f.TermID,
		ClassIDs:    nonNil(f.Targeting.ClassIDs),
		SectionIDs:  nonNil(f.Targeting.SectionIDs),
		IsRequired:  f.IsRequired,
		IsRecurring: f.IsRecurring,
		Frequency:   string(f.Frequency),
		Status:      string(f.Status()),
		LinkedFeeID: string(f.LinkedFeeID),
		CreatedBy:   f.CreatedBy,
		CreatedAt:   formatTime(f.CreatedAt),
	}
	if f.State.Disabled {
		dto.Disablement = &DisablementDTO{
			Scope:  toScopeDTO(f.State.Scope),
			Since:  formatTime(f.State.Since),
			Reason: f.State.Reason,
		}
	}
	return dto
}

func toAdjustmentDTO(a fees.AdjustmentEntry) AdjustmentDTO {
	return AdjustmentDTO{
		ID:             a.ID,
		FeeID:          string(a.FeeID),
		Type:           string(a.Type),
		Amount:         a.Amount.String(),
		Scope:          toScopeDTO(a.Scope),
		Reason:         a.Reason,
		IdempotencyKey: a.IdempotencyKey,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      formatTime(a.CreatedAt),
	}
}

func toDisableEventDTO(e fees.DisableEvent) DisableEventDTO {
	return DisableEventDTO{
		ID:      e.ID,
		Action:  string(e.Action),
		Scope:   toScopeDTO(e.Scope),
		Reason:  e.Reason,
		ActorID: e.ActorID,
		At:      formatTime(e.At),
	}
}

func toDiscountDTO(discountID fees.FeeID, d fees.DiscountResult) *DiscountDTO {
	return &DiscountDTO{
		DiscountID:   string(discountID),
		LinkedFeeID:  string(d.LinkedFee.ID),
		LinkedAmount: toMoneyDTO(d.LinkedAmount),
		NetAmount:    toMoneyDTO(d.NetAmount),
	}
}

func toQuoteDTO(q fees.Quote) QuoteDTO {
	dto := QuoteDTO{
		Fee:       toFeeDTO(q.Fee),
		YearID:    string(q.YearID),
		Base:      toMoneyDTO(q.Base),
		Amount:    toMoneyDTO(q.Amount),
		Active:    q.Active,
		Breakdown: make([]BreakdownLineDTO, 0, len(q.Lines)),
	}
	for _, l := range q.Lines {
		dto.Breakdown = append(dto.Breakdown, BreakdownLineDTO{
			Adjustment: toAdjustmentDTO(l.Adjustment),
			Before:     toMoneyDTO(l.Before),
			After:      toMoneyDTO(l.After),
		})
	}
	if q.Discount != nil {
		dto.Discount = toDiscountDTO(q.Fee.ID, *q.Discount)
	}
	return dto
}

func toStatementDTO(s fees.Statement) StatementDTO {
	dto := StatementDTO{
		YearID:       string(s.YearID),
		TermID:       s.TermID,
		Lines:        make([]StatementLineDTO, 0, len(s.Lines)),
		TotalCharges: toMoneyDTO(s.TotalCharges),
		TotalCredits: toMoneyDTO(s.TotalCredits),
		Net:          toMoneyDTO(s.Net),
	}
	for _, l := range s.Lines {
		dto.Lines = append(dto.Lines, StatementLineDTO{
			FeeID:    string(l.Fee.ID),
			Name:     l.Fee.Name,
			Category: string(l.Fee.Category),
			Amount:   toMoneyDTO(l.Amount),
			Active:   l.Active,
		})
	}
	return dto
}

func toAuditEntryDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		Timestamp: formatTime(e.Timestamp),
		ActorID:   e.ActorID,
		Action:    string(e.Action),
		FeeID:     e.FeeID,
		Payload:   e.Payload,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
