// Package fees implements school fee items and the resolution engine that
// computes what a fee costs, and whether it applies, in a given academic year.
//
// The engine (resolve.go) is pure: it reads immutable snapshots and never
// fails. The write path (service.go, ledger.go) enforces the invariants the
// engine relies on.
package fees

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// =============================================================================
// FEE ITEM
// =============================================================================

type FeeID string

type Category string

const (
	CategoryTuition   Category = "Tuition"
	CategoryBoarding  Category = "Boarding"
	CategoryTransport Category = "Transport"
	CategoryUniform   Category = "Uniform"
	CategoryExam      Category = "Exam"
	CategoryOther     Category = "Other"
	CategoryDiscount  Category = "Discount"
)

type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyPerTerm Frequency = "per_term"
	FrequencyPerYear Frequency = "per_year"
	FrequencyMonthly Frequency = "monthly"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Targeting restricts a fee to classes and sections. Empty lists match all.
type Targeting struct {
	ClassIDs   []string
	SectionIDs []string
}

// Matches reports whether a pupil in classID/sectionID is targeted.
// An empty classID or sectionID is treated as "any".
func (t Targeting) Matches(classID, sectionID string) bool {
	return matchAny(t.ClassIDs, classID) && matchAny(t.SectionIDs, sectionID)
}

func matchAny(allowed []string, v string) bool {
	if len(allowed) == 0 || v == "" {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// FeeItem is a priced, audience-scoped charge, or a credit for discounts.
type FeeItem struct {
	ID       FeeID
	Name     string
	Amount   generic.Money
	Category Category

	// Optional scope of the item itself.
	YearID generic.YearID
	TermID string

	Targeting   Targeting
	IsRequired  bool
	IsRecurring bool
	Frequency   Frequency

	// State is the current disablement record. The zero value is active.
	State Disablement

	// LinkedFeeID is set only on discounts: the fee the discount reduces.
	LinkedFeeID FeeID

	CreatedBy string
	CreatedAt time.Time
}

func (f FeeItem) IsDiscount() bool { return f.Category == CategoryDiscount }

// Status is derived from the disablement record.
func (f FeeItem) Status() Status {
	if f.State.Disabled {
		return StatusDisabled
	}
	return StatusActive
}

// =============================================================================
// ADJUSTMENT - Append-only, temporally scoped change to a fee's amount
// =============================================================================

type AdjustmentType string

const (
	AdjustmentIncrease AdjustmentType = "increase"
	AdjustmentDecrease AdjustmentType = "decrease"
)

// AdjustmentEntry is one ledger entry. Amount is always positive; the sign
// comes from Type.
type AdjustmentEntry struct {
	ID             string
	FeeID          FeeID
	Type           AdjustmentType
	Amount         decimal.Decimal
	Scope          generic.TemporalScope
	Reason         string
	IdempotencyKey string
	CreatedBy      string
	CreatedAt      time.Time
}

// Delta is the signed effect of the entry on a fee amount.
func (a AdjustmentEntry) Delta() decimal.Decimal {
	switch a.Type {
	case AdjustmentIncrease:
		return a.Amount
	case AdjustmentDecrease:
		return a.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// Validate checks the entry's own invariants. References (fee, years) are
// checked by the ledger.
func (a AdjustmentEntry) Validate() error {
	if a.Type != AdjustmentIncrease && a.Type != AdjustmentDecrease {
		return fmt.Errorf("adjustment type %q: %w", a.Type, generic.ErrInvalidAdjustment)
	}
	if !a.Amount.IsPositive() {
		return fmt.Errorf("adjustment amount %s must be positive: %w", a.Amount, generic.ErrInvalidAmount)
	}
	if !adjustmentScope(a.Scope.Type) {
		return &generic.ScopeError{Scope: a.Scope, Reason: "not an adjustment scope"}
	}
	return a.Scope.Validate()
}

func adjustmentScope(t generic.ScopeType) bool {
	switch t {
	case generic.ScopeSpecificYear, generic.ScopeFromYearOnwards, generic.ScopeYearRange:
		return true
	}
	return false
}

func disableScope(t generic.ScopeType) bool {
	switch t {
	case generic.ScopeIndefinite, generic.ScopeFromYearOnwards, generic.ScopeYearRange:
		return true
	}
	return false
}

// =============================================================================
// DISABLEMENT - Current state record plus history trail
// =============================================================================

// Disablement is the authoritative current state of a fee. The resolver only
// reads this record; the history below is for display.
type Disablement struct {
	Disabled bool
	Scope    generic.TemporalScope
	Since    time.Time
	Reason   string
}

type DisableAction string

const (
	ActionDisable DisableAction = "disable"
	ActionEnable  DisableAction = "enable"
)

// DisableEvent is one entry of a fee's enable/disable history.
type DisableEvent struct {
	ID      string
	FeeID   FeeID
	Action  DisableAction
	Scope   generic.TemporalScope
	Reason  string
	ActorID string
	At      time.Time
}
