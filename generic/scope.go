package generic

import "fmt"

// =============================================================================
// TEMPORAL SCOPE - Which academic years a rule applies to
// =============================================================================

// YearID identifies an academic year in the calendar.
type YearID string

// YearOrder maps a year to its position in the calendar.
// calendar.Calendar is the production implementation.
type YearOrder interface {
	// Sequence returns the ordering number of the year, false if unknown.
	Sequence(id YearID) (int, bool)
}

type ScopeType string

const (
	ScopeSpecificYear    ScopeType = "specific_year"
	ScopeFromYearOnwards ScopeType = "from_year_onwards"
	ScopeYearRange       ScopeType = "year_range"
	ScopeIndefinite      ScopeType = "immediate_indefinite" // disablement only
)

// TemporalScope is the effective-period rule carried by adjustments and
// disablements. The zero value covers nothing.
type TemporalScope struct {
	Type        ScopeType
	StartYearID YearID
	EndYearID   YearID // only for ScopeYearRange
}

func SpecificYear(id YearID) TemporalScope {
	return TemporalScope{Type: ScopeSpecificYear, StartYearID: id}
}

func FromYearOnwards(id YearID) TemporalScope {
	return TemporalScope{Type: ScopeFromYearOnwards, StartYearID: id}
}

func YearRange(start, end YearID) TemporalScope {
	return TemporalScope{Type: ScopeYearRange, StartYearID: start, EndYearID: end}
}

func Indefinite() TemporalScope {
	return TemporalScope{Type: ScopeIndefinite}
}

// Covers reports whether the scope applies to the target year.
//
// specific_year compares identities, the other types compare sequences.
// Any year that cannot be resolved makes the scope not apply.
func (s TemporalScope) Covers(target YearID, order YearOrder) bool {
	switch s.Type {
	case ScopeIndefinite:
		return true

	case ScopeSpecificYear:
		return target != "" && target == s.StartYearID

	case ScopeFromYearOnwards:
		if order == nil {
			return false
		}
		t, ok := order.Sequence(target)
		if !ok {
			return false
		}
		start, ok := order.Sequence(s.StartYearID)
		return ok && t >= start

	case ScopeYearRange:
		if order == nil {
			return false
		}
		t, ok := order.Sequence(target)
		if !ok {
			return false
		}
		start, ok := order.Sequence(s.StartYearID)
		if !ok {
			return false
		}
		end, ok := order.Sequence(s.EndYearID)
		return ok && start <= t && t <= end

	default:
		return false
	}
}

// Validate checks the structural invariants of the scope: a start year for
// every year-based type and an end year exactly when the type is year_range.
func (s TemporalScope) Validate() error {
	switch s.Type {
	case ScopeIndefinite:
		if s.StartYearID != "" || s.EndYearID != "" {
			return &ScopeError{Scope: s, Reason: "indefinite scope takes no years"}
		}
		return nil
	case ScopeSpecificYear, ScopeFromYearOnwards:
		if s.StartYearID == "" {
			return &ScopeError{Scope: s, Reason: "start year is required"}
		}
		if s.EndYearID != "" {
			return &ScopeError{Scope: s, Reason: "end year is only allowed for year_range"}
		}
		return nil
	case ScopeYearRange:
		if s.StartYearID == "" || s.EndYearID == "" {
			return &ScopeError{Scope: s, Reason: "year_range needs start and end years"}
		}
		return nil
	default:
		return &ScopeError{Scope: s, Reason: fmt.Sprintf("unknown scope type %q", s.Type)}
	}
}

// ValidateOrder additionally checks that referenced years exist and that a
// range does not end before it starts.
func (s TemporalScope) ValidateOrder(order YearOrder) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Type == ScopeIndefinite {
		return nil
	}
	start, ok := order.Sequence(s.StartYearID)
	if !ok {
		return &ReferenceError{Kind: "year", ID: string(s.StartYearID), Err: ErrYearNotFound}
	}
	if s.Type != ScopeYearRange {
		return nil
	}
	end, ok := order.Sequence(s.EndYearID)
	if !ok {
		return &ReferenceError{Kind: "year", ID: string(s.EndYearID), Err: ErrYearNotFound}
	}
	if end < start {
		return &ScopeError{Scope: s, Reason: "range ends before it starts"}
	}
	return nil
}

func (s TemporalScope) String() string {
	switch s.Type {
	case ScopeIndefinite:
		return "indefinite"
	case ScopeSpecificYear:
		return "year " + string(s.StartYearID)
	case ScopeFromYearOnwards:
		return "from " + string(s.StartYearID)
	case ScopeYearRange:
		return "[" + string(s.StartYearID) + ", " + string(s.EndYearID) + "]"
	default:
		return "none"
	}
}
