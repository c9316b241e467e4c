package fees

import (
	"context"
	"fmt"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// =============================================================================
// READ-ONLY SOURCES
// =============================================================================

type YearSource interface {
	ListYears(ctx context.Context) ([]calendar.AcademicYear, error)
}

type FeeSource interface {
	ListFees(ctx context.Context) ([]FeeItem, error)
}

// AdjustmentSource returns the whole adjustment ledger in append order.
type AdjustmentSource interface {
	ListAdjustments(ctx context.Context) ([]AdjustmentEntry, error)
}

// Versioned exposes a counter bumped on every ledger or state change.
type Versioned interface {
	LedgerVersion(ctx context.Context) (int64, error)
}

// =============================================================================
// SNAPSHOT - One consistent read of everything the resolvers need
// =============================================================================

type Snapshot struct {
	Calendar    *calendar.Calendar
	Fees        []FeeItem
	Adjustments []AdjustmentEntry
	Version     int64

	byID map[FeeID]int
}

// NewSnapshot indexes the inputs. It does not copy them; callers must not
// mutate the slices afterwards.
func NewSnapshot(cal *calendar.Calendar, fees []FeeItem, adjustments []AdjustmentEntry, version int64) *Snapshot {
	s := &Snapshot{
		Calendar:    cal,
		Fees:        fees,
		Adjustments: adjustments,
		Version:     version,
		byID:        make(map[FeeID]int, len(fees)),
	}
	for i, f := range fees {
		s.byID[f.ID] = i
	}
	return s
}

// Source bundles the read interfaces a snapshot is loaded from.
type Source interface {
	YearSource
	FeeSource
	AdjustmentSource
	Versioned
}

// LoadSnapshot reads the version first so a concurrent write can only make
// the snapshot look older than it is, never newer.
func LoadSnapshot(ctx context.Context, src Source) (*Snapshot, error) {
	version, err := src.LedgerVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger version: %w", err)
	}
	years, err := src.ListYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	cal, err := calendar.New(years)
	if err != nil {
		return nil, err
	}
	feeItems, err := src.ListFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	adjustments, err := src.ListAdjustments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	return NewSnapshot(cal, feeItems, adjustments, version), nil
}

func (s *Snapshot) Fee(id FeeID) (FeeItem, bool) {
	i, ok := s.byID[id]
	if !ok {
		return FeeItem{}, false
	}
	return s.Fees[i], true
}

func (s *Snapshot) ResolveAmount(fee FeeItem, target generic.YearID) generic.Money {
	return ResolveAmount(fee, target, s.Adjustments, s.Calendar)
}

func (s *Snapshot) IsActive(fee FeeItem, target generic.YearID) bool {
	return IsActive(fee, target, s.Calendar)
}

func (s *Snapshot) ResolveDiscount(discount FeeItem, target generic.YearID) (DiscountResult, bool) {
	return ResolveDiscount(discount, s.Fees, s.Adjustments, s.Calendar, target)
}

// AdjustmentsFor returns the ledger entries of one fee in append order.
func (s *Snapshot) AdjustmentsFor(id FeeID) []AdjustmentEntry {
	var out []AdjustmentEntry
	for _, a := range s.Adjustments {
		if a.FeeID == id {
			out = append(out, a)
		}
	}
	return out
}
