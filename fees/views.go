package fees

import (
	"context"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// =============================================================================
// QUOTE - One fee resolved for one year
// =============================================================================

type Quote struct {
	Fee      FeeItem
	YearID   generic.YearID
	Base     generic.Money
	Amount   generic.Money
	Active   bool
	Lines    []BreakdownLine
	Discount *DiscountResult
}

// Quote resolves a fee for a year or a term. A term resolves to the year it
// belongs to. With neither, the year holding the current term is used; if
// there is none the quote carries the unadjusted base.
func (s *Service) Quote(ctx context.Context, id FeeID, yearID generic.YearID, termID string) (Quote, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Quote{}, err
	}
	fee, ok := snap.Fee(id)
	if !ok {
		return Quote{}, &generic.ReferenceError{Kind: "fee", ID: string(id), Err: generic.ErrFeeNotFound}
	}
	target, err := targetYear(snap.Calendar, yearID, termID)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Fee:    fee,
		YearID: target,
		Base:   fee.Amount,
		Amount: s.cache.Amount(snap, fee, target),
		Active: snap.IsActive(fee, target),
		Lines:  Breakdown(fee, target, snap.Adjustments, snap.Calendar),
	}
	if fee.IsDiscount() {
		if d, ok := snap.ResolveDiscount(fee, target); ok {
			q.Discount = &d
		}
	}
	return q, nil
}

// Discount resolves a discount against its linked fee.
func (s *Service) Discount(ctx context.Context, id FeeID, yearID generic.YearID, termID string) (DiscountResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return DiscountResult{}, err
	}
	fee, ok := snap.Fee(id)
	if !ok {
		return DiscountResult{}, &generic.ReferenceError{Kind: "fee", ID: string(id), Err: generic.ErrFeeNotFound}
	}
	if !fee.IsDiscount() {
		return DiscountResult{}, generic.ErrNotDiscount
	}
	target, err := targetYear(snap.Calendar, yearID, termID)
	if err != nil {
		return DiscountResult{}, err
	}
	d, ok := snap.ResolveDiscount(fee, target)
	if !ok {
		return DiscountResult{}, &generic.ReferenceError{Kind: "linked fee", ID: string(fee.LinkedFeeID), Err: generic.ErrFeeNotFound}
	}
	return d, nil
}

func targetYear(cal *calendar.Calendar, yearID generic.YearID, termID string) (generic.YearID, error) {
	if termID != "" {
		owner, ok := cal.YearOfTerm(termID)
		if !ok {
			return "", &generic.ReferenceError{Kind: "term", ID: termID, Err: generic.ErrTermNotFound}
		}
		if yearID != "" && yearID != owner {
			return "", &generic.ScopeError{
				Scope:  generic.SpecificYear(yearID),
				Reason: "term " + termID + " belongs to year " + string(owner),
			}
		}
		return owner, nil
	}
	if yearID != "" {
		if _, ok := cal.Year(yearID); !ok {
			return "", &generic.ReferenceError{Kind: "year", ID: string(yearID), Err: generic.ErrYearNotFound}
		}
		return yearID, nil
	}
	if y, ok := cal.Current(); ok {
		return y.ID, nil
	}
	return "", nil
}

// =============================================================================
// STATEMENT - Every fee a pupil owes in one year
// =============================================================================

type StatementLine struct {
	Fee    FeeItem
	Amount generic.Money
	Active bool
}

type Statement struct {
	YearID       generic.YearID
	TermID       string
	Lines        []StatementLine
	TotalCharges generic.Money
	TotalCredits generic.Money
	Net          generic.Money
}

// Statement lists the fees targeting a class and section in a year with
// their resolved amounts. Only active lines count towards the totals; a
// discount counts when its linked fee does. Fees pinned to another year or
// term are left out.
func (s *Service) Statement(ctx context.Context, yearID generic.YearID, termID, classID, sectionID string) (Statement, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Statement{}, err
	}
	target, err := targetYear(snap.Calendar, yearID, termID)
	if err != nil {
		return Statement{}, err
	}

	st := Statement{YearID: target, TermID: termID}
	charges := generic.ChargeFromInt(0)
	credits := generic.ChargeFromInt(0)

	counted := make(map[FeeID]bool)
	var discounts []FeeItem
	for _, fee := range snap.Fees {
		if !applies(fee, target, termID, classID, sectionID) {
			continue
		}
		if fee.IsDiscount() {
			discounts = append(discounts, fee)
			continue
		}
		line := StatementLine{
			Fee:    fee,
			Amount: s.cache.Amount(snap, fee, target),
			Active: snap.IsActive(fee, target),
		}
		st.Lines = append(st.Lines, line)
		if !line.Active {
			continue
		}
		counted[fee.ID] = true
		if line.Amount.IsCredit() {
			credits = credits.Plus(line.Amount)
		} else {
			charges = charges.Plus(line.Amount)
		}
	}
	for _, d := range discounts {
		line := StatementLine{
			Fee:    d,
			Amount: generic.Credit(discountMagnitude(d)),
			Active: snap.IsActive(d, target) && counted[d.LinkedFeeID],
		}
		st.Lines = append(st.Lines, line)
		if line.Active {
			credits = credits.Plus(line.Amount)
		}
	}

	st.TotalCharges = charges
	st.TotalCredits = generic.Credit(credits.Magnitude)
	st.Net = charges.Plus(credits)
	return st, nil
}

func applies(fee FeeItem, target generic.YearID, termID, classID, sectionID string) bool {
	if fee.YearID != "" && target != "" && fee.YearID != target {
		return false
	}
	if fee.TermID != "" && termID != "" && fee.TermID != termID {
		return false
	}
	return fee.Targeting.Matches(classID, sectionID)
}
