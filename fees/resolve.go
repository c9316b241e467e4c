/*
resolve.go - Fee amount, active status and discount resolution

PURPOSE:
  Answers three questions for a fee and a target academic year:
    1. What is the amount after adjustments?       ResolveAmount
    2. Does the fee apply at all?                  IsActive
    3. What does a discount leave of its fee?      ResolveDiscount

KEY INSIGHT:
  Adjustments compound in creation order. A later decrease applies on top
  of an earlier increase, not on the original base in isolation. Since the
  fold is a plain sum the order does not change the total, but it does
  define the running amount shown in breakdowns (Breakdown).

EXAMPLE:
  Base 100,000. A: +20,000 from 2024 onwards (created Jan). B: -5,000 for
  2024 only (created Jun).
    2024: 100,000 + 20,000 - 5,000 = 115,000
    2025: 100,000 + 20,000         = 120,000

FAILURE MODES:
  None. Every function is total: unknown years, missing links and malformed
  entries degrade to "does not apply" or to the unadjusted base amount.
  These run in display paths where an answer beats a crash.

CONCURRENCY:
  Pure functions over their arguments. No locks, no shared state.

SEE ALSO:
  - generic/scope.go: TemporalScope.Covers, the shared year predicate
  - cache.go: Memoization keyed by ledger version
*/
package fees

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// =============================================================================
// EFFECTIVE AMOUNT
// =============================================================================

// ResolveAmount returns fee's amount in the target year after applying every
// adjustment that covers it. An empty or unknown target returns the base.
// The result is not clamped: enough decreases yield a credit.
func ResolveAmount(fee FeeItem, target generic.YearID, adjustments []AdjustmentEntry, order generic.YearOrder) generic.Money {
	amount := fee.Amount
	for _, adj := range ApplicableAdjustments(fee, target, adjustments, order) {
		amount = amount.AddSigned(adj.Delta())
	}
	return amount
}

// ApplicableAdjustments returns the adjustments of fee covering the target
// year, ordered by creation time. Entries created at the same instant keep
// their ledger order.
func ApplicableAdjustments(fee FeeItem, target generic.YearID, adjustments []AdjustmentEntry, order generic.YearOrder) []AdjustmentEntry {
	if target == "" || order == nil {
		return nil
	}
	if _, ok := order.Sequence(target); !ok {
		return nil
	}

	var selected []AdjustmentEntry
	for _, adj := range adjustments {
		if adj.FeeID != fee.ID {
			continue
		}
		if !adjustmentScope(adj.Scope.Type) {
			continue
		}
		if adj.Scope.Covers(target, order) {
			selected = append(selected, adj)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].CreatedAt.Before(selected[j].CreatedAt)
	})
	return selected
}

// BreakdownLine is one step of the running amount.
type BreakdownLine struct {
	Adjustment AdjustmentEntry
	Before     generic.Money
	After      generic.Money
}

// Breakdown replays ResolveAmount step by step for display.
func Breakdown(fee FeeItem, target generic.YearID, adjustments []AdjustmentEntry, order generic.YearOrder) []BreakdownLine {
	applicable := ApplicableAdjustments(fee, target, adjustments, order)
	lines := make([]BreakdownLine, 0, len(applicable))
	running := fee.Amount
	for _, adj := range applicable {
		next := running.AddSigned(adj.Delta())
		lines = append(lines, BreakdownLine{Adjustment: adj, Before: running, After: next})
		running = next
	}
	return lines
}

// =============================================================================
// ACTIVE STATUS
// =============================================================================

// IsActive reports whether the fee applies in the target year.
//
// Only the current disablement record is consulted. An enabled fee is active
// no matter what its history says. A disabled fee is inactive where its
// scope covers the target: always for immediate_indefinite, from the start
// year on for from_year_onwards, and inside the window for year_range.
func IsActive(fee FeeItem, target generic.YearID, order generic.YearOrder) bool {
	if !fee.State.Disabled {
		return true
	}
	if !disableScope(fee.State.Scope.Type) {
		// A disabled record without a usable scope is treated as indefinite.
		return false
	}
	return !fee.State.Scope.Covers(target, order)
}

// StateFromHistory derives the current disablement record from a legacy
// status flag and its history log. The status flag wins; the latest history
// entry only supplies the scope and reason of a disabled fee.
func StateFromHistory(status Status, history []DisableEvent) Disablement {
	if status != StatusDisabled {
		return Disablement{}
	}
	if len(history) == 0 {
		return Disablement{Disabled: true, Scope: generic.Indefinite()}
	}
	latest := history[len(history)-1]
	scope := latest.Scope
	if latest.Action == ActionEnable || !disableScope(scope.Type) {
		scope = generic.Indefinite()
	}
	return Disablement{
		Disabled: true,
		Scope:    scope,
		Since:    latest.At,
		Reason:   latest.Reason,
	}
}

// =============================================================================
// DISCOUNT
// =============================================================================

// DiscountResult is the outcome of applying a discount to its linked fee.
type DiscountResult struct {
	LinkedFee    FeeItem
	LinkedAmount generic.Money
	NetAmount    generic.Money
}

// ResolveDiscount applies discount to the fee it links to, in the target year.
// ok is false when discount is not a Discount item or its link is missing.
// The discount's magnitude is subtracted whatever its stored direction.
func ResolveDiscount(discount FeeItem, all []FeeItem, adjustments []AdjustmentEntry, order generic.YearOrder, target generic.YearID) (DiscountResult, bool) {
	if !discount.IsDiscount() || discount.LinkedFeeID == "" {
		return DiscountResult{}, false
	}

	var (
		linked FeeItem
		found  bool
	)
	for _, f := range all {
		if f.ID == discount.LinkedFeeID {
			linked, found = f, true
			break
		}
	}
	if !found {
		return DiscountResult{}, false
	}

	linkedAmount := ResolveAmount(linked, target, adjustments, order)
	net := linkedAmount.AddSigned(discountMagnitude(discount).Neg())
	return DiscountResult{
		LinkedFee:    linked,
		LinkedAmount: linkedAmount,
		NetAmount:    net,
	}, true
}

// discountMagnitude is the amount a discount takes off, always non-negative.
func discountMagnitude(discount FeeItem) decimal.Decimal {
	return discount.Amount.Magnitude.Abs()
}
