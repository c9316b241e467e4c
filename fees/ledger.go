/*
ledger.go - Append-only adjustment ledger with fee-specific invariants

PURPOSE:
  The adjustment ledger is the history of every change to a fee's price.
  A fee's amount for a year is never stored; it is recomputed from the base
  amount and the ledger by ResolveAmount.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. A wrong adjustment is corrected by
     appending the opposite adjustment.
  2. POSITIVE AMOUNTS: the sign lives in the adjustment type.
  3. WELL-FORMED SCOPES: end year present iff year_range, years exist,
     ranges do not run backwards.
  4. IDEMPOTENT: the same idempotency key is accepted once.
  5. LOCKED YEARS: nothing may start in a locked (closed) year.

The resolver trusts all of the above and checks none of it. This wrapper is
where they are enforced.

SEE ALSO:
  - resolve.go: Consumes the ledger
  - store/sqlite/sqlite.go, store/memory/memory.go: Repository implementations
*/
package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// =============================================================================
// REPOSITORY - Persistence contract for fees, years and ledgers
// =============================================================================

// Repository is implemented by the stores. No method updates or deletes an
// adjustment or a history event.
type Repository interface {
	Source

	// GetFee returns nil, nil when the fee does not exist.
	GetFee(ctx context.Context, id FeeID) (*FeeItem, error)
	SaveFee(ctx context.Context, fee FeeItem) error
	SaveYear(ctx context.Context, year calendar.AcademicYear) error

	// AppendAdjustment fails with generic.ErrDuplicateIdempotencyKey on replays,
	// whether the repeated field is the entry ID or the idempotency key.
	AppendAdjustment(ctx context.Context, adj AdjustmentEntry) error
	AdjustmentExists(ctx context.Context, idempotencyKey string) (bool, error)

	// RecordDisablement replaces the fee's current state and appends the
	// history event in one transaction. Events are keyed by ID: recording
	// the same event twice keeps one copy.
	RecordDisablement(ctx context.Context, id FeeID, state Disablement, event DisableEvent) error
	History(ctx context.Context, id FeeID) ([]DisableEvent, error)
}

// =============================================================================
// ADJUSTMENT LEDGER
// =============================================================================

type AdjustmentLedger struct {
	repo Repository
}

func NewAdjustmentLedger(repo Repository) *AdjustmentLedger {
	return &AdjustmentLedger{repo: repo}
}

// Append validates adj against the calendar and persists it. An entry whose
// scope starts in a locked year is rejected.
func (l *AdjustmentLedger) Append(ctx context.Context, adj AdjustmentEntry, cal *calendar.Calendar) error {
	return l.append(ctx, adj, cal, true)
}

// Replay persists an entry recorded elsewhere, such as a legacy export. It
// runs every check of Append except the locked-year rule: the year was open
// when the entry was made.
func (l *AdjustmentLedger) Replay(ctx context.Context, adj AdjustmentEntry, cal *calendar.Calendar) error {
	return l.append(ctx, adj, cal, false)
}

func (l *AdjustmentLedger) append(ctx context.Context, adj AdjustmentEntry, cal *calendar.Calendar, checkLock bool) error {
	if err := adj.Validate(); err != nil {
		return err
	}

	fee, err := l.repo.GetFee(ctx, adj.FeeID)
	if err != nil {
		return err
	}
	if fee == nil {
		return &generic.ReferenceError{Kind: "fee", ID: string(adj.FeeID), Err: generic.ErrFeeNotFound}
	}

	if err := adj.Scope.ValidateOrder(cal); err != nil {
		return err
	}
	if start, ok := cal.Year(adj.Scope.StartYearID); checkLock && ok && start.IsLocked {
		return &generic.ReferenceError{Kind: "year", ID: string(start.ID), Err: generic.ErrYearLocked}
	}

	if adj.IdempotencyKey != "" {
		exists, err := l.repo.AdjustmentExists(ctx, adj.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return generic.ErrDuplicateIdempotencyKey
		}
	}

	if err := l.repo.AppendAdjustment(ctx, adj); err != nil {
		if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			return err
		}
		return fmt.Errorf("append adjustment %s: %w", adj.ID, err)
	}
	return nil
}

// Entries returns the ledger of one fee in append order.
func (l *AdjustmentLedger) Entries(ctx context.Context, id FeeID) ([]AdjustmentEntry, error) {
	all, err := l.repo.ListAdjustments(ctx)
	if err != nil {
		return nil, err
	}
	var out []AdjustmentEntry
	for _, a := range all {
		if a.FeeID == id {
			out = append(out, a)
		}
	}
	return out, nil
}
