package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Separate from ledgers, tracks who did what when
// =============================================================================

// AuditEntry records who did what when. ActorID is always a real actor,
// never a placeholder.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	ActorID   string
	Action    AuditAction
	FeeID     string
	Payload   map[string]any
}

type AuditAction string

const (
	AuditFeeCreated        AuditAction = "fee_created"
	AuditAdjustmentAdded   AuditAction = "adjustment_added"
	AuditFeeDisabled       AuditAction = "fee_disabled"
	AuditFeeEnabled        AuditAction = "fee_enabled"
	AuditYearSaved         AuditAction = "year_saved"
	AuditCalendarReconcile AuditAction = "calendar_reconciled"
	AuditScheduleImported  AuditAction = "schedule_imported"
)

// AuditLog stores audit entries. Also append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	FeeID   *string
	ActorID *string
	Actions []AuditAction
	From    *time.Time
	To      *time.Time
}

// Matches reports whether the entry passes the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.FeeID != nil && e.FeeID != *f.FeeID {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}
