package calendar

import (
	"time"

	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// Change describes one modification made by Reconcile.
type Change struct {
	YearID generic.YearID
	TermID string
	Kind   ChangeKind
}

type ChangeKind string

const (
	ChangeTermCurrent ChangeKind = "term_current"
	ChangeTermCleared ChangeKind = "term_cleared"
	ChangeYearLocked  ChangeKind = "year_locked"
)

// Reconcile recomputes the current-term flags and locks years that have
// ended. It returns only the years that changed, plus what changed in them.
//
// Between terms (no term contains now) the existing current flags are kept,
// so the last term stays current over a holiday.
func Reconcile(years []AcademicYear, now time.Time) ([]AcademicYear, []Change) {
	var (
		changed []AcademicYear
		changes []Change
	)

	currentTermID := ""
	for _, y := range years {
		for _, t := range y.Terms {
			if t.Contains(now) {
				currentTermID = t.ID
			}
		}
	}

	today := day(now)
	for _, y := range years {
		updated := y
		updated.Terms = make([]Term, len(y.Terms))
		copy(updated.Terms, y.Terms)
		dirty := false

		if currentTermID != "" {
			for i, t := range updated.Terms {
				want := t.ID == currentTermID
				if t.IsCurrent == want {
					continue
				}
				updated.Terms[i].IsCurrent = want
				dirty = true
				kind := ChangeTermCleared
				if want {
					kind = ChangeTermCurrent
				}
				changes = append(changes, Change{YearID: y.ID, TermID: t.ID, Kind: kind})
			}
		}

		if _, end, ok := y.Bounds(); ok && !y.IsLocked && day(end).Before(today) {
			updated.IsLocked = true
			dirty = true
			changes = append(changes, Change{YearID: y.ID, Kind: ChangeYearLocked})
		}

		if dirty {
			changed = append(changed, updated)
		}
	}
	return changed, changes
}
