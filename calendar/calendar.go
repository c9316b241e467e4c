/*
Package calendar holds the school's academic years and terms.

PURPOSE:
  Every temporal rule in the fee engine is expressed in academic years.
  The calendar answers "which year is this?" and "does year A come before
  year B?". Ordering uses an explicit integer Sequence on each year; the
  display name ("2024", "2024/25", "Senior Year") is never parsed at
  resolution time.

KEY CONCEPTS:
  - AcademicYear: Sequence-ordered unit of scoping, made of Terms
  - Term: dated sub-period, at most one current per calendar
  - Calendar: immutable, sorted snapshot implementing generic.YearOrder

LEGACY NAMES:
  Documents exported before sequences existed only carry the year name.
  ParseSequence turns a numeric name into a sequence at import time and
  reports an error for anything else, so a bad name is caught once at the
  boundary instead of silently disabling every comparison.

SEE ALSO:
  - generic/scope.go: Uses YearOrder for coverage checks
  - reconcile.go: Current-term and locking maintenance
*/
package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// Term is a dated sub-period of an academic year.
type Term struct {
	ID        string
	YearID    generic.YearID
	Name      string
	Start     time.Time
	End       time.Time
	IsCurrent bool
}

// Contains returns true if t is within [Start, End] by calendar day.
func (t Term) Contains(at time.Time) bool {
	d := day(at)
	return !d.Before(day(t.Start)) && !d.After(day(t.End))
}

// AcademicYear is the unit all fee scoping resolves against.
type AcademicYear struct {
	ID       generic.YearID
	Name     string
	Sequence int
	Terms    []Term
	IsLocked bool
}

// CurrentTerm returns the term flagged current, if any.
func (y AcademicYear) CurrentTerm() (Term, bool) {
	for _, t := range y.Terms {
		if t.IsCurrent {
			return t, true
		}
	}
	return Term{}, false
}

// Bounds returns the earliest term start and latest term end.
// ok is false for a year without terms.
func (y AcademicYear) Bounds() (start, end time.Time, ok bool) {
	for i, t := range y.Terms {
		if i == 0 || t.Start.Before(start) {
			start = t.Start
		}
		if i == 0 || t.End.After(end) {
			end = t.End
		}
	}
	return start, end, len(y.Terms) > 0
}

// ParseSequence derives a sequence from a numeric legacy year name.
// "2024" and " 2024 " parse; "2024/25" and "" do not.
func ParseSequence(name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("year name %q is not numeric: %w", name, err)
	}
	return n, nil
}

// =============================================================================
// CALENDAR - Sorted, read-only snapshot
// =============================================================================

// Calendar is an immutable view of the academic years, sorted by Sequence.
// Safe for concurrent use.
type Calendar struct {
	years    []AcademicYear
	byID     map[generic.YearID]int
	termYear map[string]generic.YearID
}

var _ generic.YearOrder = (*Calendar)(nil)

// New builds a calendar. Sequences must be unique: they are the total order
// every from_year_onwards and year_range rule relies on.
func New(years []AcademicYear) (*Calendar, error) {
	sorted := make([]AcademicYear, len(years))
	copy(sorted, years)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	c := &Calendar{
		years:    sorted,
		byID:     make(map[generic.YearID]int, len(sorted)),
		termYear: make(map[string]generic.YearID),
	}
	for i, y := range sorted {
		if i > 0 && sorted[i-1].Sequence == y.Sequence {
			return nil, fmt.Errorf("years %q and %q share sequence %d: %w",
				sorted[i-1].ID, y.ID, y.Sequence, generic.ErrDuplicateYear)
		}
		if _, dup := c.byID[y.ID]; dup {
			return nil, fmt.Errorf("year id %q appears twice: %w", y.ID, generic.ErrDuplicateYear)
		}
		c.byID[y.ID] = i
		for _, t := range y.Terms {
			c.termYear[t.ID] = y.ID
		}
	}
	return c, nil
}

// MustNew is New for tests and fixtures.
func MustNew(years ...AcademicYear) *Calendar {
	c, err := New(years)
	if err != nil {
		panic(err)
	}
	return c
}

// Sequence implements generic.YearOrder.
func (c *Calendar) Sequence(id generic.YearID) (int, bool) {
	if c == nil {
		return 0, false
	}
	i, ok := c.byID[id]
	if !ok {
		return 0, false
	}
	return c.years[i].Sequence, true
}

// Year looks up a year by identifier.
func (c *Calendar) Year(id generic.YearID) (AcademicYear, bool) {
	if c == nil {
		return AcademicYear{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return AcademicYear{}, false
	}
	return c.years[i], true
}

// YearOfTerm returns the year owning the term.
func (c *Calendar) YearOfTerm(termID string) (generic.YearID, bool) {
	if c == nil {
		return "", false
	}
	id, ok := c.termYear[termID]
	return id, ok
}

// Years returns all years in sequence order.
func (c *Calendar) Years() []AcademicYear {
	if c == nil {
		return nil
	}
	out := make([]AcademicYear, len(c.years))
	copy(out, c.years)
	return out
}

// Current returns the year holding the current term.
func (c *Calendar) Current() (AcademicYear, bool) {
	if c == nil {
		return AcademicYear{}, false
	}
	for _, y := range c.years {
		if _, ok := y.CurrentTerm(); ok {
			return y, true
		}
	}
	return AcademicYear{}, false
}

// YearAt returns the year with a term containing the given date.
func (c *Calendar) YearAt(at time.Time) (AcademicYear, bool) {
	if c == nil {
		return AcademicYear{}, false
	}
	for _, y := range c.years {
		for _, t := range y.Terms {
			if t.Contains(at) {
				return y, true
			}
		}
	}
	return AcademicYear{}, false
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
