// Package memory provides an in-memory fees.Repository and audit log
// (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	years       map[generic.YearID]calendar.AcademicYear
	fees        map[fees.FeeID]fees.FeeItem
	feeOrder    []fees.FeeID
	adjustments []fees.AdjustmentEntry
	adjIDs      map[string]bool
	idempotency map[string]bool
	history     map[fees.FeeID][]fees.DisableEvent
	eventIDs    map[string]bool
	audit       []generic.AuditEntry
	version     int64
}

var (
	_ fees.Repository  = (*Memory)(nil)
	_ generic.AuditLog = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{
		years:       make(map[generic.YearID]calendar.AcademicYear),
		fees:        make(map[fees.FeeID]fees.FeeItem),
		adjIDs:      make(map[string]bool),
		idempotency: make(map[string]bool),
		history:     make(map[fees.FeeID][]fees.DisableEvent),
		eventIDs:    make(map[string]bool),
	}
}

// =============================================================================
// CALENDAR
// =============================================================================

func (m *Memory) SaveYear(_ context.Context, year calendar.AcademicYear) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	year.Terms = append([]calendar.Term(nil), year.Terms...)
	m.years[year.ID] = year
	m.version++
	return nil
}

func (m *Memory) ListYears(_ context.Context) ([]calendar.AcademicYear, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]calendar.AcademicYear, 0, len(m.years))
	for _, y := range m.years {
		y.Terms = append([]calendar.Term(nil), y.Terms...)
		out = append(out, y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// =============================================================================
// FEES
// =============================================================================

func (m *Memory) SaveFee(_ context.Context, fee fees.FeeItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fees[fee.ID]; !ok {
		m.feeOrder = append(m.feeOrder, fee.ID)
	}
	m.fees[fee.ID] = fee
	m.version++
	return nil
}

func (m *Memory) GetFee(_ context.Context, id fees.FeeID) (*fees.FeeItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fees[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// ListFees returns fees in creation order.
func (m *Memory) ListFees(_ context.Context) ([]fees.FeeItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]fees.FeeItem, 0, len(m.feeOrder))
	for _, id := range m.feeOrder {
		out = append(out, m.fees[id])
	}
	return out, nil
}

// =============================================================================
// ADJUSTMENT LEDGER - Append-only
// =============================================================================

// AppendAdjustment rejects a repeated entry ID or idempotency key, like the
// unique columns of the sqlite ledger.
func (m *Memory) AppendAdjustment(_ context.Context, adj fees.AdjustmentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adjIDs[adj.ID] {
		return generic.ErrDuplicateIdempotencyKey
	}
	if adj.IdempotencyKey != "" {
		if m.idempotency[adj.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		m.idempotency[adj.IdempotencyKey] = true
	}
	m.adjIDs[adj.ID] = true
	m.adjustments = append(m.adjustments, adj)
	m.version++
	return nil
}

func (m *Memory) AdjustmentExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func (m *Memory) ListAdjustments(_ context.Context) ([]fees.AdjustmentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]fees.AdjustmentEntry(nil), m.adjustments...), nil
}

// =============================================================================
// DISABLEMENT
// =============================================================================

func (m *Memory) RecordDisablement(_ context.Context, id fees.FeeID, state fees.Disablement, event fees.DisableEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fees[id]
	if !ok {
		return &generic.ReferenceError{Kind: "fee", ID: string(id), Err: generic.ErrFeeNotFound}
	}
	f.State = state
	m.fees[id] = f
	if !m.eventIDs[event.ID] {
		m.eventIDs[event.ID] = true
		m.history[id] = append(m.history[id], event)
	}
	m.version++
	return nil
}

func (m *Memory) History(_ context.Context, id fees.FeeID) ([]fees.DisableEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]fees.DisableEvent(nil), m.history[id]...), nil
}

func (m *Memory) LedgerVersion(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) Append(_ context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// Query returns matching entries, newest first.
func (m *Memory) Query(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		if filter.Matches(m.audit[i]) {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}
