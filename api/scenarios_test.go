/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Years, fees and adjustments are imported
	- Quotes resolve to the documented amounts
	- Disablements apply to the documented years
	- Statements pick up targeted fees

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

func loadScenario(t *testing.T, id string) *Handler {
	t.Helper()
	handler := setupTestHandler(t)
	if err := LoadScenario(context.Background(), handler.Service, testActor, id); err != nil {
		t.Fatalf("Failed to load %s scenario: %v", id, err)
	}
	return handler
}

func quote(t *testing.T, h *Handler, id string, year generic.YearID) fees.Quote {
	t.Helper()
	q, err := h.Service.Quote(context.Background(), fees.FeeID(id), year, "")
	if err != nil {
		t.Fatalf("Failed to quote %s for %s: %v", id, year, err)
	}
	return q
}

func TestScenario_PriceHistory(t *testing.T) {
	// GIVEN: Price history scenario
	// WHEN: Quoting tuition for each year
	// THEN: 2023 is the base, 2024 carries both adjustments, 2025 only the increase

	handler := loadScenario(t, "price-history")

	tests := []struct {
		year generic.YearID
		want string
	}{
		{"2023", "100000"},
		{"2024", "115000"},
		{"2025", "120000"},
		{"2026", "120000"},
	}
	for _, tt := range tests {
		q := quote(t, handler, "tuition-p1", tt.year)
		if got := q.Amount.Magnitude.String(); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.year, tt.want, got)
		}
		if !q.Active {
			t.Errorf("%s: expected tuition to be active", tt.year)
		}
	}

	entries, err := handler.Service.Adjustments(context.Background(), "tuition-p1")
	if err != nil {
		t.Fatalf("Failed to list adjustments: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 adjustments, got %d", len(entries))
	}
}

func TestScenario_SiblingDiscount(t *testing.T) {
	// GIVEN: Sibling discount scenario
	// WHEN: Resolving the discount before and after the tuition rise
	// THEN: The discount follows the linked tuition amount

	handler := loadScenario(t, "sibling-discount")
	ctx := context.Background()

	tests := []struct {
		year         generic.YearID
		linked, want string
	}{
		{"2024", "110000", "100000"},
		{"2025", "125000", "115000"},
	}
	for _, tt := range tests {
		d, err := handler.Service.Discount(ctx, "sibling-p2", tt.year, "")
		if err != nil {
			t.Fatalf("Failed to resolve discount for %s: %v", tt.year, err)
		}
		if got := d.LinkedAmount.Magnitude.String(); got != tt.linked {
			t.Errorf("%s: expected linked amount %s, got %s", tt.year, tt.linked, got)
		}
		if got := d.NetAmount.Magnitude.String(); got != tt.want {
			t.Errorf("%s: expected net %s, got %s", tt.year, tt.want, got)
		}
	}

	q := quote(t, handler, "sibling-p2", "2025")
	if q.Discount == nil {
		t.Fatal("Expected quote of a discount to carry the discount result")
	}
	if !q.Amount.IsCredit() {
		t.Errorf("Expected discount amount to be a credit, got %s", q.Amount.Direction)
	}
}

func TestScenario_BoardingBreak(t *testing.T) {
	// GIVEN: Boarding break scenario
	// WHEN: Checking boarding and transport across years
	// THEN: Each is inactive exactly in its disabled years

	handler := loadScenario(t, "boarding-break")

	tests := []struct {
		fee    string
		year   generic.YearID
		active bool
	}{
		{"boarding", "2023", false},
		{"boarding", "2024", false},
		{"boarding", "2025", true},
		{"transport", "2025", true},
		{"transport", "2026", false},
	}
	for _, tt := range tests {
		if got := quote(t, handler, tt.fee, tt.year).Active; got != tt.active {
			t.Errorf("%s %s: expected active=%v, got %v", tt.fee, tt.year, tt.active, got)
		}
	}

	if got := quote(t, handler, "boarding", "2025").Amount.Magnitude.String(); got != "280000" {
		t.Errorf("Expected boarding 2025 at 280000, got %s", got)
	}

	fee, err := handler.Service.GetFee(context.Background(), "boarding")
	if err != nil {
		t.Fatalf("Failed to get boarding: %v", err)
	}
	if !fee.State.Disabled || fee.State.Scope.Type != generic.ScopeYearRange {
		t.Errorf("Expected boarding disabled for a year range, got %+v", fee.State)
	}
}

func TestScenario_TermTargeting(t *testing.T) {
	// GIVEN: Term targeting scenario
	// WHEN: Building the statement for a P7 boarder in term 1 of 2025
	// THEN: The exam and boarding uniform are listed, the day uniform is not

	handler := loadScenario(t, "term-targeting")

	st, err := handler.Service.Statement(context.Background(), "", "2025-t1", "p7", "boarding")
	if err != nil {
		t.Fatalf("Failed to build statement: %v", err)
	}
	if st.YearID != "2025" {
		t.Errorf("Expected year 2025, got %s", st.YearID)
	}
	got := map[fees.FeeID]bool{}
	for _, l := range st.Lines {
		got[l.Fee.ID] = true
	}
	if !got["exam-p7"] || !got["uniform-boarding"] || got["uniform-day"] {
		t.Errorf("Unexpected statement lines: %v", got)
	}
	if total := st.TotalCharges.Magnitude.String(); total != "100000" {
		t.Errorf("Expected total charges 100000, got %s", total)
	}

	// Term 2 leaves the term 1 exam out
	st, err = handler.Service.Statement(context.Background(), "", "2025-t2", "p7", "boarding")
	if err != nil {
		t.Fatalf("Failed to build statement: %v", err)
	}
	if len(st.Lines) != 1 {
		t.Errorf("Expected 1 line in term 2, got %d", len(st.Lines))
	}
}

func TestScenario_ReloadIsIdempotent(t *testing.T) {
	handler := loadScenario(t, "price-history")
	if err := LoadScenario(context.Background(), handler.Service, testActor, "price-history"); err != nil {
		t.Fatalf("Failed to reload scenario: %v", err)
	}

	entries, err := handler.Service.Adjustments(context.Background(), "tuition-p1")
	if err != nil {
		t.Fatalf("Failed to list adjustments: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 adjustments after reload, got %d", len(entries))
	}
	if got := quote(t, handler, "tuition-p1", "2024").Amount.Magnitude.String(); got != "115000" {
		t.Errorf("Expected 115000 after reload, got %s", got)
	}
}

func TestScenario_Unknown(t *testing.T) {
	handler := setupTestHandler(t)

	err := LoadScenario(context.Background(), handler.Service, testActor, "nope")
	if !errors.Is(err, errUnknownScenario) {
		t.Errorf("Expected errUnknownScenario, got %v", err)
	}

	router := NewRouter(handler, nil)
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", testActor, map[string]any{"scenario_id": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	rec = do(t, router, http.MethodPost, "/api/scenarios/load", testActor, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without scenario_id, got %d", rec.Code)
	}
}

func TestScenario_ListAndLoadViaAPI(t *testing.T) {
	router := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	list := decodeBody[[]ScenarioDTO](t, rec)
	if len(list) != len(scenarios) {
		t.Errorf("Expected %d scenarios, got %d", len(scenarios), len(list))
	}

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", testActor, map[string]any{"scenario_id": "boarding-break"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodGet, "/api/fees/boarding/history", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if history := decodeBody[[]DisableEventDTO](t, rec); len(history) == 0 {
		t.Error("Expected boarding to carry a disable event")
	}
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestScheduler_RunOnce(t *testing.T) {
	// GIVEN: The scenario calendar with term 1 of 2025 marked current
	// WHEN: The scheduler runs in June 2025
	// THEN: Term 2 becomes current and 2023 and 2024 are locked

	handler := loadScenario(t, "price-history")
	scheduler := NewCalendarScheduler(handler.Service, nil)
	scheduler.Now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }

	if n := scheduler.RunOnce(context.Background()); n != 4 {
		t.Errorf("Expected 4 changes, got %d", n)
	}
	if n := scheduler.RunOnce(context.Background()); n != 0 {
		t.Errorf("Expected second run to change nothing, got %d", n)
	}

	years, err := handler.Service.ListYears(context.Background())
	if err != nil {
		t.Fatalf("Failed to list years: %v", err)
	}
	for _, y := range years {
		wantLocked := y.ID == "2023" || y.ID == "2024"
		if y.IsLocked != wantLocked {
			t.Errorf("%s: expected locked=%v, got %v", y.ID, wantLocked, y.IsLocked)
		}
	}

	// Locked years reject new adjustments
	_, err = handler.Service.AddAdjustment(context.Background(), testActor, fees.NewAdjustment{
		FeeID: "tuition-p1", Type: "increase", Amount: "1", PeriodType: "specific_year", StartYearID: "2024",
	})
	if !errors.Is(err, generic.ErrYearLocked) {
		t.Errorf("Expected ErrYearLocked, got %v", err)
	}

	entries, err := handler.Service.Audit(context.Background(), generic.AuditFilter{
		Actions: []generic.AuditAction{generic.AuditCalendarReconcile},
	})
	if err != nil {
		t.Fatalf("Failed to query audit: %v", err)
	}
	if len(entries) != 1 || entries[0].ActorID != SchedulerActor {
		t.Errorf("Expected one reconcile entry by %s, got %+v", SchedulerActor, entries)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	handler := loadScenario(t, "price-history")
	scheduler := NewCalendarScheduler(handler.Service, nil)
	scheduler.CheckInterval = time.Hour
	scheduler.Now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }

	scheduler.Start()
	scheduler.Start() // no second goroutine
	scheduler.Stop()

	// The first pass runs before Stop returns
	years, err := handler.Service.ListYears(context.Background())
	if err != nil {
		t.Fatalf("Failed to list years: %v", err)
	}
	if !years[0].IsLocked {
		t.Errorf("Expected %s to be locked after the first pass", years[0].ID)
	}

	disabled := NewCalendarScheduler(handler.Service, nil)
	disabled.Enabled = false
	disabled.Start()
	disabled.Stop()
}

func TestScheduler_Restart(t *testing.T) {
	// GIVEN: A scheduler that was started and stopped
	// WHEN: It is started again with a short interval
	// THEN: It keeps ticking until the next Stop

	handler := loadScenario(t, "price-history")
	scheduler := NewCalendarScheduler(handler.Service, nil)
	scheduler.CheckInterval = 5 * time.Millisecond

	var runs atomic.Int64
	scheduler.Now = func() time.Time {
		runs.Add(1)
		return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	}

	scheduler.Start()
	scheduler.Stop()

	runs.Store(0)
	scheduler.Start()
	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	scheduler.Stop()

	if got := runs.Load(); got < 3 {
		t.Errorf("Expected at least 3 passes after restart, got %d", got)
	}
}

func TestScenario_ReloadKeepsLockedYears(t *testing.T) {
	// GIVEN: The scheduler has locked 2023 and 2024
	// WHEN: The scenario is loaded again
	// THEN: Both years stay locked

	handler := loadScenario(t, "price-history")
	scheduler := NewCalendarScheduler(handler.Service, nil)
	scheduler.Now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	scheduler.RunOnce(context.Background())

	if err := LoadScenario(context.Background(), handler.Service, testActor, "price-history"); err != nil {
		t.Fatalf("Failed to reload scenario: %v", err)
	}

	years, err := handler.Service.ListYears(context.Background())
	if err != nil {
		t.Fatalf("Failed to list years: %v", err)
	}
	for _, y := range years {
		wantLocked := y.ID == "2023" || y.ID == "2024"
		if y.IsLocked != wantLocked {
			t.Errorf("%s: expected locked=%v after reload, got %v", y.ID, wantLocked, y.IsLocked)
		}
	}
}
