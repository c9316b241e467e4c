/*
handlers_test.go - HTTP tests for the fee API

Tests for:
- Actor attribution on every mutation
- Fee creation, adjustments and quotes
- Error mapping (400, 404, 409)
- Disable / enable, discounts, statements, audit and imports
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/logsvc"
	"github.com/Mukisa95/Trinity-Family-school-sub002/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testActor = "bursar-1"

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := fees.NewService(store, store, logsvc.Discard())
	return NewHandler(svc, logsvc.Discard())
}

func setupTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	return NewRouter(setupTestHandler(t), nil)
}

func do(t *testing.T, router http.Handler, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func seedCalendar(t *testing.T, router http.Handler) {
	t.Helper()
	for _, y := range []map[string]any{
		{"id": "2023", "name": "2023"},
		{"id": "2024", "name": "2024", "terms": []map[string]any{
			{"id": "2024-t1", "name": "Term 1", "start": "2024-02-05", "end": "2024-04-26", "is_current": true},
		}},
		{"id": "2025", "name": "2025"},
	} {
		rec := do(t, router, http.MethodPost, "/api/years", testActor, y)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func seedTuition(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/fees", testActor, map[string]any{
		"id": "tuition", "name": "Tuition", "amount": "100000", "category": "Tuition", "class_ids": []string{"p1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestSaveYear_AndList(t *testing.T) {
	router := setupTestRouter(t)
	seedCalendar(t, router)

	rec := do(t, router, http.MethodGet, "/api/years", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	years := decodeBody[[]YearDTO](t, rec)
	require.Len(t, years, 3)
	assert.Equal(t, 2023, years[0].Sequence)
	require.Len(t, years[1].Terms, 1)
	assert.True(t, years[1].Terms[0].IsCurrent)

	// Non-numeric names need an explicit sequence
	rec = do(t, router, http.MethodPost, "/api/years", testActor, map[string]any{"id": "x", "name": "2026/27"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/years", testActor, map[string]any{"id": "x", "name": "2026/27", "sequence": 2026})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate sequence
	rec = do(t, router, http.MethodPost, "/api/years", testActor, map[string]any{"id": "y", "name": "2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ACTOR ATTRIBUTION
// =============================================================================

func TestMutations_RequireActorHeader(t *testing.T) {
	// GIVEN: A fee
	// WHEN: Mutations are sent without X-Actor-ID
	// THEN: Each is rejected with 400 and nothing changes

	router := setupTestRouter(t)
	seedCalendar(t, router)
	seedTuition(t, router)

	tests := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/years", map[string]any{"id": "2030", "name": "2030"}},
		{http.MethodPost, "/api/fees", map[string]any{"name": "x", "amount": "1", "category": "Other"}},
		{http.MethodPost, "/api/fees/tuition/adjustments", map[string]any{
			"adjustment_type": "increase", "amount": "1", "effective_period_type": "specific_year", "start_year_id": "2024"}},
		{http.MethodPost, "/api/fees/tuition/disable", map[string]any{"disable_type": "immediate_indefinite", "reason": "x"}},
		{http.MethodPost, "/api/fees/tuition/enable", nil},
		{http.MethodPost, "/api/calendar/reconcile", nil},
		{http.MethodPost, "/api/import/schedule", `{}`},
		{http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "price-history"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, router, http.MethodGet, "/api/fees/tuition/adjustments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]AdjustmentDTO](t, rec))
}

// =============================================================================
// FEES AND QUOTES
// =============================================================================

func TestAdjustments_AndQuote(t *testing.T) {
	// GIVEN: Tuition at 100,000
	// WHEN: +20,000 from 2024 and -5,000 for 2024 only are posted
	// THEN: The 2024 quote is 115,000 with a two-step breakdown

	router := setupTestRouter(t)
	seedCalendar(t, router)
	seedTuition(t, router)

	rec := do(t, router, http.MethodPost, "/api/fees/tuition/adjustments", testActor, map[string]any{
		"adjustment_type": "increase", "amount": "20000", "effective_period_type": "from_year_onwards", "start_year_id": "2024",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	adj := decodeBody[AdjustmentDTO](t, rec)
	assert.Equal(t, testActor, adj.CreatedBy)
	assert.Equal(t, "from_year_onwards", adj.Scope.Type)

	rec = do(t, router, http.MethodPost, "/api/fees/tuition/adjustments", testActor, map[string]any{
		"adjustment_type": "decrease", "amount": "5000", "effective_period_type": "specific_year", "start_year_id": "2024",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/fees/tuition/quote?year_id=2024", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decodeBody[QuoteDTO](t, rec)
	assert.Equal(t, "115000", q.Amount.Amount)
	assert.Equal(t, "charge", q.Amount.Direction)
	assert.Equal(t, "100000", q.Base.Amount)
	assert.True(t, q.Active)
	assert.Len(t, q.Breakdown, 2)

	rec = do(t, router, http.MethodGet, "/api/fees/tuition/quote?year_id=2025", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "120000", decodeBody[QuoteDTO](t, rec).Amount.Amount)

	// Term and default year
	rec = do(t, router, http.MethodGet, "/api/fees/tuition/quote?term_id=2024-t1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024", decodeBody[QuoteDTO](t, rec).YearID)

	rec = do(t, router, http.MethodGet, "/api/fees/tuition/quote", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024", decodeBody[QuoteDTO](t, rec).YearID)
}

func TestErrorMapping(t *testing.T) {
	router := setupTestRouter(t)
	seedCalendar(t, router)
	seedTuition(t, router)

	// 404: unknown fee, year, term
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/fees/missing", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/fees/tuition/quote?year_id=1999", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/fees/tuition/quote?term_id=nope", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/fees/missing/history", "", nil).Code)

	// 400 with field details
	rec := do(t, router, http.MethodPost, "/api/fees", testActor, map[string]any{"amount": "abc", "category": "Other"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	fields := map[string]bool{}
	for _, f := range resp.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["amount"])

	// 400 on malformed JSON
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/fees", testActor, `{"name":`).Code)

	// 400 on a range that runs backwards
	rec = do(t, router, http.MethodPost, "/api/fees/tuition/adjustments", testActor, map[string]any{
		"adjustment_type": "increase", "amount": "1", "effective_period_type": "year_range",
		"start_year_id": "2025", "end_year_id": "2023",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 409 on duplicate fee and replayed idempotency key
	rec = do(t, router, http.MethodPost, "/api/fees", testActor, map[string]any{
		"id": "tuition", "name": "Tuition", "amount": "1", "category": "Tuition",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	body := map[string]any{
		"adjustment_type": "increase", "amount": "1", "effective_period_type": "specific_year", "start_year_id": "2024",
	}
	req := httptest.NewRequest(http.MethodPost, "/api/fees/tuition/adjustments", strings.NewReader(`{"adjustment_type":"increase","amount":"1","effective_period_type":"specific_year","start_year_id":"2024"}`))
	req.Header.Set(ActorHeader, testActor)
	req.Header.Set("Idempotency-Key", "retry-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body["idempotency_key"] = "retry-1"
	rec = do(t, router, http.MethodPost, "/api/fees/tuition/adjustments", testActor, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// DISABLE / ENABLE
// =============================================================================

func TestDisableEnable(t *testing.T) {
	router := setupTestRouter(t)
	seedCalendar(t, router)
	seedTuition(t, router)

	rec := do(t, router, http.MethodPost, "/api/fees/tuition/disable", testActor, map[string]any{
		"disable_type": "year_range", "start_year_id": "2023", "end_year_id": "2024", "reason": "renovation",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fee := decodeBody[FeeDTO](t, rec)
	assert.Equal(t, "disabled", fee.Status)
	require.NotNil(t, fee.Disablement)
	assert.Equal(t, "year_range", fee.Disablement.Scope.Type)

	rec = do(t, router, http.MethodGet, "/api/fees/tuition/quote?year_id=2024", "", nil)
	assert.False(t, decodeBody[QuoteDTO](t, rec).Active)
	rec = do(t, router, http.MethodGet, "/api/fees/tuition/quote?year_id=2025", "", nil)
	assert.True(t, decodeBody[QuoteDTO](t, rec).Active)

	rec = do(t, router, http.MethodPost, "/api/fees/tuition/enable", "deputy-head", map[string]any{"reason": "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "active", decodeBody[FeeDTO](t, rec).Status)

	// Already active
	rec = do(t, router, http.MethodPost, "/api/fees/tuition/enable", testActor, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/fees/tuition/history", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]DisableEventDTO](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "disable", history[0].Action)
	assert.Equal(t, "enable", history[1].Action)
	assert.Equal(t, "deputy-head", history[1].ActorID)
}

// =============================================================================
// DISCOUNTS AND STATEMENTS
// =============================================================================

func TestDiscount_AndStatement(t *testing.T) {
	// GIVEN: Tuition at 100,000 and a 10,000 sibling discount
	// WHEN: Resolving the discount and the p1 statement for 2024
	// THEN: Net is 90,000 in both

	router := setupTestRouter(t)
	seedCalendar(t, router)
	seedTuition(t, router)

	rec := do(t, router, http.MethodPost, "/api/fees", testActor, map[string]any{
		"id": "sibling", "name": "Sibling", "amount": "-10000", "category": "Discount", "linked_fee_id": "tuition",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "credit", decodeBody[FeeDTO](t, rec).Amount.Direction)

	rec = do(t, router, http.MethodGet, "/api/fees/sibling/discount?year_id=2024", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := decodeBody[DiscountDTO](t, rec)
	assert.Equal(t, "tuition", d.LinkedFeeID)
	assert.Equal(t, "100000", d.LinkedAmount.Amount)
	assert.Equal(t, "90000", d.NetAmount.Amount)

	// Not a discount
	rec = do(t, router, http.MethodGet, "/api/fees/tuition/discount?year_id=2024", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Discount linked to a missing fee
	rec = do(t, router, http.MethodPost, "/api/fees", testActor, map[string]any{
		"name": "Orphan", "amount": "1", "category": "Discount", "linked_fee_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/statements?year_id=2024&class_id=p1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeBody[StatementDTO](t, rec)
	assert.Len(t, st.Lines, 2)
	assert.Equal(t, "100000", st.TotalCharges.Amount)
	assert.Equal(t, "10000", st.TotalCredits.Amount)
	assert.Equal(t, "90000", st.Net.Signed)

	rec = do(t, router, http.MethodGet, "/api/fees?category=Discount", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]FeeDTO](t, rec), 1)
}

// =============================================================================
// AUDIT AND IMPORT
// =============================================================================

func TestAuditLog(t *testing.T) {
	router := setupTestRouter(t)
	seedCalendar(t, router)
	seedTuition(t, router)

	rec := do(t, router, http.MethodGet, "/api/audit?fee_id=tuition", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]AuditEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "fee_created", entries[0].Action)
	assert.Equal(t, testActor, entries[0].ActorID)

	rec = do(t, router, http.MethodGet, "/api/audit?action=year_saved,fee_created", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]AuditEntryDTO](t, rec), 4)
}

func TestImportLegacy(t *testing.T) {
	router := setupTestRouter(t)

	export := `{
		"academicYears": [{"id": "ay-2024", "name": "2024"}, {"id": "ay-2025", "name": "2025"}],
		"feeStructures": [{"id": "tuition", "name": "Tuition", "amount": 100000, "category": "Tuition", "status": "active"}],
		"feeAdjustments": [{"id": "adj-1", "feeItemId": "tuition", "adjustmentType": "increase", "amount": 5000,
		                    "effectivePeriodType": "from_year_onwards", "startYearId": "ay-2025"}]
	}`
	rec := do(t, router, http.MethodPost, "/api/import/legacy", "migration", export)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	counts := decodeBody[map[string]int](t, rec)
	assert.Equal(t, map[string]int{"years": 2, "fees": 1, "adjustments": 1}, counts)

	rec = do(t, router, http.MethodGet, "/api/fees/tuition/quote?year_id=ay-2025", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "105000", decodeBody[QuoteDTO](t, rec).Amount.Amount)

	// Non-numeric legacy names are rejected
	rec = do(t, router, http.MethodPost, "/api/import/legacy", "migration", `{"academicYears": [{"id": "a", "name": "2024/25"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
