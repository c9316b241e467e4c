/*
handlers.go - HTTP API handlers for the fee engine

PURPOSE:
  Exposes fee items, their adjustment ledgers, disablement and the
  resolvers via REST API. Handles HTTP request/response, JSON serialization,
  and delegates to fees.Service.

ENDPOINTS:
  Calendar:
    GET    /api/years                      List academic years
    POST   /api/years                      Create or replace a year
    POST   /api/calendar/reconcile         Recompute current term, lock ended years

  Fees:
    GET    /api/fees                       List fee items
    POST   /api/fees                       Create fee item (or discount)
    GET    /api/fees/{id}                  Get fee item
    GET    /api/fees/{id}/adjustments      Adjustment ledger
    POST   /api/fees/{id}/adjustments      Append adjustment
    POST   /api/fees/{id}/disable          Disable for a scope
    POST   /api/fees/{id}/enable           Re-enable
    GET    /api/fees/{id}/history          Enable/disable history

  Resolution:
    GET    /api/fees/{id}/quote            Amount + active flag for ?year_id= or ?term_id=
    GET    /api/fees/{id}/discount         Discount applied to its linked fee
    GET    /api/statements                 All fees for ?year_id&class_id&section_id

  Admin:
    GET    /api/audit                      Audit log (?fee_id, ?actor_id)
    POST   /api/import/schedule            Import a JSON fee schedule
    POST   /api/import/legacy              Import a legacy export
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

ACTOR:
  Every mutation needs the X-Actor-ID header. It is recorded on the
  adjustment, history event and audit entry. Missing header: 400.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (idempotency, duplicate)
  - 500: Internal errors

SECURITY NOTE:
  X-Actor-ID is trusted as sent. Authentication belongs to the gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Mukisa95/Trinity-Family-school-sub002/calendar"
	"github.com/Mukisa95/Trinity-Family-school-sub002/factory"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
	"github.com/Mukisa95/Trinity-Family-school-sub002/logsvc"
	"github.com/Mukisa95/Trinity-Family-school-sub002/validate"
)

// ActorHeader carries the identity of whoever performs a mutation.
const ActorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *fees.Service
	Log     logsvc.Logger

	// Now is the clock used for manual calendar reconciliation.
	Now func() time.Time
}

// NewHandler creates a new handler around the fee service.
func NewHandler(svc *fees.Service, logger logsvc.Logger) *Handler {
	if logger == nil {
		logger = logsvc.Discard()
	}
	return &Handler{
		Service: svc,
		Log:     logger,
		Now:     time.Now,
	}
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListYears returns all academic years in sequence order.
// GET /api/years
func (h *Handler) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.Service.ListYears(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list years", err)
		return
	}
	dtos := make([]YearDTO, 0, len(years))
	for _, y := range years {
		dtos = append(dtos, toYearDTO(y))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveYear creates or replaces an academic year.
// POST /api/years
func (h *Handler) SaveYear(w http.ResponseWriter, r *http.Request) {
	var req SaveYearRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeServiceError(w, "Invalid year", err)
		return
	}

	year := calendar.AcademicYear{
		ID:       generic.YearID(req.ID),
		Name:     req.Name,
		IsLocked: req.IsLocked,
	}
	if req.Sequence != nil {
		year.Sequence = *req.Sequence
	} else {
		seq, err := calendar.ParseSequence(req.Name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "sequence is required for non-numeric year names", err)
			return
		}
		year.Sequence = seq
	}
	for _, t := range req.Terms {
		start, _ := time.Parse("2006-01-02", t.Start)
		end, _ := time.Parse("2006-01-02", t.End)
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "Invalid term", fmt.Errorf("term %s ends before it starts", t.ID))
			return
		}
		year.Terms = append(year.Terms, calendar.Term{
			ID: t.ID, YearID: year.ID, Name: t.Name, Start: start, End: end, IsCurrent: t.IsCurrent,
		})
	}

	if err := h.Service.SaveYear(r.Context(), actorID(r), year); err != nil {
		h.writeServiceError(w, "Failed to save year", err)
		return
	}
	writeJSON(w, http.StatusCreated, toYearDTO(year))
}

// ReconcileCalendar runs calendar maintenance now.
// POST /api/calendar/reconcile
func (h *Handler) ReconcileCalendar(w http.ResponseWriter, r *http.Request) {
	changes, err := h.Service.ReconcileCalendar(r.Context(), actorID(r), h.Now())
	if err != nil {
		h.writeServiceError(w, "Failed to reconcile calendar", err)
		return
	}
	out := make([]map[string]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, map[string]string{
			"year_id": string(c.YearID),
			"term_id": c.TermID,
			"kind":    string(c.Kind),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": out})
}

// =============================================================================
// FEE HANDLERS
// =============================================================================

// ListFees returns all fee items.
// GET /api/fees
func (h *Handler) ListFees(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListFees(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list fees", err)
		return
	}
	category := r.URL.Query().Get("category")
	dtos := make([]FeeDTO, 0, len(items))
	for _, f := range items {
		if category != "" && string(f.Category) != category {
			continue
		}
		dtos = append(dtos, toFeeDTO(f))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFee creates a fee item.
// POST /api/fees
func (h *Handler) CreateFee(w http.ResponseWriter, r *http.Request) {
	var req fees.NewFee
	if !h.decode(w, r, &req) {
		return
	}
	fee, err := h.Service.CreateFee(r.Context(), actorID(r), req)
	if err != nil {
		h.writeServiceError(w, "Failed to create fee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toFeeDTO(fee))
}

// GetFee returns one fee item.
// GET /api/fees/{id}
func (h *Handler) GetFee(w http.ResponseWriter, r *http.Request) {
	fee, err := h.Service.GetFee(r.Context(), feeID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get fee", err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTO(fee))
}

// ListAdjustments returns the fee's adjustment ledger in append order.
// GET /api/fees/{id}/adjustments
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	id := feeID(r)
	if _, err := h.Service.GetFee(r.Context(), id); err != nil {
		h.writeServiceError(w, "Failed to get fee", err)
		return
	}
	entries, err := h.Service.Adjustments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to list adjustments", err)
		return
	}
	dtos := make([]AdjustmentDTO, 0, len(entries))
	for _, a := range entries {
		dtos = append(dtos, toAdjustmentDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddAdjustment appends an adjustment to the fee's ledger.
// POST /api/fees/{id}/adjustments
func (h *Handler) AddAdjustment(w http.ResponseWriter, r *http.Request) {
	var req fees.NewAdjustment
	if !h.decode(w, r, &req) {
		return
	}
	req.FeeID = string(feeID(r))
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	adj, err := h.Service.AddAdjustment(r.Context(), actorID(r), req)
	if err != nil {
		h.writeServiceError(w, "Failed to add adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// DisableFee suspends a fee for a scope.
// POST /api/fees/{id}/disable
func (h *Handler) DisableFee(w http.ResponseWriter, r *http.Request) {
	var req fees.DisableRequest
	if !h.decode(w, r, &req) {
		return
	}
	fee, err := h.Service.Disable(r.Context(), actorID(r), feeID(r), req)
	if err != nil {
		h.writeServiceError(w, "Failed to disable fee", err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTO(fee))
}

// EnableFee lifts a disablement.
// POST /api/fees/{id}/enable
func (h *Handler) EnableFee(w http.ResponseWriter, r *http.Request) {
	var req EnableRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}
	fee, err := h.Service.Enable(r.Context(), actorID(r), feeID(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, "Failed to enable fee", err)
		return
	}
	writeJSON(w, http.StatusOK, toFeeDTO(fee))
}

// GetHistory returns the fee's enable/disable history.
// GET /api/fees/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.Service.History(r.Context(), feeID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get history", err)
		return
	}
	dtos := make([]DisableEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, toDisableEventDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESOLUTION HANDLERS
// =============================================================================

// GetQuote resolves a fee for a year or term.
// GET /api/fees/{id}/quote?year_id=2024
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, err := h.Service.Quote(r.Context(), feeID(r), generic.YearID(q.Get("year_id")), q.Get("term_id"))
	if err != nil {
		h.writeServiceError(w, "Failed to resolve fee", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(quote))
}

// GetDiscount applies a discount to its linked fee.
// GET /api/fees/{id}/discount?year_id=2024
func (h *Handler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := feeID(r)
	d, err := h.Service.Discount(r.Context(), id, generic.YearID(q.Get("year_id")), q.Get("term_id"))
	if err != nil {
		h.writeServiceError(w, "Failed to resolve discount", err)
		return
	}
	writeJSON(w, http.StatusOK, toDiscountDTO(id, d))
}

// GetStatement lists what a class/section owes in a year.
// GET /api/statements?year_id=2024&class_id=p1
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := h.Service.Statement(r.Context(),
		generic.YearID(q.Get("year_id")), q.Get("term_id"), q.Get("class_id"), q.Get("section_id"))
	if err != nil {
		h.writeServiceError(w, "Failed to build statement", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListAudit returns audit entries, newest first.
// GET /api/audit?fee_id=...&actor_id=...
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter generic.AuditFilter
	if v := q.Get("fee_id"); v != "" {
		filter.FeeID = &v
	}
	if v := q.Get("actor_id"); v != "" {
		filter.ActorID = &v
	}
	if v := q.Get("action"); v != "" {
		for _, a := range strings.Split(v, ",") {
			filter.Actions = append(filter.Actions, generic.AuditAction(strings.TrimSpace(a)))
		}
	}

	entries, err := h.Service.Audit(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "Failed to query audit log", err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toAuditEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ImportSchedule imports a JSON fee schedule.
// POST /api/import/schedule
func (h *Handler) ImportSchedule(w http.ResponseWriter, r *http.Request) {
	h.importWith(w, r, factory.Parse)
}

// ImportLegacy imports an export of the previous system.
// POST /api/import/legacy
func (h *Handler) ImportLegacy(w http.ResponseWriter, r *http.Request) {
	h.importWith(w, r, factory.ParseLegacy)
}

func (h *Handler) importWith(w http.ResponseWriter, r *http.Request, parse func([]byte) (fees.Bundle, error)) {
	actor := actorID(r)
	if actor == "" {
		h.writeServiceError(w, "Failed to import", generic.ErrActorRequired)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	bundle, err := parse(body)
	if err != nil {
		if validate.IsValidation(err) {
			h.writeServiceError(w, "Invalid schedule", err)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid schedule", err)
		return
	}
	if err := h.Service.Import(r.Context(), actor, bundle); err != nil {
		h.writeServiceError(w, "Failed to import", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{
		"years":       len(bundle.Years),
		"fees":        len(bundle.Fees),
		"adjustments": len(bundle.Adjustments),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

func feeID(r *http.Request) fees.FeeID {
	return fees.FeeID(chi.URLParam(r, "id"))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: err.Error(), Fields: verr.Fields})
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.Error(message, err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
