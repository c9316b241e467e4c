/*
scenarios.go - Demo fee schedules for testing and demonstrations

PURPOSE:

	Provides pre-built schedules that populate the store with realistic
	data for testing and demos. Each scenario is a JSON fee schedule parsed
	by the factory and imported through fees.Service, so it exercises the
	same validation as real data.

AVAILABLE SCENARIOS:

	price-history:    Tuition raised from 2024 onwards, one-off 2024 rebate
	sibling-discount: Discount linked to tuition
	boarding-break:   Boarding disabled for a two-year range
	term-targeting:   Class and section targeted fees with a current term

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "price-history"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description and schedule JSON

NOTE:

	Loading is additive. Reloading a scenario re-saves its years and fees;
	adjustments are skipped by idempotency key.

SEE ALSO:
  - handlers.go: Import handlers
  - factory/schedule.go: Schedule JSON format
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Mukisa95/Trinity-Family-school-sub002/factory"
	"github.com/Mukisa95/Trinity-Family-school-sub002/fees"
	"github.com/Mukisa95/Trinity-Family-school-sub002/validate"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	schedule string
}

const scenarioCalendar = `
	"years": [
		{"id": "2023", "name": "2023", "terms": [
			{"id": "2023-t1", "name": "Term 1", "start": "2023-02-06", "end": "2023-04-28"},
			{"id": "2023-t2", "name": "Term 2", "start": "2023-05-22", "end": "2023-08-11"},
			{"id": "2023-t3", "name": "Term 3", "start": "2023-09-04", "end": "2023-11-24"}
		]},
		{"id": "2024", "name": "2024", "terms": [
			{"id": "2024-t1", "name": "Term 1", "start": "2024-02-05", "end": "2024-04-26"},
			{"id": "2024-t2", "name": "Term 2", "start": "2024-05-20", "end": "2024-08-09"},
			{"id": "2024-t3", "name": "Term 3", "start": "2024-09-02", "end": "2024-11-22"}
		]},
		{"id": "2025", "name": "2025", "terms": [
			{"id": "2025-t1", "name": "Term 1", "start": "2025-02-03", "end": "2025-04-25", "current": true},
			{"id": "2025-t2", "name": "Term 2", "start": "2025-05-19", "end": "2025-08-08"},
			{"id": "2025-t3", "name": "Term 3", "start": "2025-09-01", "end": "2025-11-21"}
		]},
		{"id": "2026", "name": "2026"}
	]`

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "price-history",
			Name:        "Price History",
			Description: "Tuition raised by 20,000 from 2024 onwards, with a 5,000 rebate for 2024 only",
		},
		schedule: `{` + scenarioCalendar + `,
			"fees": [
				{"id": "tuition-p1", "name": "Tuition P1", "amount": "100000", "category": "Tuition",
				 "class_ids": ["p1"], "is_required": true, "is_recurring": true}
			],
			"adjustments": [
				{"fee_id": "tuition-p1", "adjustment_type": "increase", "amount": "20000",
				 "effective_period_type": "from_year_onwards", "start_year_id": "2024",
				 "reason": "Annual review", "created_at": "2024-01-01T00:00:00Z",
				 "idempotency_key": "scenario:price-history:1"},
				{"fee_id": "tuition-p1", "adjustment_type": "decrease", "amount": "5000",
				 "effective_period_type": "specific_year", "start_year_id": "2024",
				 "reason": "Construction rebate", "created_at": "2024-06-01T00:00:00Z",
				 "idempotency_key": "scenario:price-history:2"}
			]
		}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "sibling-discount",
			Name:        "Sibling Discount",
			Description: "A 10,000 discount linked to P2 tuition, which rises in 2025",
		},
		schedule: `{` + scenarioCalendar + `,
			"fees": [
				{"id": "tuition-p2", "name": "Tuition P2", "amount": "110000", "category": "Tuition",
				 "class_ids": ["p2"], "is_required": true, "is_recurring": true},
				{"id": "sibling-p2", "name": "Sibling discount P2", "amount": "-10000", "category": "Discount",
				 "class_ids": ["p2"], "linked_fee_id": "tuition-p2"}
			],
			"adjustments": [
				{"fee_id": "tuition-p2", "adjustment_type": "increase", "amount": "15000",
				 "effective_period_type": "from_year_onwards", "start_year_id": "2025",
				 "created_at": "2024-12-01T00:00:00Z", "idempotency_key": "scenario:sibling-discount:1"}
			]
		}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "boarding-break",
			Name:        "Boarding Break",
			Description: "Boarding disabled for 2023 to 2024 during renovation, active again in 2025",
		},
		schedule: `{` + scenarioCalendar + `,
			"fees": [
				{"id": "boarding", "name": "Boarding", "amount": "250000", "category": "Boarding",
				 "frequency": "per_term",
				 "disabled": {"disable_type": "year_range", "start_year_id": "2023", "end_year_id": "2024",
				              "reason": "Dormitory renovation", "at": "2022-12-15T00:00:00Z"}},
				{"id": "transport", "name": "Transport", "amount": "60000", "category": "Transport",
				 "disabled": {"disable_type": "from_year_onwards", "start_year_id": "2026",
				              "reason": "Bus contract ends"}}
			],
			"adjustments": [
				{"fee_id": "boarding", "adjustment_type": "increase", "amount": "30000",
				 "effective_period_type": "year_range", "start_year_id": "2025", "end_year_id": "2026",
				 "reason": "New dormitory", "created_at": "2024-10-01T00:00:00Z",
				 "idempotency_key": "scenario:boarding-break:1"}
			]
		}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "term-targeting",
			Name:        "Term Targeting",
			Description: "Exam and uniform fees targeted by class, section and term",
		},
		schedule: `{` + scenarioCalendar + `,
			"fees": [
				{"id": "exam-p7", "name": "PLE registration", "amount": "45000", "category": "Exam",
				 "class_ids": ["p7"], "year_id": "2025", "term_id": "2025-t1", "frequency": "once"},
				{"id": "uniform-day", "name": "Uniform (day)", "amount": "35000", "category": "Uniform",
				 "section_ids": ["day"], "frequency": "per_year"},
				{"id": "uniform-boarding", "name": "Uniform (boarding)", "amount": "55000", "category": "Uniform",
				 "section_ids": ["boarding"], "frequency": "per_year"}
			]
		}`,
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario imports a demo scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeServiceError(w, "Invalid request", err)
		return
	}
	if err := LoadScenario(r.Context(), h.Service, actorID(r), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
			return
		}
		h.writeServiceError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenario imports the named scenario into svc.
func LoadScenario(ctx context.Context, svc *fees.Service, actorID, id string) error {
	for _, s := range scenarios {
		if s.ID != id {
			continue
		}
		bundle, err := factory.Parse([]byte(s.schedule))
		if err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
		return svc.Import(ctx, actorID, bundle)
	}
	return errUnknownScenario
}
