/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/years/*       Academic calendar
  /api/calendar/*    Calendar maintenance
  /api/fees/*        Fee items, ledgers, resolution
  /api/statements    Per-class statements
  /api/audit         Audit log
  /api/import/*      Schedule and legacy imports
  /api/scenarios/*   Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultOrigins are allowed when no CORS origins are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader, "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Calendar routes
		r.Route("/years", func(r chi.Router) {
			r.Get("/", h.ListYears)
			r.Post("/", h.SaveYear)
		})
		r.Post("/calendar/reconcile", h.ReconcileCalendar)

		// Fee routes
		r.Route("/fees", func(r chi.Router) {
			r.Get("/", h.ListFees)
			r.Post("/", h.CreateFee)
			r.Get("/{id}", h.GetFee)
			r.Get("/{id}/adjustments", h.ListAdjustments)
			r.Post("/{id}/adjustments", h.AddAdjustment)
			r.Post("/{id}/disable", h.DisableFee)
			r.Post("/{id}/enable", h.EnableFee)
			r.Get("/{id}/history", h.GetHistory)
			r.Get("/{id}/quote", h.GetQuote)
			r.Get("/{id}/discount", h.GetDiscount)
		})

		r.Get("/statements", h.GetStatement)
		r.Get("/audit", h.ListAudit)

		// Import routes
		r.Route("/import", func(r chi.Router) {
			r.Post("/schedule", h.ImportSchedule)
			r.Post("/legacy", h.ImportLegacy)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
