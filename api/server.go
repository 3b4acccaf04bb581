/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for frontend
  5. Authenticate: JWT bearer auth on everything under /api

ROUTE GROUPS:
  /api/requests/*   Leave request lifecycle
  /api/staff/*      Balance summaries
  /api/holidays/*   Public holiday calendar
  /api/admin/*      Rollover and manual credits
  /healthz          Unauthenticated liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Bearer authentication
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// API routes, all authenticated
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(jwtSecret))

		// Request lifecycle
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SubmitRequest)
			r.Get("/pending", h.ListPending)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/decision", h.Decide)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		// Balances
		r.Route("/staff", func(r chi.Router) {
			r.Get("/{id}/balances", h.GetBalances)
		})

		// Holidays
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
		})

		// Admin operations
		r.Route("/admin", func(r chi.Router) {
			r.Post("/rollover", h.TriggerRollover)
			r.Post("/credit", h.CreateCredit)
		})
	})

	return r
}
