/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/projects, /api/plots, /api/clients, /api/agents  Reference data
  /api/leads, /api/visits                               Pipeline
  /api/sales/*                                          Ledger operations
  /api/payments/{id}/receipt                            Receipt projection
  /api/metrics/*                                        Derived analytics

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
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

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Reference entities
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
		})
		r.Route("/plots", func(r chi.Router) {
			r.Get("/", h.ListPlots)
			r.Post("/", h.CreatePlot)
			r.Get("/{id}", h.GetPlot)
		})
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
		})
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
		})

		// Pipeline
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", h.ListLeads)
			r.Post("/", h.CreateLead)
			r.Put("/{id}/status", h.UpdateLeadStatus)
		})
		r.Post("/visits", h.CreateVisit)

		// Ledger operations
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.CreateSale)
			r.Get("/{id}", h.GetSale)
			r.Post("/{id}/cancel", h.CancelSale)
			r.Get("/{id}/payments", h.ListPayments)
			r.Post("/{id}/payments", h.RecordPayment)
		})
		r.Get("/payments/{id}/receipt", h.GetReceipt)

		// Derived analytics
		r.Route("/metrics", func(r chi.Router) {
			r.Get("/forecast", h.GetForecast)
			r.Get("/funnel", h.GetFunnel)
			r.Get("/agents", h.GetAgentScores)
			r.Get("/roi", h.GetProjectROI)
			r.Get("/dashboard", h.GetDashboard)
		})
	})

	return r
}
