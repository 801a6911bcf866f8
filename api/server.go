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
  4. CORS:       Cross-origin requests for the web frontend
  5. throttle:   Token-bucket rate limiting
  6. instrument: Prometheus request counters and latency

ROUTE GROUPS:
  /memberships/*   Enrollment, balances, credit, history
  /rewards/*       Catalog and redemption
  /health          Liveness + store connectivity
  /metrics         Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(throttle(100, 200))
	r.Use(instrument)

	// Membership routes
	r.Route("/memberships", func(r chi.Router) {
		r.Post("/", h.CreateMembership)
		r.Get("/{user_id}", h.GetMembership)
		r.Post("/{user_id}/points", h.AddPoints)
		r.Get("/{user_id}/transactions", h.GetTransactions)
		r.Get("/{user_id}/redemptions", h.GetRedemptions)
	})

	// Reward routes
	r.Route("/rewards", func(r chi.Router) {
		r.Get("/", h.ListRewards)
		r.Post("/", h.CreateReward)
		r.Get("/{reward_id}", h.GetReward)
		r.Delete("/{reward_id}", h.DeactivateReward)
		r.Post("/{reward_id}/redeem", h.RedeemReward)
	})

	// Service routes
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
