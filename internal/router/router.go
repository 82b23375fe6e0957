// Package router wires the two public routes — POST /consult and GET /health
// — plus /metrics, behind the shared global middleware chain.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sovadina/consult-gateway/internal/handler"
	"github.com/sovadina/consult-gateway/internal/middleware"
	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// healthTimeout bounds /health at the HTTP layer, above the handler's own
// internal per-upstream timeout — defense in depth, not the primary bound.
const healthTimeout = 5 * time.Second

// Dependencies holds all injected services needed by the router.
type Dependencies struct {
	RetrievalClients map[workflow.AgentID]retrieval.RetrievalClient

	ConsultDeps handler.ConsultDeps

	CORSOrigins []string
	Metrics     *middleware.Metrics
	MetricsReg  *prometheus.Registry

	// RateLimiter guards /consult specifically, per client address. Nil
	// disables rate limiting (tests, local development).
	RateLimiter *middleware.RateLimiter
}

// New creates and configures the Chi router with all routes.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.CORSOrigins))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	var cacheChecker handler.CacheHealthChecker
	if hc, ok := deps.ConsultDeps.Cache.(handler.CacheHealthChecker); ok {
		cacheChecker = hc
	}
	r.With(middleware.Timeout(healthTimeout)).Get("/health", handler.Health(deps.RetrievalClients, cacheChecker))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	consultHandler := handler.Consult(deps.ConsultDeps)
	if deps.RateLimiter != nil {
		r.With(middleware.RateLimit(deps.RateLimiter)).Post("/consult", consultHandler)
	} else {
		r.Post("/consult", consultHandler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
