package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// CacheHealthChecker is the narrow interface the health handler needs from
// the final-answer cache.
type CacheHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health returns a handler that polls every upstream RetrievalClient and the
// cache, and reports GET /health's {status, upstreams, cache} shape.
// status is "degraded" iff any upstream reports unavailable; the cache being
// down does not by itself degrade status, since the workflow runs fine
// without it (quick-mode caching is an optimization, not a dependency).
func Health(clients map[workflow.AgentID]retrieval.RetrievalClient, cache CacheHealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		upstreams := make(map[string]string, len(clients))
		status := "healthy"
		for id, client := range clients {
			if client == nil {
				upstreams[string(id)] = string(retrieval.HealthUnavailable)
				status = "degraded"
				continue
			}
			h := client.HealthCheck(ctx)
			upstreams[string(id)] = string(h)
			if h == retrieval.HealthUnavailable {
				status = "degraded"
			}
		}

		cacheStatus := "unavailable"
		if cache != nil {
			if err := cache.HealthCheck(ctx); err != nil {
				cacheStatus = "error: " + err.Error()
			} else {
				cacheStatus = "available"
			}
		}

		httpStatus := http.StatusOK
		if status != "healthy" {
			httpStatus = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"upstreams": upstreams,
			"cache":     cacheStatus,
		})
	}
}
