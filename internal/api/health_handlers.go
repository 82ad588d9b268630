package api

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides health and readiness check endpoints for probes.
type HealthHandlers struct {
	dbChecker    HealthChecker
	redisChecker HealthChecker
	extra        map[string]HealthChecker
}

// NewHealthHandlers creates a new health check handler. Either checker
// may be nil when the dependency is not configured.
func NewHealthHandlers(dbChecker, redisChecker HealthChecker) *HealthHandlers {
	return &HealthHandlers{
		dbChecker:    dbChecker,
		redisChecker: redisChecker,
		extra:        make(map[string]HealthChecker),
	}
}

// AddChecker registers an additional named dependency for the readiness
// probe, e.g. a payment gateway reachability check.
func (h *HealthHandlers) AddChecker(name string, checker HealthChecker) {
	h.extra[name] = checker
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe). If we can respond, we
// are alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// readinessTimeout bounds each dependency probe.
const readinessTimeout = 3 * time.Second

// Ready handles GET /ready (readiness probe). Returns 503 when a
// configured dependency fails its check.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ready",
		Checks:    make(map[string]string),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	checkers := map[string]HealthChecker{
		"database": h.dbChecker,
		"redis":    h.redisChecker,
	}
	for name, checker := range h.extra {
		checkers[name] = checker
	}
	for name, checker := range checkers {
		if checker == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			response.Checks[name] = "unavailable: " + err.Error()
			response.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}

	writeJSON(w, status, response)
}
