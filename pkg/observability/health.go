package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// SiteProbe checks one configured site's reachability/auth validity.
// Returning an error marks that site degraded without failing the whole
// process - matching the best-effort posture the router takes toward
// per-site capability detection.
type SiteProbe func(ctx context.Context, siteID string) error

// HealthStatus represents the health status of the service.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker probes every configured site's auth validity.
type HealthChecker struct {
	sites map[string]SiteProbe
}

// NewHealthChecker creates a new HealthChecker for the given sites.
func NewHealthChecker(sites map[string]SiteProbe) *HealthChecker {
	return &HealthChecker{sites: sites}
}

// Check performs health checks and returns the status. A site probe
// failure sets that site's entry to "degraded: <error>" and the overall
// status to "degraded"; Check never reports "unhealthy" - losing one
// site's auth is not a process-fatal condition.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]string, len(h.sites))
	overallStatus := "healthy"

	for siteID, probe := range h.sites {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := probe(probeCtx, siteID)
		cancel()

		if err != nil {
			checks[siteID] = "degraded: " + err.Error()
			if overallStatus == "healthy" {
				overallStatus = "degraded"
			}
		} else {
			checks[siteID] = "healthy"
		}
	}

	if len(h.sites) == 0 {
		checks["sites"] = "not configured"
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// HealthHandler returns an HTTP handler for health checks.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(status)
	}
}
