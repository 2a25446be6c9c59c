// Package healthprobe provides liveness and readiness handlers shared by
// every pipeline service. Probes report on the process only and never block
// on dependencies.
package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	service   string
	startTime time.Time
	ready     atomic.Bool
	checks    []NamedCheck
}

// NamedCheck is an optional dependency probe reported (but not waited on)
// by the health endpoint. Checks must be fast and non-blocking.
type NamedCheck struct {
	Name  string
	Check func() bool
}

// New creates a HealthChecker for the named service.
func New(service string, checks ...NamedCheck) *HealthChecker {
	return &HealthChecker{
		service:   service,
		startTime: time.Now(),
		checks:    checks,
	}
}

// SetReady marks the service as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status  string          `json:"status"`
	Service string          `json:"service"`
	Uptime  string          `json:"uptime"`
	Checks  map[string]bool `json:"checks,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Health returns an HTTP handler for liveness checks. Always 200 while the
// process is running; dependency checks are informational.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Service: h.service,
			Uptime:  time.Since(h.startTime).String(),
		}

		if len(h.checks) > 0 {
			resp.Checks = make(map[string]bool, len(h.checks))
			for _, c := range h.checks {
				resp.Checks[c.Name] = c.Check()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Ready returns an HTTP handler for readiness checks. 503 until the service
// has finished starting.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if !h.ready.Load() {
			resp := HealthResponse{
				Status:  "not_ready",
				Service: h.service,
				Message: "service is starting",
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		resp := HealthResponse{
			Status:  "ready",
			Service: h.service,
			Uptime:  time.Since(h.startTime).String(),
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
