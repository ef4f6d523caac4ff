package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthCheckTimeout bounds every readiness probe.
const HealthCheckTimeout = 5 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthChecker is a dependency probed by the readiness endpoint.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// Response is the envelope of both health endpoints.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthResponse(healthy bool, data any, errMsg string) Response {
	status := statusHealthy
	if !healthy {
		status = statusUnhealthy
	}
	return Response{Status: status, Timestamp: time.Now().UTC(), Data: data, Error: errMsg}
}

// ComponentHealth is the probe result of one dependency.
type ComponentHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves the unauthenticated liveness and readiness probes.
type HealthHandler struct {
	checks    map[string]HealthChecker
	startTime time.Time
}

// NewHealthHandler probes checks on readiness. With no checks the server
// reports itself as not ready.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks, startTime: time.Now()}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthResponse(true, map[string]any{
		"service":    "fileserv",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}, ""))
}

// Readiness handles GET /health/ready. All probes run in parallel under
// HealthCheckTimeout; any failure answers 503 with the per-component list.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if len(h.checks) == 0 {
		WriteJSON(w, http.StatusServiceUnavailable, healthResponse(false, nil, "server not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	components := h.probe(ctx)
	for _, c := range components {
		if c.Status != statusHealthy {
			WriteJSON(w, http.StatusServiceUnavailable, healthResponse(false, components, ""))
			return
		}
	}
	WriteJSON(w, http.StatusOK, healthResponse(true, components, ""))
}

// probe returns the results sorted by component name.
func (h *HealthHandler) probe(ctx context.Context) []ComponentHealth {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		components = make([]ComponentHealth, 0, len(h.checks))
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := check.Healthcheck(ctx)
			c := ComponentHealth{Name: name, Status: statusHealthy, Latency: time.Since(start).String()}
			if err != nil {
				c.Status, c.Error = statusUnhealthy, err.Error()
			}
			mu.Lock()
			components = append(components, c)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })
	return components
}
