package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// handleHealth runs every registered health check. Any failure turns the
// response into 503 "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}

	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			s.logger.Warn("health check failed", "component", name, "error", err)
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
