package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks  map[string]Check
	active  func() int
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. active reports the number of live
// games and may be nil.
func NewHealthHandler(checks map[string]Check, active func() int, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		active:  active,
		started: time.Now(),
		logger:  logger,
	}
}

type healthResponse struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	ActiveGames int               `json:"activeGames"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// HealthCheck probes every configured dependency. Any failure reports 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	if h.active != nil {
		resp.ActiveGames = h.active()
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}
