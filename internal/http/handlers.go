package http

import (
	"context"
	"net/http"
	"sort"
	"time"
)

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady pings every configured dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ready", http.StatusOK
	checks := make(map[string]checkResult, len(names))
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			checks[name] = checkResult{Status: "failed", Error: err.Error()}
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = checkResult{Status: "ok"}
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}
