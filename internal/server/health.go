package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ragline/ragline/internal/logging"
)

// probeTimeout caps each dependency probe during a readiness check, so
// /api/ready answers promptly when a dependency hangs instead of refusing.
const probeTimeout = 5 * time.Second

// Pinger is implemented by every dependency the readiness endpoint reports
// on. Ping returns nil when the dependency is reachable; Name labels the
// probe in the readiness response (e.g. "postgres", "workflow-db").
// Implementations must be safe for concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	Name() string
}

// probeResult is one dependency's entry in the readiness report.
type probeResult struct {
	// Name is the dependency label.
	Name string `json:"name"`
	// OK is true when the probe succeeded.
	OK bool `json:"ok"`
	// Error carries the failure reason when OK is false.
	Error string `json:"error,omitempty"`
}

// readinessReport is the JSON body of GET /api/ready.
type readinessReport struct {
	// Ready is true only when every probe succeeded.
	Ready bool `json:"ready"`
	// Checks lists the per-dependency outcomes in registration order.
	Checks []probeResult `json:"checks"`
}

// handleReady probes every registered dependency and reports the aggregate:
// 200 when all probes pass, 503 when any fails. /api/health stays a bare
// liveness check; this endpoint is the one that reflects dependency state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	report := readinessReport{Ready: true}
	for _, p := range s.pingers {
		probeCtx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Ping(probeCtx)
		cancel()

		result := probeResult{Name: p.Name(), OK: err == nil}
		if err != nil {
			result.Error = err.Error()
			report.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.Any("error", err),
			)
		}
		report.Checks = append(report.Checks, result)
	}

	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.Error("ready encode error", slog.Any("error", err))
	}
}
