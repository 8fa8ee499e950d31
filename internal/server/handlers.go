package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ragline/ragline/internal/generation"
	"github.com/ragline/ragline/internal/ingestion"
	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/workflow"
)

// handleIngest handles POST /api/ingest. It starts ingestion in the
// background and returns 202 with the workflow id to poll.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Path == "" {
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "path is required"})
		return
	}
	// Reject bad paths before starting a workflow that is doomed to fail.
	if info, err := os.Stat(req.Path); err != nil || !info.IsDir() {
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "path is not an existing directory"})
		return
	}

	id := s.ingestor.Start(r.Context(), req.Path)
	s.metrics.ingestRunsTotal.Inc()
	log.Info("ingestion started",
		slog.String("workflow_id", id),
		slog.String("path", req.Path),
	)

	writeJSON(w, log, http.StatusAccepted, ingestResponse{WorkflowID: id, Status: "started"})
}

// handleIngestStatus handles GET /api/ingest/{id}/status. While the workflow
// is still running the response carries the discovery count published so far;
// once it finishes the full per-file result (or the failure message) is
// included.
func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	id := r.PathValue("id")

	rec, err := s.workflows.Lookup(r.Context(), id)
	if errors.Is(err, workflow.ErrNotFound) {
		writeJSON(w, log, http.StatusNotFound, errorResponse{Error: "unknown workflow id"})
		return
	}
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	resp := ingestStatusResponse{WorkflowID: rec.ID, Status: string(rec.Status)}

	var found int
	if ok, err := s.workflows.Event(r.Context(), id, "files_discovered", &found); err == nil && ok {
		resp.FilesFound = &found
	}

	switch rec.Status {
	case workflow.StatusSuccess:
		var result ingestion.FolderResult
		if err := json.Unmarshal(rec.Output, &result); err != nil {
			log.Error("ingest status: undecodable workflow output",
				slog.String("workflow_id", id),
				slog.Any("error", err),
			)
		} else {
			resp.Result = &result
		}
	case workflow.StatusError:
		resp.Error = rec.Error
	}

	writeJSON(w, log, http.StatusOK, resp)
}

// handleQuery handles POST /api/query: one synchronous run of the query
// pipeline. Degraded answers still return 200 so callers always get the
// retrieved context; the response body flags the degradation.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req generation.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Question == "" {
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	start := time.Now()
	resp, err := s.querier.Answer(r.Context(), req)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.metrics.queryDurationSeconds.WithLabelValues(outcomeError).Observe(elapsed.Seconds())
		s.writeError(w, log, err)
		return
	}

	outcome := outcomeOK
	if resp.Degraded {
		outcome = outcomeDegraded
	}
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	writeJSON(w, log, http.StatusOK, resp)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, logging.FromContext(r.Context()), http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}
