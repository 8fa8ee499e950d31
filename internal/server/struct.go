package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ragline/ragline/internal/generation"
	"github.com/ragline/ragline/internal/ingestion"
	"github.com/ragline/ragline/internal/workflow"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil, a private registry is created.
	Registry *prometheus.Registry
}

// Ingestor starts asynchronous ingestion runs. *ingestion.Ingestor satisfies
// it; tests inject a fake.
type Ingestor interface {
	// Start launches ingestion of root in the background and returns the
	// workflow id used to poll progress.
	Start(ctx context.Context, root string) string
}

// Querier answers questions against the ingested corpus.
// *generation.Service satisfies it; tests inject a fake.
type Querier interface {
	Answer(ctx context.Context, req generation.QueryRequest) (generation.QueryResponse, error)
}

// WorkflowStore reads workflow state for status reporting.
// *workflow.Engine satisfies it; tests inject a fake.
type WorkflowStore interface {
	// Lookup returns the workflow record for id, or workflow.ErrNotFound.
	Lookup(ctx context.Context, id string) (*workflow.Record, error)
	// Event reads a named progress value published by a running workflow.
	Event(ctx context.Context, id, name string, out any) (bool, error)
}

// Server is the HTTP server exposing the ingestion and query pipelines.
type Server struct {
	// ingestor starts ingestion workflows for POST /api/ingest.
	ingestor Ingestor
	// querier runs the query pipeline for POST /api/query.
	querier Querier
	// workflows backs GET /api/ingest/{id}/status.
	workflows WorkflowStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Path is the folder to ingest.
	Path string `json:"path"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	// WorkflowID identifies the started ingestion run.
	WorkflowID string `json:"workflow_id"`
	// Status is always "started"; poll the status endpoint for progress.
	Status string `json:"status"`
}

// ingestStatusResponse is the JSON response for GET /api/ingest/{id}/status.
type ingestStatusResponse struct {
	// WorkflowID identifies the ingestion run.
	WorkflowID string `json:"workflow_id"`
	// Status is the workflow lifecycle state: running, success, or error.
	Status string `json:"status"`
	// FilesFound is the discovery count, present once discovery has completed.
	FilesFound *int `json:"files_found,omitempty"`
	// Error is the failure message when Status is "error".
	Error string `json:"error,omitempty"`
	// Result is the full per-file breakdown, present when Status is "success".
	Result *ingestion.FolderResult `json:"result,omitempty"`
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	// Error is a human-readable description of what went wrong.
	Error string `json:"error"`
}
