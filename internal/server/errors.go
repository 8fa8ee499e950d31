package server

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/ragline/ragline/internal/faults"
)

// writeError maps a pipeline error to an HTTP status and JSON body.
//
// Input problems (bad queries, unknown filters) are the client's fault and
// return 400. Rate limits surface as 429 with a Retry-After header so callers
// can back off. Dependency failures (model, embedder, database) are 503 —
// retryable by the client, not a server bug.
func (s *Server) writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError

	var (
		queryErr     *faults.QueryError
		rateLimitErr *faults.LLMRateLimitError
		timeoutErr   *faults.LLMTimeoutError
		llmErr       *faults.LLMError
		embedErr     *faults.EmbeddingError
		storageErr   *faults.StorageError
	)
	switch {
	case errors.As(err, &queryErr):
		status = http.StatusBadRequest
	case errors.As(err, &rateLimitErr):
		status = http.StatusTooManyRequests
		if rateLimitErr.RetryAfter > 0 {
			secs := int(math.Ceil(rateLimitErr.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	case errors.As(err, &timeoutErr), errors.As(err, &llmErr),
		errors.As(err, &embedErr), errors.As(err, &storageErr):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
	} else {
		log.Warn("request failed",
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}

	writeJSON(w, log, status, errorResponse{Error: err.Error()})
}
