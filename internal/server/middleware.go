package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/logging"
)

// accessLog tags every inbound request with a fresh request id, plants a
// child logger carrying it into the request context, and emits one summary
// line with status and latency when the handler returns. Handlers deeper in
// the chain retrieve the tagged logger via logging.FromContext.
func accessLog(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := base.With(
			slog.String("request_id", newRequestID()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		r = r.WithContext(logging.WithLogger(r.Context(), log))

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		log.Info("request",
			slog.Int("status", rec.code),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// statusRecorder captures the status code a handler writes so that the
// logging and metrics middlewares can report it.
type statusRecorder struct {
	http.ResponseWriter
	// code is the HTTP status sent to the client.
	code int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.code = code
	rec.ResponseWriter.WriteHeader(code)
}

// newRequestID returns a compact random id for correlating log lines.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
