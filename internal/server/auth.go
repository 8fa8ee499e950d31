package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ragline/ragline/internal/logging"
)

// requireAPIKey guards a handler behind static Bearer token authentication.
// An empty key disables the guard entirely; the server logs a single startup
// warning for that case rather than one per request.
//
// Clients authenticate with:
//
//	Authorization: Bearer <key>
//
// A missing or wrong token gets 401 with a WWW-Authenticate challenge. The
// presented token value is never written to the log, only whether one was
// present.
func requireAPIKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		token, ok := extractBearer(r.Header.Get("Authorization"))
		switch {
		case !ok:
			log.Warn("auth: missing or malformed Authorization header",
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="ragline"`)
			http.Error(w, "authorization required", http.StatusUnauthorized)
		case token != key:
			log.Warn("auth: token rejected",
				slog.String("path", r.URL.Path),
				slog.Bool("token_present", true),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="ragline" error="invalid_token"`)
			http.Error(w, "invalid token", http.StatusUnauthorized)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// extractBearer pulls the token out of an Authorization header value. The
// scheme comparison is case-insensitive per RFC 7235. Returns false for an
// absent header, a non-Bearer scheme, or an empty token.
func extractBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
