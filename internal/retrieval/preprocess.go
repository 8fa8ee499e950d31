// Package retrieval turns a user question into a ranked set of chunks: it
// validates and normalizes the query, embeds it, runs filtered similarity
// search against the chunk store, and optionally reranks the candidates with
// a cross-encoder before truncating to the requested count.
package retrieval

import (
	"regexp"
	"strings"

	"github.com/ragline/ragline/internal/faults"
)

// whitespaceRuns matches any run of whitespace, newlines included. Queries
// are single-line by the time they reach the embedder.
var whitespaceRuns = regexp.MustCompile(`\s+`)

// PreprocessQuery canonicalizes a user query before embedding: whitespace
// runs collapse to single spaces and the result is trimmed. A query that is
// empty after normalization is a caller error.
func PreprocessQuery(query string) (string, error) {
	query = strings.TrimSpace(whitespaceRuns.ReplaceAllString(query, " "))
	if query == "" {
		return "", &faults.QueryError{Reason: "query is empty"}
	}
	return query, nil
}
