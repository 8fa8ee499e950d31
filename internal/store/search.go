package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/ragline/ragline/internal/faults"
)

// Filter keys accepted by Search. Unknown keys are rejected rather than
// silently ignored so a typo in a filter never degrades into an unfiltered
// search.
const (
	// FilterFileType matches the source file's extension ("pdf", "txt").
	FilterFileType = "file_type"
	// FilterSource matches the source path exactly. A comma-separated value
	// matches any of the listed paths.
	FilterSource = "source"
)

// ValidateFilters checks that every filter key is recognized. It returns a
// QueryError naming the offending key otherwise.
func ValidateFilters(filters map[string]string) error {
	for key := range filters {
		switch key {
		case FilterFileType, FilterSource:
		default:
			return &faults.QueryError{Reason: fmt.Sprintf("unknown filter key %q (valid: %s, %s)", key, FilterFileType, FilterSource)}
		}
	}
	return nil
}

// buildSearchQuery assembles the similarity-search SQL and its arguments.
// The embedding is always $1 and the limit the final parameter; filters and
// the optional distance threshold add parameterized clauses in deterministic
// (sorted-key) order so the output is stable for a given input. Values never
// interpolate into the SQL text.
func buildSearchQuery(embedding pgvector.Vector, filters map[string]string, threshold float64, limit int) (string, []interface{}, error) {
	if err := ValidateFilters(filters); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM chunks
WHERE 1=1`)
	args := []interface{}{embedding}

	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filters[key]
		switch key {
		case FilterFileType:
			args = append(args, "%."+strings.TrimPrefix(strings.ToLower(value), "."))
			fmt.Fprintf(&sb, "\n  AND metadata->>'source' ILIKE $%d", len(args))
		case FilterSource:
			if sources := splitSources(value); len(sources) > 1 {
				args = append(args, sources)
				fmt.Fprintf(&sb, "\n  AND metadata->>'source' = ANY($%d)", len(args))
			} else {
				args = append(args, value)
				fmt.Fprintf(&sb, "\n  AND metadata->>'source' = $%d", len(args))
			}
		}
	}

	// The threshold bounds raw cosine distance, before the similarity
	// transform in the select list.
	if threshold > 0 {
		args = append(args, threshold)
		fmt.Fprintf(&sb, "\n  AND (embedding <=> $1) < $%d", len(args))
	}

	args = append(args, limit)
	fmt.Fprintf(&sb, "\nORDER BY embedding <=> $1\nLIMIT $%d", len(args))
	return sb.String(), args, nil
}

// splitSources parses a source filter value into its comma-separated paths.
func splitSources(value string) []string {
	parts := strings.Split(value, ",")
	sources := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sources = append(sources, p)
		}
	}
	return sources
}

// Search returns the limit nearest chunks to the query embedding by cosine
// distance, optionally restricted by filters. A positive threshold excludes
// chunks whose raw cosine distance is not below it. Results arrive in
// descending similarity order.
func (s *Store) Search(ctx context.Context, embedding []float32, filters map[string]string, threshold float64, limit int) ([]RetrievalResult, error) {
	if limit <= 0 {
		limit = 5
	}
	query, args, err := buildSearchQuery(pgvector.NewVector(embedding), filters, threshold, limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &faults.StorageError{Op: "search", Err: err}
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var r RetrievalResult
		var md []byte
		if err := rows.Scan(&r.ID, &r.Content, &md, &r.Similarity); err != nil {
			return nil, &faults.StorageError{Op: "search", Err: err}
		}
		if err := json.Unmarshal(md, &r.Metadata); err != nil {
			s.log.Warn("store: unreadable chunk metadata", "chunk_id", r.ID, "error", err)
			r.Metadata = map[string]string{}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &faults.StorageError{Op: "search", Err: err}
	}
	return results, nil
}
