package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"

	"github.com/ragline/ragline/internal/faults"
)

func Test_ValidateFilters_AcceptsKnownKeys(t *testing.T) {
	t.Parallel()
	filters := map[string]string{
		FilterFileType: "pdf",
		FilterSource:   "/docs/guide.pdf",
	}
	if err := ValidateFilters(filters); err != nil {
		t.Errorf("known keys rejected: %v", err)
	}
	if err := ValidateFilters(nil); err != nil {
		t.Errorf("nil filters rejected: %v", err)
	}
}

func Test_ValidateFilters_RejectsUnknownKey(t *testing.T) {
	t.Parallel()
	err := ValidateFilters(map[string]string{"author": "kay"})
	if err == nil {
		t.Fatal("unknown filter key must be rejected")
	}
	var qerr *faults.QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("want QueryError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "author") {
		t.Errorf("error should name the offending key: %v", err)
	}
}

func Test_buildSearchQuery_NoFilters(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1, 0.2})

	query, args, err := buildSearchQuery(vec, nil, 0, 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(query, "1 - (embedding <=> $1)") {
		t.Errorf("similarity expression missing:\n%s", query)
	}
	if !strings.Contains(query, "ORDER BY embedding <=> $1") {
		t.Errorf("distance ordering missing:\n%s", query)
	}
	if !strings.Contains(query, "LIMIT $2") {
		t.Errorf("limit must be the second parameter:\n%s", query)
	}
	if len(args) != 2 {
		t.Fatalf("want 2 args, got %d", len(args))
	}
	if args[1] != 5 {
		t.Errorf("want limit arg 5, got %v", args[1])
	}
}

func Test_buildSearchQuery_FileTypeFilterMatchesExtension(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1})

	query, args, err := buildSearchQuery(vec, map[string]string{FilterFileType: "PDF"}, 0, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(query, "metadata->>'source' ILIKE $2") {
		t.Errorf("file_type clause missing:\n%s", query)
	}
	if args[1] != "%.pdf" {
		t.Errorf("want lowercased extension pattern %%.pdf, got %v", args[1])
	}
	if !strings.Contains(query, "LIMIT $3") {
		t.Errorf("limit must come after filter params:\n%s", query)
	}
}

func Test_buildSearchQuery_SourceFilterIsExactMatch(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1})

	query, args, err := buildSearchQuery(vec, map[string]string{FilterSource: "/docs/a.txt"}, 0, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(query, "metadata->>'source' = $2") {
		t.Errorf("source clause missing:\n%s", query)
	}
	if args[1] != "/docs/a.txt" {
		t.Errorf("want exact source value, got %v", args[1])
	}
}

func Test_buildSearchQuery_CombinedFiltersAreDeterministic(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1})
	filters := map[string]string{
		FilterSource:   "/docs/a.pdf",
		FilterFileType: ".pdf",
	}

	first, args1, err := buildSearchQuery(vec, filters, 0, 10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, args2, err := buildSearchQuery(vec, filters, 0, 10)
		if err != nil {
			t.Fatalf("rebuild: %v", err)
		}
		if again != first {
			t.Fatalf("query text not deterministic:\n%s\nvs\n%s", first, again)
		}
		if len(args2) != len(args1) {
			t.Fatalf("arg count not deterministic: %d vs %d", len(args1), len(args2))
		}
	}

	// file_type sorts before source, so its parameter comes first.
	if args1[1] != "%.pdf" || args1[2] != "/docs/a.pdf" {
		t.Errorf("filter params out of order: %v", args1)
	}
	if args1[3] != 10 {
		t.Errorf("limit must be the final param, got %v", args1[3])
	}
}

func Test_buildSearchQuery_ThresholdBoundsRawDistance(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1})

	query, args, err := buildSearchQuery(vec, nil, 0.4, 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(query, "AND (embedding <=> $1) < $2") {
		t.Errorf("threshold clause missing:\n%s", query)
	}
	if args[1] != 0.4 {
		t.Errorf("want threshold arg 0.4, got %v", args[1])
	}
	if !strings.Contains(query, "LIMIT $3") {
		t.Errorf("limit must follow the threshold param:\n%s", query)
	}
}

func Test_buildSearchQuery_ZeroThresholdAddsNoClause(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1})

	query, args, err := buildSearchQuery(vec, nil, 0, 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(query, "<=> $1) <") {
		t.Errorf("zero threshold must not bound distance:\n%s", query)
	}
	if len(args) != 2 {
		t.Errorf("want embedding and limit only, got %d args", len(args))
	}
}

func Test_buildSearchQuery_MultiSourceUsesSetMembership(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1})

	query, args, err := buildSearchQuery(vec,
		map[string]string{FilterSource: "/docs/a.txt, /docs/b.txt"}, 0, 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(query, "metadata->>'source' = ANY($2)") {
		t.Errorf("set-membership clause missing:\n%s", query)
	}
	sources, ok := args[1].([]string)
	if !ok {
		t.Fatalf("want []string arg, got %T", args[1])
	}
	if len(sources) != 2 || sources[0] != "/docs/a.txt" || sources[1] != "/docs/b.txt" {
		t.Errorf("want trimmed source list, got %v", sources)
	}
}

func Test_buildSearchQuery_UnknownFilterFailsClosed(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1})

	_, _, err := buildSearchQuery(vec, map[string]string{"page": "2"}, 0, 5)
	var qerr *faults.QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("want QueryError for unknown filter, got %v", err)
	}
}

func Test_buildSearchQuery_ValuesNeverInterpolate(t *testing.T) {
	t.Parallel()
	vec := pgvector.NewVector([]float32{0.1})
	hostile := "'; DROP TABLE chunks; --"

	query, args, err := buildSearchQuery(vec, map[string]string{FilterSource: hostile}, 0, 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(query, "DROP TABLE") {
		t.Errorf("filter value leaked into SQL text:\n%s", query)
	}
	if args[1] != hostile {
		t.Errorf("hostile value must pass through as a parameter, got %v", args[1])
	}
}
