package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ragline/ragline/internal/faults"
	"github.com/ragline/ragline/internal/store"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type fakeSearchStore struct {
	results       []store.RetrievalResult
	err           error
	lastLimit     int
	lastThreshold float64
}

func (f *fakeSearchStore) Search(ctx context.Context, embedding []float32, filters map[string]string, threshold float64, limit int) ([]store.RetrievalResult, error) {
	f.lastLimit = limit
	f.lastThreshold = threshold
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

type fakeReranker struct {
	scores []float64
	err    error
}

func (f *fakeReranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores[:len(texts)], nil
}

func chunk(id string, sim float64) store.RetrievalResult {
	return store.RetrievalResult{ID: id, Content: "content " + id, Similarity: sim}
}

func Test_PreprocessQuery_NormalizesWhitespace(t *testing.T) {
	t.Parallel()
	got, err := PreprocessQuery("  what   is\n\tthe  answer  ")
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if got != "what is the answer" {
		t.Errorf("got %q", got)
	}
}

func Test_PreprocessQuery_EmptyIsQueryError(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "\n\t "} {
		_, err := PreprocessQuery(in)
		var qerr *faults.QueryError
		if !errors.As(err, &qerr) {
			t.Errorf("PreprocessQuery(%q): want QueryError, got %v", in, err)
		}
	}
}

func Test_Retrieve_VectorOrderWithoutReranker(t *testing.T) {
	t.Parallel()
	st := &fakeSearchStore{results: []store.RetrievalResult{
		chunk("a", 0.9), chunk("b", 0.5), chunk("c", 0.3),
	}}
	r, err := New(&fakeEmbedder{vec: []float32{0.1, 0.2}}, st, nil, 2, 2, slog.Default())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "question", 2, 0, nil)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("vector order not preserved: %s, %s", results[0].ID, results[1].ID)
	}
	if st.lastLimit != 2 {
		t.Errorf("no reranker must not overfetch, asked for %d", st.lastLimit)
	}
}

func Test_Retrieve_RerankerSupersedesVectorOrder(t *testing.T) {
	t.Parallel()
	st := &fakeSearchStore{results: []store.RetrievalResult{
		chunk("a", 0.9), chunk("b", 0.5), chunk("c", 0.3),
	}}
	// The cross-encoder disagrees with vector similarity: the most distant
	// candidate is actually the most relevant.
	rr := &fakeReranker{scores: []float64{0.1, 0.2, 0.9}}
	r, err := New(&fakeEmbedder{vec: []float32{0.1}}, st, rr, 0, 2, slog.Default())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "question", 2, 0, nil)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].ID != "c" || results[1].ID != "b" {
		t.Errorf("want rerank order c,b, got %s,%s", results[0].ID, results[1].ID)
	}
	if st.lastLimit != 6 {
		t.Errorf("reranker must overfetch topK*3=6, asked for %d", st.lastLimit)
	}
}

func Test_Retrieve_RerankFailureFallsBackToVectorOrder(t *testing.T) {
	t.Parallel()
	st := &fakeSearchStore{results: []store.RetrievalResult{
		chunk("a", 0.9), chunk("b", 0.5),
	}}
	rr := &fakeReranker{err: errors.New("scoring service down")}
	r, _ := New(&fakeEmbedder{vec: []float32{0.1}}, st, rr, 0, 2, slog.Default())

	results, err := r.Retrieve(context.Background(), "question", 2, 0, nil)
	if err != nil {
		t.Fatalf("rerank failure must not fail retrieval: %v", err)
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("fallback must keep vector order: %s,%s", results[0].ID, results[1].ID)
	}
}

func Test_Retrieve_DimensionMismatchIsEmbeddingError(t *testing.T) {
	t.Parallel()
	st := &fakeSearchStore{}
	r, _ := New(&fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}, st, nil, 768, 5, slog.Default())

	_, err := r.Retrieve(context.Background(), "question", 5, 0, nil)
	var eerr *faults.EmbeddingError
	if !errors.As(err, &eerr) {
		t.Errorf("want EmbeddingError for dimension mismatch, got %v", err)
	}
}

func Test_Retrieve_EmptyQueryIsQueryError(t *testing.T) {
	t.Parallel()
	r, _ := New(&fakeEmbedder{vec: []float32{0.1}}, &fakeSearchStore{}, nil, 0, 5, slog.Default())

	_, err := r.Retrieve(context.Background(), "   ", 5, 0, nil)
	var qerr *faults.QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("want QueryError, got %v", err)
	}
}

func Test_Retrieve_UnknownFilterIsQueryError(t *testing.T) {
	t.Parallel()
	r, _ := New(&fakeEmbedder{vec: []float32{0.1}}, &fakeSearchStore{}, nil, 0, 5, slog.Default())

	_, err := r.Retrieve(context.Background(), "question", 5, 0, map[string]string{"nope": "x"})
	var qerr *faults.QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("want QueryError for unknown filter, got %v", err)
	}
}

func Test_Retrieve_ThresholdReachesTheStore(t *testing.T) {
	t.Parallel()
	st := &fakeSearchStore{results: []store.RetrievalResult{chunk("a", 0.9)}}
	r, _ := New(&fakeEmbedder{vec: []float32{0.1}}, st, nil, 0, 5, slog.Default())

	if _, err := r.Retrieve(context.Background(), "question", 5, 0.35, nil); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if st.lastThreshold != 0.35 {
		t.Errorf("want threshold 0.35 passed through, got %v", st.lastThreshold)
	}
}

func Test_Retrieve_NegativeThresholdIsQueryError(t *testing.T) {
	t.Parallel()
	st := &fakeSearchStore{}
	r, _ := New(&fakeEmbedder{vec: []float32{0.1}}, st, nil, 0, 5, slog.Default())

	_, err := r.Retrieve(context.Background(), "question", 5, -0.1, nil)
	var qerr *faults.QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("want QueryError for negative threshold, got %v", err)
	}
}

func Test_Retrieve_NoResultsIsNotAnError(t *testing.T) {
	t.Parallel()
	r, _ := New(&fakeEmbedder{vec: []float32{0.1}}, &fakeSearchStore{}, nil, 0, 5, slog.Default())

	results, err := r.Retrieve(context.Background(), "question", 5, 0, nil)
	if err != nil {
		t.Fatalf("empty store must not error: %v", err)
	}
	if results != nil {
		t.Errorf("want nil results, got %v", results)
	}
}
