package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ragline/ragline/internal/faults"
	"github.com/ragline/ragline/internal/store"
)

// defaultTopK is the result count when the caller passes 0.
const defaultTopK = 5

// overfetchFactor is how many extra candidates are pulled from the store
// when a reranker is configured: the cross-encoder sees topK*overfetchFactor
// candidates and picks the best topK.
const overfetchFactor = 3

// Embedder is the slice of the embedding backend the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchStore is the slice of the chunk store the retriever reads through.
type SearchStore interface {
	Search(ctx context.Context, embedding []float32, filters map[string]string, threshold float64, limit int) ([]store.RetrievalResult, error)
}

// Retriever embeds queries and returns ranked chunks. It is safe for
// concurrent use.
type Retriever struct {
	embedder Embedder
	store    SearchStore
	reranker Reranker
	dim      int
	topK     int
	log      *slog.Logger

	rerankWarn sync.Once
}

// New constructs a Retriever. reranker may be nil, in which case results keep
// the store's vector-similarity order. dim, when positive, is enforced
// against the query embedding before searching.
func New(emb Embedder, st SearchStore, reranker Reranker, dim, topK int, log *slog.Logger) (*Retriever, error) {
	if emb == nil {
		return nil, fmt.Errorf("retrieval: embedder must not be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{
		embedder: emb,
		store:    st,
		reranker: reranker,
		dim:      dim,
		topK:     topK,
		log:      log,
	}, nil
}

// Retrieve returns the topK most relevant chunks for the query, optionally
// restricted by metadata filters. A positive threshold excludes candidates
// whose raw cosine distance is not below it; zero disables the bound. With a
// reranker configured, the store is overfetched and the reranker's ordering
// supersedes vector similarity; without one, vector order stands. An empty
// query, a negative threshold, or an unknown filter key is a QueryError.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float64, filters map[string]string) ([]store.RetrievalResult, error) {
	if topK <= 0 {
		topK = r.topK
	}
	if threshold < 0 {
		return nil, &faults.QueryError{Reason: "distance threshold must not be negative"}
	}
	query, err := PreprocessQuery(query)
	if err != nil {
		return nil, err
	}
	if err := store.ValidateFilters(filters); err != nil {
		return nil, err
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, &faults.EmbeddingError{Err: fmt.Errorf("expected 1 query embedding, got %d", len(embeddings))}
	}
	vec := embeddings[0]
	if r.dim > 0 && len(vec) != r.dim {
		return nil, &faults.EmbeddingError{Err: fmt.Errorf(
			"query embedding has dimension %d, store expects %d — embedding model and schema disagree",
			len(vec), r.dim)}
	}

	fetch := topK
	if r.reranker != nil {
		fetch = topK * overfetchFactor
	}
	results, err := r.store.Search(ctx, vec, filters, threshold, fetch)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	if r.reranker == nil {
		r.rerankWarn.Do(func() {
			r.log.Warn("retrieval: no reranker configured, using vector-similarity order",
				slog.String("hint", "set RERANKER_ENDPOINT to enable cross-encoder reranking"),
			)
		})
		return truncate(results, topK), nil
	}

	reranked, err := r.rerank(ctx, query, results)
	if err != nil {
		// Reranking is an enhancement: losing it degrades ordering, not
		// availability.
		r.log.Warn("retrieval: rerank failed, falling back to vector order",
			slog.Any("error", err),
		)
		return truncate(results, topK), nil
	}
	return truncate(reranked, topK), nil
}

// rerank reorders candidates by cross-encoder score, descending. Ties keep
// their vector-similarity order.
func (r *Retriever) rerank(ctx context.Context, query string, results []store.RetrievalResult) ([]store.RetrievalResult, error) {
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Content
	}
	scores, err := r.reranker.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(results) {
		return nil, fmt.Errorf("retrieval: reranker returned %d scores for %d candidates", len(scores), len(results))
	}

	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	reranked := make([]store.RetrievalResult, len(results))
	for i, idx := range order {
		reranked[i] = results[idx]
	}
	return reranked, nil
}

func truncate(results []store.RetrievalResult, topK int) []store.RetrievalResult {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}
