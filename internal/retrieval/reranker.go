package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Reranker scores candidate texts against a query. Higher is more relevant.
// The returned slice is parallel to the input texts.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// HTTPReranker calls a cross-encoder scoring service over plain HTTP, in the
// same style as the embedding backends. The service contract is a single
// POST endpoint taking {query, documents} and returning {scores}.
type HTTPReranker struct {
	// endpoint is the full URL of the scoring endpoint.
	endpoint string
	// model is the cross-encoder model name, passed through to the service.
	model string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// RerankerConfig holds the settings for constructing an HTTPReranker.
type RerankerConfig struct {
	// Endpoint is the full URL of the scoring endpoint.
	Endpoint string
	// Model is the cross-encoder model name (service-defined default if empty).
	Model string
}

// NewHTTPReranker constructs an HTTPReranker from the given config.
func NewHTTPReranker(cfg *RerankerConfig) *HTTPReranker {
	return &HTTPReranker{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewRerankerFromEnv returns an HTTPReranker when RERANKER_ENDPOINT is set,
// or nil when reranking is not configured. A nil Reranker is valid: the
// retriever falls back to vector-similarity ordering.
func NewRerankerFromEnv() Reranker {
	endpoint := os.Getenv("RERANKER_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	return NewHTTPReranker(&RerankerConfig{
		Endpoint: endpoint,
		Model:    os.Getenv("RERANKER_MODEL"),
	})
}

// rerankRequest is the JSON body sent to the scoring endpoint.
type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

// rerankResponse is the JSON body returned from the scoring endpoint.
type rerankResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

// Score returns one relevance score per text, in input order.
func (r *HTTPReranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	payload, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: texts,
		Model:     r.model,
	})
	if err != nil {
		return nil, fmt.Errorf("reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("reranker: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("reranker: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("reranker: %s", msg)
	}

	if len(result.Scores) != len(texts) {
		return nil, fmt.Errorf("reranker: expected %d scores, got %d", len(texts), len(result.Scores))
	}
	return result.Scores, nil
}
