package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ragline/ragline/internal/faults"
)

// OllamaEmbedder produces embeddings through a local Ollama server's
// /api/embed endpoint. No credentials are involved. Safe for concurrent use.
type OllamaEmbedder struct {
	host   string
	model  string
	client *http.Client
}

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model, e.g. "nomic-embed-text".
	Model string
}

// NewOllamaEmbedder builds an OllamaEmbedder. The generous client timeout
// covers the model's first load into memory on a cold server.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:   cfg.Host,
		model:  cfg.Model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per input text, in input order. Every failure
// surfaces as an EmbeddingError so the ingestion retry policy can treat it
// as transient.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result ollamaEmbedResponse
	status, err := postJSON(ctx, e.client, e.host+"/api/embed", nil,
		ollamaEmbedRequest{Model: e.model, Input: texts}, &result)
	if err != nil {
		return nil, &faults.EmbeddingError{Err: fmt.Errorf("ollama: %w", err)}
	}
	if !httpOK(status) {
		msg := fmt.Sprintf("HTTP %d", status)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, &faults.EmbeddingError{Err: fmt.Errorf("ollama: %s", msg)}
	}
	if len(result.Embeddings) != len(texts) {
		return nil, &faults.EmbeddingError{Err: fmt.Errorf(
			"ollama: expected %d embeddings, got %d", len(texts), len(result.Embeddings))}
	}
	return result.Embeddings, nil
}
