// Package embedder turns text into dense vectors. Backends (Ollama, OpenAI,
// Azure OpenAI) are reached over plain HTTP; no provider SDK is pulled in for
// embedding alone.
package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ragline/ragline/internal/faults"
)

// OpenAIEmbedder produces embeddings through the OpenAI embeddings REST API,
// or Azure OpenAI's variant of it. Safe for concurrent use.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	azure      bool
	apiVersion string
	client     *http.Client
}

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI, or the resource's
	// "/openai" base for Azure.
	BaseURL string
	// APIKey authenticates the request: Bearer token for OpenAI, api-key
	// header for Azure.
	APIKey string
	// Model is the embedding model, e.g. "text-embedding-3-small". On Azure
	// it doubles as the deployment name.
	Model string
	// Dimensions requests a specific vector length; 0 takes the model default.
	Dimensions int
	// Azure switches to Azure OpenAI request conventions.
	Azure bool
	// APIVersion is the Azure api-version query parameter; unused otherwise.
	APIVersion string
}

// NewOpenAIEmbedder builds an OpenAIEmbedder from cfg.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		azure:      cfg.Azure,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns one vector per input text, in input order. Every failure
// surfaces as an EmbeddingError so the ingestion retry policy can treat it
// as transient.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := openaiEmbedRequest{Input: texts, Model: e.model}
	if e.dimensions > 0 {
		body.Dimensions = e.dimensions
	}

	url := e.baseURL + "/embeddings"
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}
	if e.azure {
		url = e.baseURL + "/deployments/" + e.model + "/embeddings?api-version=" + e.apiVersion
		headers = map[string]string{"api-key": e.apiKey}
	}

	var result openaiEmbedResponse
	status, err := postJSON(ctx, e.client, url, headers, body, &result)
	if err != nil {
		return nil, &faults.EmbeddingError{Err: fmt.Errorf("openai: %w", err)}
	}
	if !httpOK(status) {
		msg := fmt.Sprintf("HTTP %d", status)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, &faults.EmbeddingError{Err: fmt.Errorf("openai: %s", msg)}
	}
	if len(result.Data) != len(texts) {
		return nil, &faults.EmbeddingError{Err: fmt.Errorf(
			"openai: expected %d embeddings, got %d", len(texts), len(result.Data))}
	}

	// The API is allowed to return entries out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, &faults.EmbeddingError{Err: fmt.Errorf(
				"openai: index %d out of range [0, %d)", d.Index, len(texts))}
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}
