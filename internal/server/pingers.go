package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ragline/ragline/internal/ingestion"
	"github.com/ragline/ragline/internal/retrieval"
)

// LLMPinger probes a chat model backend by sending a minimal generate
// request. It satisfies the Pinger interface and is used by GET /api/ready.
//
// The probe consumes a handful of tokens per call; readiness checks should
// not be polled aggressively against metered backends.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a one-word generate request to the backend.
// Returns nil if the backend responds, or a descriptive error otherwise.
func (p *LLMPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// EmbedderPinger probes the embedding backend by embedding a single short
// text. It satisfies the Pinger interface and is used by GET /api/ready.
type EmbedderPinger struct {
	embedder ingestion.Embedder
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder.
func NewEmbedderPinger(e ingestion.Embedder) *EmbedderPinger {
	return &EmbedderPinger{embedder: e}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return "embedder" }

// Ping embeds one short text against the backend.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

// RerankerPinger probes the cross-encoder reranker service by scoring a
// single query/document pair.
type RerankerPinger struct {
	reranker retrieval.Reranker
}

// NewRerankerPinger constructs a RerankerPinger for the given reranker.
func NewRerankerPinger(r retrieval.Reranker) *RerankerPinger {
	return &RerankerPinger{reranker: r}
}

// Name returns the dependency label used in readiness responses.
func (p *RerankerPinger) Name() string { return "reranker" }

// Ping scores one trivial pair against the reranker service.
func (p *RerankerPinger) Ping(ctx context.Context) error {
	scores, err := p.reranker.Score(ctx, "ping", []string{"pong"})
	if err != nil {
		return fmt.Errorf("score failed: %w", err)
	}
	if len(scores) != 1 {
		return fmt.Errorf("score returned %d results for 1 document", len(scores))
	}
	return nil
}
