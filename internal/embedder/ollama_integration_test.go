//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"
)

// Test_OllamaEmbedder_Integration exercises the embedder against a real
// Ollama instance.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve
//
// Run with:
//
//	go test -tags=integration -run Test_OllamaEmbedder_Integration ./internal/embedder/
//
// Set OLLAMA_HOST when Ollama is not on localhost:11434.
func Test_OllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"The deployment runbook covers rollback and canary promotion.",
		"Expense reports are due by the fifth business day of each month.",
	}
	embeddings, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("embed: %v (is Ollama running with %q pulled?)", err, model)
	}
	if len(embeddings) != len(texts) {
		t.Fatalf("want %d embeddings, got %d", len(texts), len(embeddings))
	}

	for i, vec := range embeddings {
		if len(vec) == 0 {
			t.Errorf("embedding %d is empty", i)
		}
	}

	// Distinct inputs should not embed to the identical vector.
	if len(embeddings[0]) == len(embeddings[1]) {
		same := true
		for j := range embeddings[0] {
			if embeddings[0][j] != embeddings[1][j] {
				same = false
				break
			}
		}
		if same {
			t.Error("distinct texts produced identical vectors")
		}
	}

	t.Logf("model=%s dim=%d (the chunks table must use this dimension)", model, len(embeddings[0]))
}
