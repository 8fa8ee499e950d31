// Package generation orchestrates the query pipeline: retrieve relevant
// chunks, assemble a cited prompt within the context budget, invoke the chat
// model with bounded retries, and extract citations from the answer. When the
// model stays down after all retries, the service degrades to returning the
// retrieved context directly instead of failing the request.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ragline/ragline/internal/budget"
	"github.com/ragline/ragline/internal/faults"
	"github.com/ragline/ragline/internal/ingestion"
	"github.com/ragline/ragline/internal/store"
)

// ChatModel is the slice of the eino chat model the service invokes.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Retriever is the slice of the retrieval pipeline the service reads through.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, threshold float64, filters map[string]string) ([]store.RetrievalResult, error)
}

// QueryRequest is one question against the ingested corpus.
type QueryRequest struct {
	// Question is the user's query text.
	Question string `json:"question"`
	// TopK is the number of chunks to retrieve (0 = configured default).
	TopK int `json:"top_k,omitempty"`
	// DistanceThreshold, when positive, drops chunks whose raw cosine
	// distance from the query is not below it (0 = no bound).
	DistanceThreshold float64 `json:"distance_threshold,omitempty"`
	// Filters optionally restricts retrieval by metadata.
	Filters map[string]string `json:"filters,omitempty"`
}

// QueryResponse is the answer to a QueryRequest.
type QueryResponse struct {
	// Answer is the generated (or degraded) answer text.
	Answer string `json:"answer"`
	// Citations lists the unique source names the answer cites, sorted.
	Citations []string `json:"citations,omitempty"`
	// Degraded is true when the model was unavailable and Answer carries the
	// raw retrieved context instead of a generated response.
	Degraded bool `json:"degraded,omitempty"`
	// RetrievedCount is how many chunks backed the answer.
	RetrievedCount int `json:"retrieved_count"`
}

// Service runs the query pipeline. It is safe for concurrent use.
type Service struct {
	model            ChatModel
	retriever        Retriever
	log              *slog.Logger
	maxContextTokens int
	sleep            sleepFunc
}

// New constructs a Service. maxContextTokens bounds the prompt context; 0
// selects the budget package default.
func New(m ChatModel, r Retriever, log *slog.Logger, maxContextTokens int) (*Service, error) {
	if m == nil {
		return nil, fmt.Errorf("generation: model must not be nil")
	}
	if r == nil {
		return nil, fmt.Errorf("generation: retriever must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if maxContextTokens <= 0 {
		maxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Service{
		model:            m,
		retriever:        r,
		log:              log,
		maxContextTokens: maxContextTokens,
		sleep:            defaultSleep,
	}, nil
}

// Answer retrieves context for the question and generates a cited answer.
// Retrieval and input errors propagate to the caller; model errors degrade
// into a context-only response after the retry budget is exhausted.
func (s *Service) Answer(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	results, err := s.retriever.Retrieve(ctx, req.Question, req.TopK, req.DistanceThreshold, req.Filters)
	if err != nil {
		return QueryResponse{}, err
	}
	if len(results) == 0 {
		return QueryResponse{Answer: noResultsAnswer}, nil
	}

	contextText := s.formatContext(req.Question, results)
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf(userPromptTemplate, contextText, req.Question)),
	}

	reply, err := s.invokeWithRetry(ctx, msgs)
	if err != nil {
		if faults.IsLLM(err) {
			return s.degrade(results, contextText, err), nil
		}
		return QueryResponse{}, err
	}

	answer := s.parseContent(reply)
	return QueryResponse{
		Answer:         answer,
		Citations:      ExtractCitations(answer),
		RetrievedCount: len(results),
	}, nil
}

// formatContext renders retrieval results as source-tagged blocks, trimmed to
// the context budget. Results arrive best-first, so trimming drops the least
// relevant chunks.
func (s *Service) formatContext(question string, results []store.RetrievalResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		name := filepath.Base(r.Metadata[ingestion.MetaSource])
		blocks[i] = fmt.Sprintf("[Source: %s]\n%s", name, r.Content)
	}

	kept := budget.TrimChunks(systemPrompt+question, blocks, s.maxContextTokens)
	if len(kept) < len(blocks) {
		s.log.Warn("generation: context trimmed to fit token budget",
			slog.Int("retrieved", len(blocks)),
			slog.Int("kept", len(kept)),
		)
	}
	return strings.Join(kept, "\n\n")
}

// degrade builds the fallback response used when the model is unavailable:
// the retrieved context verbatim, with citations derived from retrieval
// metadata instead of the (nonexistent) model output.
func (s *Service) degrade(results []store.RetrievalResult, contextText string, cause error) QueryResponse {
	s.log.Warn("generation: model unavailable, returning retrieved context",
		slog.Any("error", cause),
	)
	return QueryResponse{
		Answer:         degradedAnswerHeader + "\n\n" + contextText,
		Citations:      citationsFromResults(results),
		Degraded:       true,
		RetrievedCount: len(results),
	}
}

// parseContent extracts the answer text from a model reply. Multi-part
// replies concatenate their text parts; a reply with no usable text falls
// back to the raw Content field with a warning.
func (s *Service) parseContent(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	if len(msg.MultiContent) > 0 {
		var sb strings.Builder
		for _, part := range msg.MultiContent {
			if part.Type == schema.ChatMessagePartTypeText {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
		s.log.Warn("generation: reply had multi-content but no text parts, using raw content")
	}
	return msg.Content
}
