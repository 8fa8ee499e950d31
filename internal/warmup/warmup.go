// Package warmup holds process-wide lazy singletons for the expensive
// pipeline dependencies: the embedding client and the optional reranker.
// Both are constructed at most once per process, on first use, so the CLI
// commands and the HTTP server share one instance and pay the construction
// cost a single time. Preload forces construction eagerly at startup so the
// first real request does not absorb it.
package warmup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ragline/ragline/internal/embedder"
	"github.com/ragline/ragline/internal/retrieval"
)

var (
	embedderOnce sync.Once
	embedderInst embedder.Embedder
	embedderErr  error

	rerankerOnce sync.Once
	rerankerInst retrieval.Reranker
)

// Embedder returns the process-wide embedding client, constructing it from
// the environment on first call. All callers share the same instance.
func Embedder() (embedder.Embedder, error) {
	embedderOnce.Do(func() {
		embedderInst, embedderErr = embedder.NewFromEnv()
	})
	return embedderInst, embedderErr
}

// Reranker returns the process-wide reranker, or nil when RERANKER_ENDPOINT
// is not configured. A nil reranker disables re-ranking; retrieval falls back
// to vector order.
func Reranker() retrieval.Reranker {
	rerankerOnce.Do(func() {
		rerankerInst = retrieval.NewRerankerFromEnv()
	})
	return rerankerInst
}

// Preload eagerly constructs the singletons and exercises the embedding
// backend once, so model weights are resident before the first request.
// The reranker is only probed when configured.
func Preload(ctx context.Context, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	start := time.Now()
	emb, err := Embedder()
	if err != nil {
		return err
	}
	if _, err := emb.Embed(ctx, []string{"warmup"}); err != nil {
		return err
	}
	log.Info("warmup: embedder ready",
		slog.String("backend", embedder.ResolveBackend()),
		slog.Duration("took", time.Since(start)),
	)

	if r := Reranker(); r != nil {
		start = time.Now()
		if _, err := r.Score(ctx, "warmup", []string{"warmup"}); err != nil {
			// The reranker is an enhancement; a cold or absent service must
			// not block startup.
			log.Warn("warmup: reranker not reachable, re-ranking will fall back to vector order",
				slog.Any("error", err),
			)
		} else {
			log.Info("warmup: reranker ready", slog.Duration("took", time.Since(start)))
		}
	} else {
		log.Info("warmup: reranker not configured")
	}

	return nil
}
