package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/embedder"
	"github.com/ragline/ragline/internal/generation"
	"github.com/ragline/ragline/internal/ingestion"
	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/provider"
	"github.com/ragline/ragline/internal/retrieval"
	"github.com/ragline/ragline/internal/server"
	"github.com/ragline/ragline/internal/tracing"
	"github.com/ragline/ragline/internal/warmup"
)

// NewServeCmd constructs the `ragline serve` command, which starts the HTTP
// API over the ingestion and query pipelines.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragline HTTP API",
		Long: `Start the ragline HTTP server.

The server exposes asynchronous ingestion with pollable workflow status,
synchronous question answering, health/readiness probes, and Prometheus
metrics. Set RAGLINE_API_KEY to require Bearer authentication on the
pipeline routes.

Examples:
  ragline serve
  ragline serve --port 9090
  MODEL_PROVIDER=azure ragline serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in; a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if err := warmup.Preload(ctx, log); err != nil {
				return fmt.Errorf("serve: warmup failed: %w", err)
			}
			emb, err := warmup.Embedder()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			st, err := openStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer st.Close()

			engine, err := openEngine(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = engine.Close() }()

			ing := ingestion.New(engine, st, emb, log, ingestOptionsFromEnv(0, 0, 0))

			dim := embedder.DefaultDimensions(embedder.ResolveBackend())
			retriever, err := retrieval.New(emb, st, warmup.Reranker(), dim, getEnvInt("QUERY_TOP_K", 0), log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			svc, err := generation.New(chatModel, retriever, log, getEnvInt("QUERY_MAX_CONTEXT_TOKENS", 0))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{st, engine, server.NewEmbedderPinger(emb)}
			if r := warmup.Reranker(); r != nil {
				pingers = append(pingers, server.NewRerankerPinger(r))
			}

			srv, err := server.New(ing, svc, engine, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("RAGLINE_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
