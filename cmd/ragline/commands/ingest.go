package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/embedder"
	"github.com/ragline/ragline/internal/ingestion"
	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/warmup"
)

// NewIngestCmd constructs the `ragline ingest` command, which runs the
// document ingestion pipeline over a local folder.
func NewIngestCmd() *cobra.Command {
	var chunkSize int
	var chunkOverlap int
	var workers int

	cmd := &cobra.Command{
		Use:   "ingest <folder>",
		Short: "Ingest a folder of documents into the chunk store",
		Long: `Discover, chunk, embed, and store every .txt and .pdf file under a folder.

Each file runs as a durable workflow keyed by its content hash: files already
ingested are skipped, changed files are re-ingested atomically, and a crashed
run resumes from its last completed step on the next invocation.

Required environment variables:
  DATABASE_URL         Postgres connection string (pgvector extension required)
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  ragline ingest ./docs
  ragline ingest --workers 8 /srv/knowledge-base
  EMBEDDING_PROVIDER=openai ragline ingest ./docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			root := args[0]

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := warmup.Embedder()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("backend", embedder.ResolveBackend()))

			st, err := openStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer st.Close()

			engine, err := openEngine(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = engine.Close() }()

			ing := ingestion.New(engine, st, emb, log, ingestOptionsFromEnv(chunkSize, chunkOverlap, workers))

			result, err := ing.IngestFolder(ctx, root)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("workflow %s: %d found, %d processed, %d skipped, %d failed\n",
				result.WorkflowID, result.FilesFound, result.FilesProcessed,
				result.FilesSkipped, result.FilesFailed)
			for _, fr := range result.Results {
				switch fr.Status {
				case ingestion.StatusSuccess:
					fmt.Printf("  ok      %s (%d chunks)\n", fr.File, fr.Chunks)
				case ingestion.StatusSkipped:
					fmt.Printf("  skipped %s (%s)\n", fr.File, fr.Reason)
				default:
					fmt.Printf("  failed  %s (%s)\n", fr.File, fr.Reason)
				}
			}

			if result.FilesFailed > 0 {
				return fmt.Errorf("ingest: %d of %d files failed", result.FilesFailed, result.FilesFound)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk window size in characters (default: 800)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Overlap between adjacent chunks (default: 100)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent file workers (default: 3)")

	return cmd
}
