package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/generation"
	"github.com/ragline/ragline/internal/logging"
)

// NewQueryCmd constructs the `ragline query` command, which answers a single
// question against the ingested corpus and prints the cited answer.
func NewQueryCmd() *cobra.Command {
	var topK int
	var threshold float64
	var filters []string

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against the ingested documents",
		Long: `Run the full query pipeline for one question: embed the query, retrieve
the most similar chunks, optionally re-rank them, and generate a cited answer.

When the chat model is unavailable after retries, the retrieved context is
returned directly instead of failing, flagged as degraded.

Filters restrict retrieval by chunk metadata:
  file_type   match by source extension (pdf, txt)
  source      source file path (comma-separated to match any of several)

Examples:
  ragline query "how do deployments work?"
  ragline query --top-k 10 "what changed in the Q3 architecture review?"
  ragline query --filter file_type=pdf "summarise the onboarding guide"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			filterMap, err := parseFilters(filters)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			st, err := openStore(ctx, log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer st.Close()

			svc, err := buildQueryService(ctx, st, log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			resp, err := svc.Answer(ctx, generation.QueryRequest{
				Question:          strings.Join(args, " "),
				TopK:              topK,
				DistanceThreshold: threshold,
				Filters:           filterMap,
			})
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if resp.Degraded {
				fmt.Println("note: the model was unavailable — showing retrieved context instead of a generated answer")
				fmt.Println()
			}
			fmt.Println(resp.Answer)
			if len(resp.Citations) > 0 {
				fmt.Printf("\nSources: %s\n", strings.Join(resp.Citations, ", "))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: 5)")
	cmd.Flags().Float64Var(&threshold, "distance-threshold", 0, "Drop chunks at or beyond this cosine distance (0 = no bound)")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Metadata filter as key=value (repeatable)")

	return cmd
}

// parseFilters converts repeated key=value flags into a filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", p)
		}
		m[key] = value
	}
	return m, nil
}
