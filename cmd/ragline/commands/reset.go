package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/logging"
)

// NewResetCmd constructs the `ragline reset` command, which wipes the chunk
// store and the workflow checkpoints so the corpus can be re-ingested from
// scratch.
func NewResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all ingested documents, chunks, and workflow checkpoints",
		Long: `Delete every source document and chunk from the Postgres chunk store, and
every record from the workflow checkpoint database.

The next ingest re-processes everything from scratch. Both stores must be
wiped together: a completed per-file workflow that survived a chunk store
wipe would replay its recorded success and skip re-ingestion, leaving the
store empty forever.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset: refusing to wipe the chunk store without --yes")
			}

			ctx := cmd.Context()
			log := logging.New()

			st, err := openStore(ctx, log)
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			defer st.Close()

			engine, err := openEngine(log)
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			defer engine.Close()

			before, err := st.Count(ctx)
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			if err := st.Reset(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			if err := engine.Reset(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}

			fmt.Printf("chunk store and workflow checkpoints reset (%d chunks deleted)\n", before)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion of all ingested data")

	return cmd
}
