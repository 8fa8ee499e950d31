package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/warmup"
)

// NewWarmupCmd constructs the `ragline warmup` command, which forces the
// embedding backend (and reranker, when configured) to load before real
// traffic arrives.
func NewWarmupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Preload the embedding backend and reranker",
		Long: `Send one throwaway request to the embedding backend (and the reranker,
when RERANKER_ENDPOINT is set) so model weights are resident in memory.

Useful after a host restart, before a bulk ingest, or as a container
post-start hook — the first real request then runs at full speed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			if err := warmup.Preload(cmd.Context(), log); err != nil {
				return fmt.Errorf("warmup: %w", err)
			}
			fmt.Println("warmup complete")
			return nil
		},
	}
}
