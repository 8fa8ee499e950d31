// Package commands defines all Cobra CLI commands for the ragline binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/audit"
	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragline",
		Short: "ragline — durable document ingestion and retrieval-augmented answers",
		Long: `ragline ingests local document folders into a Postgres+pgvector chunk
store and answers questions against them with cited, retrieval-augmented
generation.

Ingestion runs as durable workflows: every file is processed under a
deterministic id derived from its content hash, so re-running an unchanged
corpus is a no-op and a crashed run resumes from its last completed step.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.ragline/config.yaml).
See 'ragline --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragline/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewQueryCmd(),
		NewServeCmd(),
		NewWarmupCmd(),
		NewResetCmd(),
		NewVersionCmd(),
	)

	return root
}
