// Package cmd provides the CLI commands for agentmem.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentmem/agentmem/pkg/version"
)

// NewRootCmd creates the root command for the agentmem CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentmem",
		Short: "Vector memory core for long-running AI agents",
		Long: `agentmem is the vector memory core for long-running AI agents: an
approximate-nearest-neighbor index fused with tiered-quantization storage,
a contrastive self-learning loop, a tamper-evident witness chain, and a
federated session aggregator.

Run 'agentmem init' in a directory to create a store, then 'agentmem
status' to inspect it.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("agentmem version {{.Version}}\n")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newVectorSearchCmd())
	cmd.AddCommand(newCertificateCmd())
	cmd.AddCommand(newRouterCmd())
	cmd.AddCommand(newBanditCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
