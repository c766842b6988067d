package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentmem/agentmem/pkg/memcore"
)

func newMigrateCmd() *cobra.Command {
	var (
		target    string
		dimension int
		metric    string
		backend   string
	)

	cmd := &cobra.Command{
		Use:   "migrate <src>",
		Short: "Copy a store's vectors into a newly-opened target store",
		Long: `Open the store at <src>, open (or create) the store at --target, and
re-insert every vector from src into target. Useful for a dimension change
or a backend swap between two open_store targets.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcPath := args[0]
			if target == "" {
				return fmt.Errorf("--target is required")
			}

			src, err := memcore.OpenStore(memcore.OpenStoreConfig{Path: srcPath, Dimension: dimension})
			if err != nil {
				return fmt.Errorf("failed to open source store: %w", err)
			}
			defer src.Close()

			dstDimension := dimension
			dst, err := memcore.OpenStore(memcore.OpenStoreConfig{
				Path:      target,
				Dimension: dstDimension,
				Metric:    resolveMetric(metric),
				Backend:   resolveBackendName(backend),
			})
			if err != nil {
				return fmt.Errorf("failed to open target store: %w", err)
			}
			defer dst.Close()

			ctx := context.Background()
			ids := src.IndexIDs()
			migrated := 0
			for _, id := range ids {
				vec, err := src.VectorByID(id)
				if err != nil {
					return fmt.Errorf("failed to read vector %q: %w", id, err)
				}
				if err := dst.Insert(ctx, id, vec, "", nil, 1.0, 0); err != nil {
					return fmt.Errorf("failed to migrate vector %q: %w", id, err)
				}
				migrated++
			}

			if err := dst.Save(); err != nil {
				return fmt.Errorf("failed to save target store: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d vectors from %s to %s\n", migrated, srcPath, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "destination store directory (required)")
	cmd.Flags().IntVar(&dimension, "dimension", 0, "source store dimension (required unless already configured)")
	cmd.Flags().StringVar(&metric, "metric", "cosine", "destination metric: cosine, l2, or ip")
	cmd.Flags().StringVar(&backend, "backend", "auto", "destination backend: auto, ruvector, rvf, or hnswlib")

	return cmd
}
