package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentmem/agentmem/internal/config"
	"github.com/agentmem/agentmem/pkg/memcore"
)

func newInitCmd() *cobra.Command {
	var (
		path     string
		dim      int
		metric   string
		backend  string
		adaptive bool
	)

	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Create a new store",
		Long: `Create a new store at <path> with the given dimension and write a
project configuration file (.agentmem.yaml) recording it, so later
commands do not need --dimension repeated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path = args[0]
			if dim <= 0 {
				return fmt.Errorf("--dimension must be a positive integer")
			}

			store, err := memcore.OpenStore(memcore.OpenStoreConfig{
				Path:      path,
				Dimension: dim,
				Metric:    resolveMetric(metric),
				Backend:   resolveBackendName(backend),
				Adaptive:  adaptive,
			})
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			defer store.Close()

			if err := store.Save(); err != nil {
				return fmt.Errorf("failed to write initial store files: %w", err)
			}

			cfg := config.NewConfig()
			cfg.Store.Path = path
			cfg.Store.Dimension = dim
			if metric != "" {
				cfg.Store.Metric = metric
			}
			cfg.Store.Backend = backend
			cfg.Store.Adaptive = adaptive

			cfgPath := filepath.Join(".", ".agentmem.yaml")
			if err := cfg.WriteYAML(cfgPath); err != nil {
				return fmt.Errorf("failed to write project configuration: %w", err)
			}

			det := store.Detection()
			fmt.Fprintf(cmd.OutOrStdout(), "store created at %s (backend: %s, dimension: %d)\n", path, det.Selected, dim)
			return nil
		},
	}

	cmd.Flags().IntVar(&dim, "dimension", 0, "vector dimension (required)")
	cmd.Flags().StringVar(&metric, "metric", "cosine", "distance metric: cosine, l2, or ip")
	cmd.Flags().StringVar(&backend, "backend", "auto", "backend: auto, ruvector, rvf, or hnswlib")
	cmd.Flags().BoolVar(&adaptive, "adaptive", true, "enable size-adaptive HNSW parameters")

	return cmd
}
