package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentmem/agentmem/internal/search"
)

func newVectorSearchCmd() *cobra.Command {
	var (
		k         int
		text      string
		jsonOut   bool
		dimension int
	)
	f := &storeFlags{}

	cmd := &cobra.Command{
		Use:   "vector-search <db> <vec>",
		Short: "Run a hybrid vector/keyword query against a store",
		Long: `<vec> is a comma-separated list of floats, e.g. "0.1,0.2,0.3". <db> is
the store's path, equivalent to passing --path.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.path = args[0]
			f.dimension = dimension
			vec, err := parseVector(args[1])
			if err != nil {
				return err
			}

			store, err := openStoreFromFlags(f)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.Search(context.Background(), search.HybridQuery{
				Vector: vec,
				Text:   text,
				Limit:  k,
			}, nil)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%s\t%.4f\n", r.ID, r.Score)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of results")
	cmd.Flags().StringVar(&text, "text", "", "keyword query to fuse with the vector query")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	cmd.Flags().IntVar(&dimension, "dimension", 0, "vector dimension (required unless already configured)")

	return cmd
}

func parseVector(raw string) ([]float32, error) {
	parts := strings.Split(raw, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
