package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type statusReport struct {
	Backend       string         `json:"backend"`
	VectorCount   int            `json:"vector_count"`
	OrphanedNodes int            `json:"orphaned_nodes"`
	KeywordDocs   int            `json:"keyword_docs"`
	KeywordTerms  int            `json:"keyword_terms"`
	CompressedBy  map[string]int `json:"compressed_by_tier"`
	SavingsPct    float64        `json:"estimated_savings_percent"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	f := &storeFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store health and statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStoreFromFlags(f)
			if err != nil {
				return err
			}
			defer store.Close()

			stats := store.Stats()
			det := store.Detection()

			byTier := make(map[string]int, len(stats.CompressStats.EntriesByTier))
			for tier, n := range stats.CompressStats.EntriesByTier {
				byTier[string(tier)] = n
			}

			report := statusReport{
				Backend:       string(det.Selected),
				VectorCount:   stats.VectorCount,
				OrphanedNodes: stats.IndexStats.Orphans,
				KeywordDocs:   stats.SearchStats.DocumentCount,
				KeywordTerms:  stats.SearchStats.TermCount,
				CompressedBy:  byTier,
				SavingsPct:    stats.CompressStats.EstimatedSavingsPercent,
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:        %s\n", report.Backend)
			fmt.Fprintf(out, "vectors:        %d (%d orphaned)\n", report.VectorCount, report.OrphanedNodes)
			fmt.Fprintf(out, "keyword docs:   %d (%d terms)\n", report.KeywordDocs, report.KeywordTerms)
			fmt.Fprintf(out, "est. savings:   %.1f%%\n", report.SavingsPct)
			return nil
		},
	}

	addStoreFlags(cmd.Flags(), f, "")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
