package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentmem/agentmem/internal/router"
)

func newRouterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "router",
		Short: "Manage the intent router",
	}
	cmd.AddCommand(newRouterAddCmd())
	cmd.AddCommand(newRouterRouteCmd())
	cmd.AddCommand(newRouterSaveCmd())
	cmd.AddCommand(newRouterLoadCmd())
	return cmd
}

func openRouterFromFlag(path string) (*router.Router, error) {
	r := router.New(router.Config{})
	if path != "" {
		if err := r.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load router state: %w", err)
		}
	}
	return r, nil
}

func newRouterAddCmd() *cobra.Command {
	var path, exemplarsPath string

	cmd := &cobra.Command{
		Use:   "add <intent>",
		Short: "Add an intent from a JSON file of exemplar vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			data, err := os.ReadFile(exemplarsPath)
			if err != nil {
				return fmt.Errorf("failed to read --exemplars file: %w", err)
			}
			var exemplars [][]float32
			if err := json.Unmarshal(data, &exemplars); err != nil {
				return fmt.Errorf("failed to parse --exemplars file: %w", err)
			}

			r, err := openRouterFromFlag(path)
			if err != nil {
				return err
			}
			if err := r.AddIntent(name, exemplars, nil); err != nil {
				return fmt.Errorf("failed to add intent: %w", err)
			}
			if path != "" {
				if err := r.Save(path); err != nil {
					return fmt.Errorf("failed to save router state: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "intent %q added (%d intents total)\n", name, r.Count())
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "router persistence file")
	cmd.Flags().StringVar(&exemplarsPath, "exemplars", "", "path to a JSON array of exemplar vectors (required)")
	return cmd
}

func newRouterRouteCmd() *cobra.Command {
	var path string
	var k int

	cmd := &cobra.Command{
		Use:   "route <vec>",
		Short: "Route a comma-separated vector to its best-matching intents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := parseVector(args[0])
			if err != nil {
				return err
			}
			r, err := openRouterFromFlag(path)
			if err != nil {
				return err
			}
			matches, err := r.Route(vec, k)
			if err != nil {
				return fmt.Errorf("routing failed: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(matches)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "router persistence file (required)")
	cmd.Flags().IntVarP(&k, "k", "k", 3, "number of matches to return")
	return cmd
}

func newRouterSaveCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Flush the router's debounced state to its persistence file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := openRouterFromFlag(path)
			if err != nil {
				return err
			}
			if err := r.Save(path); err != nil {
				return fmt.Errorf("failed to save router state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "router state saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "router persistence file (required)")
	return cmd
}

func newRouterLoadCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load and report the router's persisted intents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := openRouterFromFlag(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d intents from %s\n", r.Count(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "router persistence file (required)")
	return cmd
}
