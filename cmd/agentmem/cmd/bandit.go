package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentmem/agentmem/internal/bandit"
)

func newBanditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bandit",
		Short: "Query and update the contextual bandit used for tier/strategy selection",
	}
	cmd.AddCommand(newBanditSelectCmd())
	cmd.AddCommand(newBanditRewardCmd())
	cmd.AddCommand(newBanditExportCmd())
	cmd.AddCommand(newBanditImportCmd())
	return cmd
}

func openBanditFromFlag(path string) (*bandit.Bandit, error) {
	b, err := bandit.New(bandit.Config{})
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := b.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load bandit state: %w", err)
		}
	}
	return b, nil
}

func newBanditSelectCmd() *cobra.Command {
	var path, ctxKey string
	var arms []string

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select an arm for a context via Thompson sampling",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBanditFromFlag(path)
			if err != nil {
				return err
			}
			arm, err := b.SelectArm(ctxKey, arms)
			if err != nil {
				return fmt.Errorf("selection failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), arm)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "bandit persistence file")
	cmd.Flags().StringVar(&ctxKey, "context", "", "context key (required)")
	cmd.Flags().StringSliceVar(&arms, "arm", nil, "candidate arm name (repeatable, required)")
	return cmd
}

func newBanditRewardCmd() *cobra.Command {
	var path, ctxKey, arm string
	var reward float64
	var cost float64
	var hasCost bool

	cmd := &cobra.Command{
		Use:   "reward",
		Short: "Record an observed reward (and optional cost) for a context/arm pull",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBanditFromFlag(path)
			if err != nil {
				return err
			}
			var costPtr *float64
			if hasCost {
				costPtr = &cost
			}
			if err := b.RecordReward(ctxKey, arm, reward, costPtr); err != nil {
				return fmt.Errorf("failed to record reward: %w", err)
			}
			if path != "" {
				if err := b.Save(path); err != nil {
					return fmt.Errorf("failed to save bandit state: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "bandit persistence file")
	cmd.Flags().StringVar(&ctxKey, "context", "", "context key (required)")
	cmd.Flags().StringVar(&arm, "arm", "", "arm name (required)")
	cmd.Flags().Float64Var(&reward, "reward", 0, "observed reward in [0,1] (required)")
	cmd.Flags().Float64Var(&cost, "cost", 0, "observed cost")
	cmd.Flags().BoolVar(&hasCost, "has-cost", false, "set to fold --cost into the arm's cost EMA")
	return cmd
}

func newBanditExportCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the bandit's serialized state as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBanditFromFlag(path)
			if err != nil {
				return err
			}
			data, err := b.Serialize()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "bandit persistence file (required)")
	return cmd
}

func newBanditImportCmd() *cobra.Command {
	var inputPath, outputPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a serialized bandit state document and write it to a persistence file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("failed to read --input file: %w", err)
			}
			b, err := bandit.Deserialize(data)
			if err != nil {
				return fmt.Errorf("failed to parse bandit state: %w", err)
			}
			if err := b.Save(outputPath); err != nil {
				return fmt.Errorf("failed to write bandit state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported bandit state into %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to a serialized bandit state document (required)")
	cmd.Flags().StringVar(&outputPath, "path", "", "destination bandit persistence file (required)")
	return cmd
}
