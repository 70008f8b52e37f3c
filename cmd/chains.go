package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scottbrough/bugbounty-framework/pkg/chains"
	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

var (
	chainsListFlag   bool
	chainsOutputFlag string
	minFindingsFlag  int
)

var chainsCmd = &cobra.Command{
	Use:   "chains [target]",
	Short: "Detect and analyze vulnerability chains for a target",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()

		if chainsListFlag {
			targets, err := st.ListTargets(ctx)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				fmt.Println("No targets found in database.")
				return nil
			}
			fmt.Println("Available targets:")
			for _, t := range targets {
				fmt.Printf("  - %s (%d findings)\n", t.Target, t.FindingCount)
			}
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("no target specified; use --list to see available targets")
		}
		target := args[0]

		if minFindingsFlag > 0 {
			cfg.MinChainSize = minFindingsFlag
		}

		provider, err := newProvider(ctx, cfg)
		if err != nil {
			return err
		}
		defer provider.Close()

		pipeline := chains.NewPipeline(st, provider, logger, chains.Options{
			MinChainSize: cfg.MinChainSize,
			BatchSize:    cfg.BatchSize,
		})
		summary, err := pipeline.Run(ctx, target)
		if err != nil {
			return err
		}

		if summary.Batches == 0 {
			fmt.Println("No hosts with multiple findings to analyze for chains.")
			return nil
		}

		// Artifacts derive from persisted state, not this run's responses.
		persisted, err := st.ChainsForTarget(ctx, target)
		if err != nil {
			return err
		}
		if len(persisted) == 0 {
			fmt.Println("No viable vulnerability chains identified.")
			return nil
		}

		artifacts, err := chains.WriteArtifacts(cfg.WorkspaceDir, target, chainsOutputFlag, time.Now(), persisted)
		if err != nil {
			return err
		}

		printROITable(persisted)

		green := color.New(color.FgGreen)
		green.Printf("\n[+] Chain analysis complete.\n")
		fmt.Printf("    Findings processed: %d\n", summary.FindingsConsidered)
		fmt.Printf("    Chains persisted:   %d (%d duplicates, %d failed)\n",
			summary.ChainsPersisted, summary.DuplicateChains, summary.FailedChains)
		fmt.Printf("    Batches skipped:    %d of %d\n", summary.BatchesSkipped, summary.Batches)
		fmt.Printf("    JSON saved to:      %s\n", artifacts.JSONPath)
		fmt.Printf("    Report saved to:    %s\n", artifacts.MarkdownPath)
		return nil
	},
}

// printROITable renders the per-chain payout estimate table.
func printROITable(persisted []store.Chain) {
	bold := color.New(color.Bold)
	fmt.Println("\nChain ROI Analysis:")
	fmt.Println(strings.Repeat("-", 50))
	bold.Printf("%-20s %-10s %-15s\n", "Chain", "Severity", "Est. Value")
	fmt.Println(strings.Repeat("-", 50))
	for i, c := range persisted {
		sev := c.CombinedSeverity
		if sev == "" {
			sev = "unknown"
		}
		fmt.Printf("%-20s %-10s %-15s\n", fmt.Sprintf("Chain %d", i+1), sev, chains.EstimateLabel(c.CombinedSeverity))
	}
	fmt.Println(strings.Repeat("-", 50))
}

func init() {
	chainsCmd.Flags().BoolVarP(&chainsListFlag, "list", "l", false, "List available targets in database")
	chainsCmd.Flags().StringVarP(&chainsOutputFlag, "output", "o", "", "Custom output file path")
	chainsCmd.Flags().IntVarP(&minFindingsFlag, "min-findings", "m", 0, "Minimum findings required to analyze chains (default 2)")
	rootCmd.AddCommand(chainsCmd)
}
