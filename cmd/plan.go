package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottbrough/bugbounty-framework/pkg/attack"
)

var planCmd = &cobra.Command{
	Use:   "plan <target>",
	Short: "Build an attack plan from a target's triaged findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

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
		provider, err := newProvider(ctx, cfg)
		if err != nil {
			return err
		}
		defer provider.Close()

		n, err := attack.NewPlanner(st, provider, logger).Run(ctx, target, cfg.WorkspaceDir)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("No triaged findings found.")
			return nil
		}
		fmt.Printf("[+] Attack plan saved to %s (%d entries)\n", attack.PlanPath(cfg.WorkspaceDir, target), n)
		return nil
	},
}

var pocCmd = &cobra.Command{
	Use:   "poc <target>",
	Short: "Generate proof-of-concept write-ups from the attack plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		provider, err := newProvider(ctx, cfg)
		if err != nil {
			return err
		}
		defer provider.Close()

		n, err := attack.NewPoCGenerator(provider, logger).Run(ctx, target, cfg.WorkspaceDir)
		if err != nil {
			return err
		}
		fmt.Printf("[+] Generated %d PoC documents.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(pocCmd)
}
