package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottbrough/bugbounty-framework/pkg/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <target>",
	Short: "Generate submission-ready reports for triaged findings",
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

		n, err := report.New(st, provider, logger).Run(ctx, target, cfg.WorkspaceDir)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("No triaged findings found to report.")
			return nil
		}
		fmt.Printf("[+] Generated %d reports under %s/%s/reports\n", n, cfg.WorkspaceDir, target)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
