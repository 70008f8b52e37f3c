package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scottbrough/bugbounty-framework/pkg/roi"
)

var roiCmd = &cobra.Command{
	Use:   "roi <target>",
	Short: "Interactively log time spent and payouts per finding",
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

		fmt.Printf("[+] ROI Tracker for: %s\n", target)
		return roi.NewTracker(st, os.Stdin, os.Stdout).Run(cmd.Context(), target)
	},
}

func init() {
	rootCmd.AddCommand(roiCmd)
}
