package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List targets with findings in the database",
	Args:  cobra.NoArgs,
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

		targets, err := st.ListTargets(cmd.Context())
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Println("No targets found in database.")
			return nil
		}
		for _, t := range targets {
			fmt.Printf("%s  (%d findings)\n", t.Target, t.FindingCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}
