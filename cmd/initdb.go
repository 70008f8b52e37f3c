package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create or migrate the findings database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		// Opening the store runs the schema init and ROI migration.
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Printf("[+] Database ready at %s\n", cfg.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
