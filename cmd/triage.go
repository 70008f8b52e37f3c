package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scottbrough/bugbounty-framework/pkg/triage"
)

var triageHostsFlag string

var triageCmd = &cobra.Command{
	Use:   "triage <target>",
	Short: "Triage discovered live hosts into prioritized findings",
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

		hostsFile := triageHostsFlag
		if hostsFile == "" {
			hostsFile = filepath.Join(cfg.WorkspaceDir, target, "live_hosts.txt")
		}

		summary, err := triage.New(st, provider, logger).Run(ctx, target, hostsFile)
		if err != nil {
			return err
		}
		if summary.HostsSent == 0 {
			fmt.Printf("No hosts found in %s.\n", hostsFile)
			return nil
		}
		fmt.Printf("[+] Triage complete. Saved %d findings (%d failed) to %s\n",
			summary.Saved, summary.Failed, cfg.DBPath)
		return nil
	},
}

func init() {
	triageCmd.Flags().StringVar(&triageHostsFlag, "hosts", "", "Path to the live hosts file (default workspace/<target>/live_hosts.txt)")
	rootCmd.AddCommand(triageCmd)
}
