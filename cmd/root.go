package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scottbrough/bugbounty-framework/pkg/config"
	"github.com/scottbrough/bugbounty-framework/pkg/llm"
	"github.com/scottbrough/bugbounty-framework/pkg/logging"
	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

var rootCmd = &cobra.Command{
	Use:   "bugbounty",
	Short: "AI-assisted bug bounty recon and chain analysis",
	Long: `bugbounty orchestrates a bug bounty workflow: triage discovered hosts,
correlate findings into higher-impact attack chains, plan exploitation,
generate PoC evidence, and produce submission-ready reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	verboseFlag bool
	dbFlag      string
	configFlag  string
)

// Execute runs the CLI. Exit code 0 on success or nothing-to-do, 1 on a
// hard failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Path to the findings database (default bugbounty.db)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to the config file")
}

// setup loads the config once, applies flag overrides, and builds the
// shared logger. Everything downstream receives these values explicitly.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if dbFlag != "" {
		cfg.DBPath = dbFlag
	}
	logger := logging.New(verboseFlag, cfg.LogFile)
	return cfg, logger, nil
}

// openStore opens the finding store; failure here is a hard failure for
// every command.
func openStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// newProvider constructs the analysis capability client for the configured
// provider. A missing credential aborts the run; no request can succeed
// without one.
func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	name := cfg.SelectedProvider
	return llm.New(ctx, name, cfg.APIKey(name), cfg.SelectedModel, cfg.Timeout)
}
