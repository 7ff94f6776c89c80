package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scastiel/parity.coffee/internal/platform/observability"
)

var Version = "dev"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := newRootCmd(logger.Named("cli")).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	if logger == nil {
		logger = zap.NewNop()
	}
	rootCmd := &cobra.Command{
		Use:   "parity",
		Short: "Operator tooling for the Parity Coffee pricing service",
		Long: `parity inspects and maintains purchasing power parity pricing.

Examples:
  parity tiers
  parity quote --country IN
  parity quote --ip 203.0.113.7 --geo-db GeoLite2-Country.mmdb
  parity promo-codes sync --dry-run`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file consulted for configuration defaults")

	rootCmd.AddCommand(tiersCmd())
	rootCmd.AddCommand(quoteCmd(logger))
	rootCmd.AddCommand(promoCodesCmd(logger))
	return rootCmd
}
