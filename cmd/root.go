package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/arbimind/arbbot/utils"
)

var (
	cfgFile string
	debug   bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "arbbot",
	Short: "A DEX arbitrage bot",
	Long: `A CLI bot that scans configured DEX venues for cross-venue price
discrepancies, validates them against reference prices, and executes
profitable trades through an on-chain executor contract.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "simulate trades without broadcasting")
}

func initLogging() {
	utils.InitLogger(debug)
}
