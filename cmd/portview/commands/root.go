package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "portview",
	Short: "Portview - portfolio performance backend",
	Long: `Portview Unified CLI

Portfolio-vs-benchmark performance backend: valuation series, benchmark
simulation, and the performance cache behind the charts.

Usage:
  go run ./cmd/portview [command]

Examples:
  go run ./cmd/portview api
  go run ./cmd/portview warm
  go run ./cmd/portview perf --user u1 --range 1Y
  go run ./cmd/portview test-db`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
