package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sparkie",
	Short: "Sparkie - rate-limit-aware credential pool router",
	Long: `Sparkie fronts a generative AI API with a pool of interchangeable
credentials and routes each request through the healthiest one.

Every upstream response is classified into a typed outcome; rate-limited
or failing credentials cool down and recover on their own, exhausted or
revoked ones are replaced through the provisioning pipeline, and clients
see a retry on a sibling key instead of a quota error.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
