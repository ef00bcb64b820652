// Package commands holds the shopbot command line.
package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "shopbot",
	Short: "Shopping assistant for a vitamins and supplements catalog",
	Long: `shopbot answers shoppers in natural language, recommending products
from a vector-indexed catalog. Run "serve" for the HTTP API, "chat" for a
terminal conversation and "ingest" to load a JSON-lines catalog.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
