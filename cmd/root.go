package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "investigate",
	Short: "AI-assisted investigation document analysis with a full audit trail",
	Long: `Investigate ingests case documents, runs staged analysis tasks over
them, and answers free-text questions about the data. Every upload,
analysis, query and export is recorded in an append-only audit trail,
so each finding can be traced back to its sources.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".investigate.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
