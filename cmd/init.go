package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the investigation assistant and generates a .investigate.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
