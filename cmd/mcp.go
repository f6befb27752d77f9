package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/Niranjanakamaraj/InvestigationAssistent/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the task pipeline, data queries and audit search to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.database.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "investigate MCP server started on stdio (data=%s, engine=%s)\n",
			deps.cfg.DataDir, deps.cfg.Provider)

		srv := mcpserver.NewServer(deps.docs, deps.tasks, deps.queries, deps.auditLog)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
