package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/export"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the investigation assistant HTTP server",
	Long:  `Starts the REST API and websocket event feed for the investigation assistant.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.database.Close()

		exporter, err := export.NewExporter(deps.docs, deps.tasks, deps.auditLog,
			filepath.Join(deps.cfg.DataDir, "reports"))
		if err != nil {
			return fmt.Errorf("creating exporter: %w", err)
		}

		port := servePort
		if port == 0 {
			port = deps.cfg.Port
		}

		srv := server.New(server.Config{
			Port:     port,
			DataDir:  deps.cfg.DataDir,
			AllowAll: deps.cfg.AllowAll,
		}, server.Deps{
			Documents: deps.docs,
			Tasks:     deps.tasks,
			Queries:   deps.queries,
			Exporter:  exporter,
			AuditLog:  deps.auditLog,
		})

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "investigate server v%s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Data: %s\n", deps.cfg.DataDir)
		fmt.Fprintf(os.Stderr, "  Engine: %s\n", deps.cfg.Provider)

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
