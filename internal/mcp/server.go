package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/pipeline"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/query"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the investigation assistant
// to AI agents over stdio.
type Server struct {
	docs     *docstore.Store
	tasks    *pipeline.Pipeline
	queries  *query.Router
	auditLog *audit.Log
	mcp      *server.MCPServer
}

// NewServer creates an MCP server with the given dependencies.
func NewServer(docs *docstore.Store, tasks *pipeline.Pipeline, queries *query.Router, auditLog *audit.Log) *Server {
	s := &Server{
		docs:     docs,
		tasks:    tasks,
		queries:  queries,
		auditLog: auditLog,
	}

	s.mcp = server.NewMCPServer(
		"investigate",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(submitTaskTool, s.handleSubmitTask)
	s.mcp.AddTool(getTaskTool, s.handleGetTask)
	s.mcp.AddTool(runTaskTool, s.handleRunTask)
	s.mcp.AddTool(askDataTool, s.handleAskData)
	s.mcp.AddTool(searchAuditTool, s.handleSearchAudit)
	s.mcp.AddTool(listDocumentsTool, s.handleListDocuments)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
