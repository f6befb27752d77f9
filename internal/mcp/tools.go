package mcp

import "github.com/mark3labs/mcp-go/mcp"

// submitTaskTool defines the submit_task MCP tool.
var submitTaskTool = mcp.NewTool("submit_task",
	mcp.WithDescription("Submit a new analysis task against the uploaded investigation documents. Returns the created task; call run_task to execute it."),
	mcp.WithString("input",
		mcp.Required(),
		mcp.Description("Natural language description of the analysis to perform"),
	),
	mcp.WithString("document_ids",
		mcp.Description("Comma-separated document ids to use as task context (defaults to none)"),
	),
)

// getTaskTool defines the get_task MCP tool.
var getTaskTool = mcp.NewTool("get_task",
	mcp.WithDescription("Get the current state of a task, including its plan, result and failure reason."),
	mcp.WithString("task_id",
		mcp.Required(),
		mcp.Description("Id of the task to inspect"),
	),
)

// runTaskTool defines the run_task MCP tool.
var runTaskTool = mcp.NewTool("run_task",
	mcp.WithDescription("Analyze and execute a submitted task, waiting for the result. Combines the analyze and execute steps."),
	mcp.WithString("task_id",
		mcp.Required(),
		mcp.Description("Id of the task to run"),
	),
)

// askDataTool defines the ask_data MCP tool.
var askDataTool = mcp.NewTool("ask_data",
	mcp.WithDescription("Ask a free-text question about the investigation data. The answer shape depends on the question: timeline, location table, financial summary or plain text."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
)

// searchAuditTool defines the search_audit MCP tool.
var searchAuditTool = mcp.NewTool("search_audit",
	mcp.WithDescription("Search the append-only audit trail of every upload, analysis, query and export."),
	mcp.WithString("text",
		mcp.Description("Case-insensitive text to match against event titles and descriptions"),
	),
	mcp.WithString("kind",
		mcp.Description("Filter by event kind"),
		mcp.Enum("upload", "analysis", "query", "export", "chain"),
	),
	mcp.WithString("actor",
		mcp.Description("Filter by actor"),
		mcp.Enum("user", "ai"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of events to return (default 20)"),
	),
)

// listDocumentsTool defines the list_documents MCP tool.
var listDocumentsTool = mcp.NewTool("list_documents",
	mcp.WithDescription("List the uploaded investigation documents in insertion order."),
)
