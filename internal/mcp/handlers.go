package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/engine"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/pipeline"
)

// handleSubmitTask creates a task in the submitted stage.
func (s *Server) handleSubmitTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := request.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: input"), nil
	}

	var docIDs []string
	if raw := request.GetString("document_ids", ""); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				docIDs = append(docIDs, id)
			}
		}
	}

	task, err := s.tasks.Submit(ctx, input, docIDs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatTask(task)), nil
}

// handleGetTask returns the current state of a task.
func (s *Server) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: task_id"), nil
	}

	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatTask(task)), nil
}

// handleRunTask analyzes and executes a submitted task, then waits for
// the terminal stage so the agent gets the final result in one call.
func (s *Server) handleRunTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: task_id"), nil
	}

	task, err := s.tasks.Analyze(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analyze failed: %v", err)), nil
	}
	if task.Stage == pipeline.StageFailed {
		return mcp.NewToolResultText(formatTask(task)), nil
	}

	if _, err := s.tasks.Execute(ctx, taskID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execute failed: %v", err)), nil
	}

	for {
		task, err = s.tasks.Get(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
		}
		if task.Stage.Terminal() {
			break
		}
		select {
		case <-ctx.Done():
			return mcp.NewToolResultError("cancelled while waiting for execution"), nil
		case <-time.After(50 * time.Millisecond):
		}
	}

	return mcp.NewToolResultText(formatTask(task)), nil
}

// handleAskData answers a free-text question about the document set.
func (s *Server) handleAskData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryText, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	resp, err := s.queries.Ask(ctx, queryText)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatResponse(resp)), nil
}

// handleSearchAudit queries the audit trail.
func (s *Server) handleSearchAudit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}

	events, err := s.auditLog.Query(ctx, audit.Filter{
		Text:  request.GetString("text", ""),
		Kind:  audit.EventKind(request.GetString("kind", "")),
		Actor: audit.Actor(request.GetString("actor", "")),
		Limit: limit,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("audit search failed: %v", err)), nil
	}

	if len(events) == 0 {
		return mcp.NewToolResultText("No audit events match."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d event(s):\n", len(events))
	for _, event := range events {
		fmt.Fprintf(&sb, "\n#%d [%s] %s by %s: %s (%s)\n",
			event.ID, event.Timestamp.Format(time.RFC3339), event.Kind,
			event.Actor, event.Title, event.Status)
		if event.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", event.Description)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleListDocuments lists the uploaded documents.
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing documents failed: %v", err)), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents uploaded."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d document(s):\n", len(docs))
	for _, doc := range docs {
		fmt.Fprintf(&sb, "\n%s\n  id: %s\n  kind: %s, type: %s, intelligence: %s\n",
			doc.FileName, doc.ID, doc.MimeKind, doc.DocumentType, doc.IntelligenceLevel)
		if doc.Definition != "" {
			fmt.Fprintf(&sb, "  definition: %s\n", doc.Definition)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatTask renders a task for AI agent consumption.
func formatTask(task *pipeline.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %s\n", task.ID)
	fmt.Fprintf(&sb, "Stage: %s\n", task.Stage)
	fmt.Fprintf(&sb, "Input: %s\n", task.OriginalInput)
	if task.ParentTaskID != "" {
		fmt.Fprintf(&sb, "Parent: %s\n", task.ParentTaskID)
	}
	if task.Plan != nil {
		fmt.Fprintf(&sb, "\nPlan: %s\nLogic: %s\nFormat: %s\nEstimated: %s\n",
			task.Plan.ParaphrasedTask, task.Plan.LogicSummary,
			task.Plan.SuggestedFormat, task.Plan.EstimatedTime)
	}
	if task.Result != nil {
		fmt.Fprintf(&sb, "\nResult: %s\n", task.Result.Summary)
		for _, row := range task.Result.Rows {
			fmt.Fprintf(&sb, "  %s | %s | %s | %s\n",
				row.Date, row.Source, row.Finding, row.Confidence)
		}
	}
	if len(task.OutputFiles) > 0 {
		fmt.Fprintf(&sb, "\nOutputs: %s\n", strings.Join(task.OutputFiles, ", "))
	}
	if task.FailureReason != "" {
		fmt.Fprintf(&sb, "\nFailure: %s\n", task.FailureReason)
	}
	return sb.String()
}

// formatResponse renders a typed answer as text.
func formatResponse(resp *engine.TypedResponse) string {
	var sb strings.Builder
	sb.WriteString(resp.Text)
	sb.WriteString("\n")

	switch resp.Kind {
	case engine.ResponseTimeline:
		for _, e := range resp.Timeline {
			fmt.Fprintf(&sb, "\n%s: %s", e.Date, e.Event)
			if e.Detail != "" {
				fmt.Fprintf(&sb, " (%s)", e.Detail)
			}
		}
		sb.WriteString("\n")
	case engine.ResponseTable:
		if resp.Table != nil {
			fmt.Fprintf(&sb, "\n%s\n", strings.Join(resp.Table.Columns, " | "))
			for _, row := range resp.Table.Rows {
				fmt.Fprintf(&sb, "%s\n", strings.Join(row, " | "))
			}
		}
	case engine.ResponseFinancial:
		if resp.Financial != nil {
			fmt.Fprintf(&sb, "\nTotal: %s\nSuspicious transactions: %d\n%s\n",
				resp.Financial.TotalAmount, resp.Financial.SuspiciousCount,
				resp.Financial.Note)
		}
	}
	return sb.String()
}
