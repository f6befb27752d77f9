package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/pipeline"
)

// Format selects the report output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ErrUnsupportedFormat is returned for formats other than markdown and html.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Report is a generated investigation report.
type Report struct {
	Format   Format `json:"format"`
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
}

// Exporter assembles investigation reports from the document set, the
// task pipeline and the audit trail.
type Exporter struct {
	docs     *docstore.Store
	tasks    *pipeline.Pipeline
	auditLog *audit.Log
	outDir   string
	md       goldmark.Markdown
}

// NewExporter creates an exporter writing reports into outDir. An empty
// outDir keeps reports in memory only.
func NewExporter(docs *docstore.Store, tasks *pipeline.Pipeline, auditLog *audit.Log, outDir string) (*Exporter, error) {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating export directory: %w", err)
		}
	}
	return &Exporter{
		docs:     docs,
		tasks:    tasks,
		auditLog: auditLog,
		outDir:   outDir,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
	}, nil
}

// Export builds the full investigation report, writes it to the export
// directory when one is configured, and records one export event.
func (e *Exporter) Export(ctx context.Context, title string, format Format) (*Report, error) {
	if format != FormatMarkdown && format != FormatHTML {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if strings.TrimSpace(title) == "" {
		title = "Investigation Report"
	}

	started := time.Now()
	markdown, stats, err := e.buildMarkdown(ctx, title)
	if err != nil {
		return nil, err
	}

	content := markdown
	ext := "md"
	if format == FormatHTML {
		var buf bytes.Buffer
		if err := e.md.Convert([]byte(markdown), &buf); err != nil {
			return nil, fmt.Errorf("rendering report html: %w", err)
		}
		content = wrapHTML(title, buf.String())
		ext = "html"
	}

	report := &Report{
		Format:   format,
		FileName: fmt.Sprintf("report_%s.%s", time.Now().UTC().Format("20060102_150405"), ext),
		Content:  content,
	}
	if e.outDir != "" {
		report.Path = filepath.Join(e.outDir, report.FileName)
		if err := os.WriteFile(report.Path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing report: %w", err)
		}
	}

	e.auditLog.Record(ctx, audit.Event{
		Kind:        audit.KindExport,
		Actor:       audit.ActorUser,
		Title:       "Report Export",
		Description: fmt.Sprintf("Exported %q as %s", title, format),
		OutputFiles: []string{report.FileName},
		Metadata: audit.Metadata{
			RecordsProcessed: audit.IntPtr(stats.events),
			ExecutionTimeMs:  audit.Int64Ptr(time.Since(started).Milliseconds()),
			Parameters: map[string]any{
				"format":    string(format),
				"documents": stats.documents,
				"tasks":     stats.tasks,
			},
		},
		Status: audit.StatusCompleted,
	})

	return report, nil
}

type reportStats struct {
	documents int
	tasks     int
	events    int
}

func (e *Exporter) buildMarkdown(ctx context.Context, title string) (string, reportStats, error) {
	var stats reportStats

	docs, err := e.docs.List(ctx)
	if err != nil {
		return "", stats, fmt.Errorf("listing documents: %w", err)
	}
	tasks := e.tasks.List(ctx)
	events, err := e.auditLog.Query(ctx, audit.Filter{})
	if err != nil {
		return "", stats, fmt.Errorf("querying audit trail: %w", err)
	}
	stats = reportStats{documents: len(docs), tasks: len(tasks), events: len(events)}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Generated %s.\n\n", time.Now().UTC().Format("2006-01-02 15:04 UTC"))

	b.WriteString("## Documents\n\n")
	if len(docs) == 0 {
		b.WriteString("No documents uploaded.\n\n")
	} else {
		b.WriteString("| File | Kind | Type | Intelligence Level | Ingested |\n")
		b.WriteString("|------|------|------|--------------------|----------|\n")
		for _, doc := range docs {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				doc.FileName, doc.MimeKind, doc.DocumentType, doc.IntelligenceLevel,
				doc.IngestedAt.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Analysis Tasks\n\n")
	if len(tasks) == 0 {
		b.WriteString("No tasks run.\n\n")
	}
	for _, task := range tasks {
		fmt.Fprintf(&b, "### %s\n\n", task.OriginalInput)
		fmt.Fprintf(&b, "Stage: **%s**\n\n", task.Stage)
		if task.Plan != nil {
			fmt.Fprintf(&b, "%s\n\n", task.Plan.ParaphrasedTask)
		}
		if task.FailureReason != "" {
			fmt.Fprintf(&b, "Failure: %s\n\n", task.FailureReason)
		}
		if task.Result != nil {
			fmt.Fprintf(&b, "%s\n\n", task.Result.Summary)
			if len(task.Result.Rows) > 0 {
				b.WriteString("| Date | Source | Finding | Confidence |\n")
				b.WriteString("|------|--------|---------|------------|\n")
				for _, row := range task.Result.Rows {
					fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
						row.Date, row.Source, row.Finding, row.Confidence)
				}
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("## Audit Trail\n\n")
	if len(events) == 0 {
		b.WriteString("No recorded activity.\n")
	} else {
		b.WriteString("| # | Time | Kind | Actor | Title | Status |\n")
		b.WriteString("|---|------|------|-------|-------|--------|\n")
		for _, event := range events {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
				event.ID, event.Timestamp.Format("2006-01-02 15:04:05"),
				event.Kind, event.Actor, event.Title, event.Status)
		}
	}

	return b.String(), stats, nil
}

func wrapHTML(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, title, body)
}
