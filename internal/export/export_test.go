package export

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/db"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/engine"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/pipeline"
)

func setupExporter(t *testing.T, outDir string) (*Exporter, *docstore.Store, *pipeline.Pipeline, *audit.Log) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	auditLog, err := audit.NewLog(database)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	docs, err := docstore.NewStore(database, auditLog, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tasks, err := pipeline.New(engine.NewStaticEngine(), docs, auditLog, pipeline.NewStore(database))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	exporter, err := NewExporter(docs, tasks, auditLog, outDir)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	return exporter, docs, tasks, auditLog
}

func runTask(t *testing.T, tasks *pipeline.Pipeline, input string, docIDs []string) {
	t.Helper()
	ctx := context.Background()
	task, err := tasks.Submit(ctx, input, docIDs)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := tasks.Analyze(ctx, task.ID); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := tasks.Execute(ctx, task.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	tasks.Wait()
}

func TestExportMarkdown(t *testing.T) {
	exporter, docs, tasks, auditLog := setupExporter(t, "")
	ctx := context.Background()

	doc, err := docs.Add(ctx, docstore.RawFile{
		FileName: "Bank_Statements_Q3.xlsx",
		MimeKind: docstore.KindXLSX,
	}, docstore.TypeFinancial, docstore.LevelCritical, "Quarterly statements")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	runTask(t, tasks, "Analyze financial transactions", []string{doc.ID})

	report, err := exporter.Export(ctx, "Case 42", FormatMarkdown)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if report.Format != FormatMarkdown || !strings.HasSuffix(report.FileName, ".md") {
		t.Errorf("report = %+v", report)
	}

	for _, want := range []string{
		"# Case 42",
		"Bank_Statements_Q3.xlsx",
		"Analyze financial transactions",
		"## Audit Trail",
		"Task Execution Completed",
	} {
		if !strings.Contains(report.Content, want) {
			t.Errorf("report missing %q", want)
		}
	}

	// The export itself is audited.
	events, err := auditLog.Query(ctx, audit.Filter{Kind: audit.KindExport})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d export events, want 1", len(events))
	}
	if len(events[0].OutputFiles) != 1 || events[0].OutputFiles[0] != report.FileName {
		t.Errorf("export event outputs = %v", events[0].OutputFiles)
	}
}

func TestExportHTMLWritesFile(t *testing.T) {
	outDir := t.TempDir()
	exporter, docs, _, _ := setupExporter(t, outDir)
	ctx := context.Background()

	if _, err := docs.Add(ctx, docstore.RawFile{
		FileName: "witness.pdf",
		MimeKind: docstore.KindPDF,
	}, docstore.TypeStatement, docstore.LevelMedium, ""); err != nil {
		t.Fatalf("Add: %v", err)
	}

	report, err := exporter.Export(ctx, "Case 42", FormatHTML)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasSuffix(report.FileName, ".html") {
		t.Errorf("FileName = %q", report.FileName)
	}
	if !strings.Contains(report.Content, "<table>") {
		t.Error("html report should render the document table")
	}
	if !strings.Contains(report.Content, "witness.pdf") {
		t.Error("html report missing document name")
	}

	data, err := os.ReadFile(filepath.Join(outDir, report.FileName))
	if err != nil {
		t.Fatalf("reading written report: %v", err)
	}
	if string(data) != report.Content {
		t.Error("written file differs from returned content")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	exporter, _, _, auditLog := setupExporter(t, "")

	if _, err := exporter.Export(context.Background(), "x", Format("pdf")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}

	events, err := auditLog.Query(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("rejected export recorded %d events, want 0", len(events))
	}
}

func TestExportRoute(t *testing.T) {
	exporter, _, _, _ := setupExporter(t, "")

	r := chi.NewRouter()
	RegisterRoutes(r, exporter)

	req := httptest.NewRequest(http.MethodPost, "/api/export",
		strings.NewReader(`{"title": "Case 42"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Format != FormatMarkdown {
		t.Errorf("default format = %s, want markdown", report.Format)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/export",
		strings.NewReader(`{"title": "Case 42", "format": "docx"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported format status = %d, want 400", rec.Code)
	}
}
