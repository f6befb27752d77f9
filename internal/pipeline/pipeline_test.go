package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/db"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/engine"
)

// stubEngine lets tests control planning and execution outcomes.
type stubEngine struct {
	planErr error
	runErr  error
	runGate chan struct{} // when non-nil, Run blocks until closed
	result  *engine.TaskResult
}

func (s *stubEngine) Plan(ctx context.Context, input string, docs []docstore.Document) (*engine.TaskPlan, error) {
	if s.planErr != nil {
		return nil, s.planErr
	}
	return &engine.TaskPlan{
		ParaphrasedTask: "Analysis Request: " + input,
		LogicSummary:    "stub plan",
		SuggestedFormat: "Table",
		EstimatedTime:   "instant",
	}, nil
}

func (s *stubEngine) Run(ctx context.Context, plan *engine.TaskPlan, docs []docstore.Document) (*engine.TaskResult, error) {
	if s.runGate != nil {
		select {
		case <-s.runGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.runErr != nil {
		return nil, s.runErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &engine.TaskResult{Summary: "stub result", Rows: nil}, nil
}

func (s *stubEngine) Answer(ctx context.Context, q engine.ClassifiedQuery, docs []docstore.Document) (*engine.TypedResponse, error) {
	return &engine.TypedResponse{Kind: engine.ResponseText, Text: "stub answer"}, nil
}

type fixture struct {
	pipeline *Pipeline
	docs     *docstore.Store
	auditLog *audit.Log
	database *db.DB
}

func setup(t *testing.T, eng engine.AnalysisEngine) *fixture {
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
	p, err := New(eng, docs, auditLog, NewStore(database))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{pipeline: p, docs: docs, auditLog: auditLog, database: database}
}

// waitForTerminal polls until the task leaves the executing stage.
func waitForTerminal(t *testing.T, p *Pipeline, id string) *Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := p.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if task.Stage.Terminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal stage")
	return nil
}

func TestFullScenario(t *testing.T) {
	f := setup(t, engine.NewStaticEngine())
	ctx := context.Background()

	doc, err := f.docs.Add(ctx, docstore.RawFile{
		FileName: "Financial_Records_C.xlsx",
		MimeKind: docstore.KindXLSX,
	}, docstore.TypeFinancial, docstore.LevelHigh, "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	task, err := f.pipeline.Submit(ctx, "Analyze financial transactions", []string{doc.ID})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if task.Stage != StageSubmitted {
		t.Fatalf("stage after submit = %s", task.Stage)
	}

	task, err = f.pipeline.Analyze(ctx, task.ID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if task.Stage != StageAnalyzed {
		t.Fatalf("stage after analyze = %s", task.Stage)
	}
	if task.Plan == nil || !strings.Contains(task.Plan.ParaphrasedTask, "Analyze financial transactions") {
		t.Errorf("plan paraphrase should contain the original input, got %+v", task.Plan)
	}

	task, err = f.pipeline.Execute(ctx, task.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if task.Stage != StageExecuting {
		t.Fatalf("Execute should return immediately in executing stage, got %s", task.Stage)
	}

	task = waitForTerminal(t, f.pipeline, task.ID)
	if task.Stage != StageCompleted {
		t.Fatalf("stage = %s, want completed (%s)", task.Stage, task.FailureReason)
	}
	if task.Result == nil || task.Result.Summary == "" {
		t.Error("expected a result with a non-empty summary")
	}
	if len(task.OutputFiles) != 1 {
		t.Errorf("OutputFiles = %v, want one synthesized artifact", task.OutputFiles)
	}

	// Exactly two analysis events, in id order: the analysis and the completion.
	events, err := f.auditLog.Query(ctx, audit.Filter{Kind: audit.KindAnalysis})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d analysis events, want 2", len(events))
	}
	if events[0].ID >= events[1].ID {
		t.Error("events out of id order")
	}
	if events[0].Title != "Task Analysis" || events[1].Title != "Task Execution Completed" {
		t.Errorf("event titles = %q, %q", events[0].Title, events[1].Title)
	}
	if events[1].Metadata.RecordsProcessed == nil || *events[1].Metadata.RecordsProcessed != len(task.Result.Rows) {
		t.Errorf("completion event RecordsProcessed = %v", events[1].Metadata.RecordsProcessed)
	}
}

func TestSubmitEmptyInput(t *testing.T) {
	f := setup(t, engine.NewStaticEngine())
	ctx := context.Background()

	for _, input := range []string{"", "   ", "\n\t"} {
		if _, err := f.pipeline.Submit(ctx, input, nil); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Submit(%q) err = %v, want ErrEmptyInput", input, err)
		}
	}

	if tasks := f.pipeline.List(ctx); len(tasks) != 0 {
		t.Errorf("got %d tasks, want 0", len(tasks))
	}
	events, err := f.auditLog.Query(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d audit events, want 0", len(events))
	}
}

func TestStageGuards(t *testing.T) {
	f := setup(t, engine.NewStaticEngine())
	ctx := context.Background()

	task, err := f.pipeline.Submit(ctx, "inspect records", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Execute before analyze is rejected.
	if _, err := f.pipeline.Execute(ctx, task.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Execute on submitted task: err = %v, want ErrInvalidTransition", err)
	}

	if _, err := f.pipeline.Analyze(ctx, task.ID); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Analyze twice is rejected and leaves the task untouched.
	if _, err := f.pipeline.Analyze(ctx, task.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Analyze: err = %v, want ErrInvalidTransition", err)
	}
	got, _ := f.pipeline.Get(ctx, task.ID)
	if got.Stage != StageAnalyzed {
		t.Errorf("stage = %s, want analyzed", got.Stage)
	}
}

func TestExecuteAtMostOnce(t *testing.T) {
	eng := &stubEngine{runGate: make(chan struct{})}
	f := setup(t, eng)
	ctx := context.Background()

	task, err := f.pipeline.Submit(ctx, "long analysis", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.pipeline.Analyze(ctx, task.ID); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	const callers = 4
	var (
		wg        sync.WaitGroup
		successes int
		rejects   int
		mu        sync.Mutex
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Execute(ctx, task.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, ErrInvalidTransition) {
				rejects++
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejects != callers-1 {
		t.Fatalf("successes = %d, rejects = %d; want exactly one execution", successes, rejects)
	}

	close(eng.runGate)
	f.pipeline.Wait()

	got := waitForTerminal(t, f.pipeline, task.ID)
	if got.Stage != StageCompleted {
		t.Fatalf("stage = %s, want completed", got.Stage)
	}

	// Exactly one completion event.
	events, err := f.auditLog.Query(ctx, audit.Filter{Text: "Execution"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d execution events, want 1", len(events))
	}
}

func TestAnalyzeEngineFailureIsAbsorbed(t *testing.T) {
	f := setup(t, &stubEngine{planErr: fmt.Errorf("model unavailable")})
	ctx := context.Background()

	task, err := f.pipeline.Submit(ctx, "doomed task", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Engine failure is not an error: the returned task reflects it.
	got, err := f.pipeline.Analyze(ctx, task.ID)
	if err != nil {
		t.Fatalf("Analyze returned error for engine failure: %v", err)
	}
	if got.Stage != StageFailed {
		t.Fatalf("stage = %s, want failed", got.Stage)
	}
	if !strings.Contains(got.FailureReason, "model unavailable") {
		t.Errorf("FailureReason = %q", got.FailureReason)
	}

	events, err := f.auditLog.Query(ctx, audit.Filter{Kind: audit.KindAnalysis})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 || events[0].Status != audit.StatusFailed {
		t.Fatalf("events = %+v, want one failed analysis event", events)
	}
	if !strings.Contains(events[0].Description, "model unavailable") {
		t.Errorf("failure reason not retained in event description: %q", events[0].Description)
	}

	// Failed tasks stay visible.
	if _, err := f.pipeline.Get(ctx, task.ID); err != nil {
		t.Errorf("failed task should remain inspectable: %v", err)
	}
}

func TestExecuteEngineFailureIsAbsorbed(t *testing.T) {
	f := setup(t, &stubEngine{runErr: fmt.Errorf("engine crashed")})
	ctx := context.Background()

	task, _ := f.pipeline.Submit(ctx, "task", nil)
	f.pipeline.Analyze(ctx, task.ID)
	if _, err := f.pipeline.Execute(ctx, task.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	f.pipeline.Wait()

	got := waitForTerminal(t, f.pipeline, task.ID)
	if got.Stage != StageFailed || !strings.Contains(got.FailureReason, "engine crashed") {
		t.Fatalf("task = %+v", got)
	}
}

func TestExecuteCancellation(t *testing.T) {
	eng := &stubEngine{runGate: make(chan struct{})}
	f := setup(t, eng)

	task, _ := f.pipeline.Submit(context.Background(), "task", nil)
	f.pipeline.Analyze(context.Background(), task.ID)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := f.pipeline.Execute(ctx, task.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cancel()
	f.pipeline.Wait()

	got := waitForTerminal(t, f.pipeline, task.ID)
	if got.Stage != StageFailed {
		t.Fatalf("stage = %s, want failed", got.Stage)
	}
	if !strings.Contains(got.FailureReason, "cancelled") {
		t.Errorf("FailureReason = %q, want a cancelled reason", got.FailureReason)
	}
}

func TestChain(t *testing.T) {
	f := setup(t, engine.NewStaticEngine())
	ctx := context.Background()

	parent, _ := f.pipeline.Submit(ctx, "find transactions", nil)
	f.pipeline.Analyze(ctx, parent.ID)
	f.pipeline.Execute(ctx, parent.ID)
	f.pipeline.Wait()
	parentDone := waitForTerminal(t, f.pipeline, parent.ID)

	child, err := f.pipeline.Chain(ctx, parent.ID, "correlate with timeline")
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if child.ParentTaskID != parent.ID {
		t.Errorf("ParentTaskID = %q, want %q", child.ParentTaskID, parent.ID)
	}
	if child.Stage != StageSubmitted {
		t.Errorf("child stage = %s, want submitted", child.Stage)
	}
	if len(child.ContextDocumentIDs) != len(parentDone.OutputFiles) {
		t.Errorf("child context %v not seeded from parent outputs %v", child.ContextDocumentIDs, parentDone.OutputFiles)
	}

	// The chain event's sources are the parent's outputs.
	events, err := f.auditLog.Query(ctx, audit.Filter{Kind: audit.KindChain})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d chain events, want 1", len(events))
	}
	if len(events[0].SourceFiles) != len(parentDone.OutputFiles) || events[0].SourceFiles[0] != parentDone.OutputFiles[0] {
		t.Errorf("chain sources = %v, want %v", events[0].SourceFiles, parentDone.OutputFiles)
	}
}

func TestChainRequiresCompletedParent(t *testing.T) {
	f := setup(t, &stubEngine{planErr: fmt.Errorf("boom")})
	ctx := context.Background()

	parent, _ := f.pipeline.Submit(ctx, "task", nil)
	f.pipeline.Analyze(ctx, parent.ID) // fails the task

	before, _ := f.auditLog.Query(ctx, audit.Filter{})

	if _, err := f.pipeline.Chain(ctx, parent.ID, "follow-up"); !errors.Is(err, ErrParentNotCompleted) {
		t.Fatalf("err = %v, want ErrParentNotCompleted", err)
	}

	// No new task and no new audit event.
	if tasks := f.pipeline.List(ctx); len(tasks) != 1 {
		t.Errorf("got %d tasks, want 1", len(tasks))
	}
	after, _ := f.auditLog.Query(ctx, audit.Filter{})
	if len(after) != len(before) {
		t.Errorf("chain on failed parent recorded an event")
	}
}

func TestChainProvenanceIsAcyclic(t *testing.T) {
	f := setup(t, engine.NewStaticEngine())
	ctx := context.Background()

	run := func(input, parentID string) *Task {
		t.Helper()
		var task *Task
		var err error
		if parentID == "" {
			task, err = f.pipeline.Submit(ctx, input, nil)
		} else {
			task, err = f.pipeline.Chain(ctx, parentID, input)
		}
		if err != nil {
			t.Fatalf("creating task: %v", err)
		}
		if _, err := f.pipeline.Analyze(ctx, task.ID); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if _, err := f.pipeline.Execute(ctx, task.ID); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		f.pipeline.Wait()
		return waitForTerminal(t, f.pipeline, task.ID)
	}

	current := run("root analysis", "")
	for i := 0; i < 4; i++ {
		current = run(fmt.Sprintf("chained analysis %d", i), current.ID)
	}

	// Walk the ancestor chain; it must terminate without revisiting ids.
	seen := map[string]bool{}
	id := current.ID
	for id != "" {
		if seen[id] {
			t.Fatalf("provenance cycle at %s", id)
		}
		seen[id] = true
		task, err := f.pipeline.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get ancestor: %v", err)
		}
		id = task.ParentTaskID
	}
	if len(seen) != 5 {
		t.Errorf("ancestor chain length = %d, want 5", len(seen))
	}
}

func TestConfidenceDerivedFromRows(t *testing.T) {
	eng := &stubEngine{result: &engine.TaskResult{
		Summary: "two findings",
		Rows: []engine.ResultRow{
			{Date: "2024-01-15", Source: "a.pdf", Finding: "x", Confidence: engine.ConfidenceHigh},
			{Date: "2024-01-16", Source: "b.pdf", Finding: "y", Confidence: engine.ConfidenceLow},
		},
	}}
	f := setup(t, eng)
	ctx := context.Background()

	task, _ := f.pipeline.Submit(ctx, "task", nil)
	f.pipeline.Analyze(ctx, task.ID)
	f.pipeline.Execute(ctx, task.ID)
	f.pipeline.Wait()
	waitForTerminal(t, f.pipeline, task.ID)

	events, err := f.auditLog.Query(ctx, audit.Filter{Text: "Execution Completed"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d completion events", len(events))
	}
	c := events[0].Metadata.Confidence
	if c == nil || *c != 50 {
		t.Errorf("Confidence = %v, want 50 (1 of 2 rows High)", c)
	}
	if *c < 0 || *c > 100 {
		t.Errorf("confidence out of range: %v", *c)
	}
}

func TestRestartFailsInterruptedExecutions(t *testing.T) {
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
	store := NewStore(database)

	// Simulate a task persisted mid-execution by a previous process.
	now := time.Now().UTC()
	interrupted := Task{
		ID:            "stuck-task",
		OriginalInput: "long analysis",
		Stage:         StageExecuting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.save(context.Background(), interrupted); err != nil {
		t.Fatalf("save: %v", err)
	}

	p, err := New(engine.NewStaticEngine(), docs, auditLog, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Get(context.Background(), "stuck-task")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Stage != StageFailed {
		t.Errorf("stage = %s, want failed after restart", got.Stage)
	}
}

func TestTaskRoutes(t *testing.T) {
	f := setup(t, engine.NewStaticEngine())

	r := chi.NewRouter()
	RegisterRoutes(r, f.pipeline)

	// Submit.
	body := strings.NewReader(`{"input": "Analyze financial transactions"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var task Task
	if err := json.NewDecoder(rec.Body).Decode(&task); err != nil {
		t.Fatalf("decoding task: %v", err)
	}

	// Empty input is a validation error.
	req = httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"input": "  "}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty submit status = %d, want 400", rec.Code)
	}

	// Analyze.
	req = httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/analyze", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rec.Code, rec.Body)
	}

	// Execute returns 202 immediately.
	req = httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/execute", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("execute status = %d, want 202: %s", rec.Code, rec.Body)
	}
	f.pipeline.Wait()

	// Re-execute conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/execute", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("re-execute status = %d, want 409", rec.Code)
	}

	// Unknown task is 404.
	req = httptest.NewRequest(http.MethodGet, "/api/tasks/nope", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d, want 404", rec.Code)
	}
}

func TestNotifierObservesLifecycle(t *testing.T) {
	f := setup(t, engine.NewStaticEngine())
	ctx := context.Background()

	var mu sync.Mutex
	var stages []Stage
	f.pipeline.SetNotifier(NotifierFunc(func(task Task) {
		mu.Lock()
		stages = append(stages, task.Stage)
		mu.Unlock()
	}))

	task, _ := f.pipeline.Submit(ctx, "task", nil)
	f.pipeline.Analyze(ctx, task.ID)
	f.pipeline.Execute(ctx, task.ID)
	f.pipeline.Wait()
	waitForTerminal(t, f.pipeline, task.ID)

	mu.Lock()
	defer mu.Unlock()
	want := []Stage{StageSubmitted, StageAnalyzed, StageExecuting, StageCompleted}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stages[%d] = %s, want %s", i, stages[i], want[i])
		}
	}
}
