package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/engine"
)

// Pipeline is the task state machine. Each task is guarded by its own
// mutex, making the stage check and the transition a single indivisible
// step; different tasks proceed fully in parallel. The audit log's id
// counter is the only cross-task serialization point.
type Pipeline struct {
	engine   engine.AnalysisEngine
	docs     *docstore.Store
	auditLog *audit.Log
	store    *Store
	notifier Notifier

	mu    sync.RWMutex
	tasks map[string]*taskEntry
	wg    sync.WaitGroup
}

type taskEntry struct {
	mu   sync.Mutex
	task Task
}

// New creates a pipeline and restores previously persisted tasks. Tasks
// caught mid-execution by a restart are failed, since their engine call
// is gone.
func New(eng engine.AnalysisEngine, docs *docstore.Store, auditLog *audit.Log, store *Store) (*Pipeline, error) {
	p := &Pipeline{
		engine:   eng,
		docs:     docs,
		auditLog: auditLog,
		store:    store,
		tasks:    make(map[string]*taskEntry),
	}

	restored, err := store.loadAll(context.Background())
	if err != nil {
		return nil, fmt.Errorf("restoring tasks: %w", err)
	}
	for _, task := range restored {
		if task.Stage == StageExecuting {
			task.Stage = StageFailed
			task.FailureReason = "execution interrupted by process restart"
			task.UpdatedAt = time.Now().UTC()
			if err := store.save(context.Background(), task); err != nil {
				return nil, err
			}
			p.auditLog.Record(context.Background(), audit.Event{
				Kind:        audit.KindAnalysis,
				Actor:       audit.ActorAI,
				Title:       "Task Execution Failed",
				Description: "Execution interrupted by process restart",
				Status:      audit.StatusFailed,
				Metadata:    audit.Metadata{Parameters: map[string]any{"task_id": task.ID}},
			})
		}
		p.tasks[task.ID] = &taskEntry{task: task}
	}

	return p, nil
}

// SetNotifier installs the completion notifier. Must be called before
// any task operations begin.
func (p *Pipeline) SetNotifier(n Notifier) { p.notifier = n }

// Wait blocks until all in-flight executions have finished. Used during
// shutdown and in tests.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Submit creates a task in the submitted stage. The document ids are
// captured by value, so later document removals do not affect the task's
// context snapshot. Submit is deliberately cheap: it does not touch the
// analysis engine and records no audit event.
func (p *Pipeline) Submit(ctx context.Context, input string, documentIDs []string) (*Task, error) {
	return p.submit(ctx, input, documentIDs, "")
}

func (p *Pipeline) submit(ctx context.Context, input string, documentIDs []string, parentID string) (*Task, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	now := time.Now().UTC()
	task := Task{
		ID:                 uuid.New().String(),
		OriginalInput:      input,
		Stage:              StageSubmitted,
		ParentTaskID:       parentID,
		ContextDocumentIDs: append([]string(nil), documentIDs...),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := p.store.save(ctx, task); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.tasks[task.ID] = &taskEntry{task: task}
	p.mu.Unlock()

	p.notify(task)
	return copyTask(task), nil
}

// Analyze requests a plan for a submitted task. Engine failure is not an
// error to the caller: it is absorbed into the failed stage and recorded
// in the audit log, so the returned task always reflects the outcome.
func (p *Pipeline) Analyze(ctx context.Context, taskID string) (*Task, error) {
	entry, err := p.entry(taskID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.task.Stage != StageSubmitted {
		return nil, fmt.Errorf("%w: analyze requires stage %s, task is %s",
			ErrInvalidTransition, StageSubmitted, entry.task.Stage)
	}

	docs, err := p.docs.GetMany(ctx, entry.task.ContextDocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving context documents: %w", err)
	}

	started := time.Now()
	plan, planErr := p.engine.Plan(ctx, entry.task.OriginalInput, docs)
	elapsed := time.Since(started).Milliseconds()

	if planErr != nil {
		p.failLocked(ctx, entry, "Task Analysis Failed", planErr, docs, elapsed)
		return copyTask(entry.task), nil
	}

	entry.task.Plan = plan
	entry.task.Stage = StageAnalyzed
	entry.task.UpdatedAt = time.Now().UTC()
	p.persist(ctx, entry.task)

	p.auditLog.Record(ctx, audit.Event{
		Kind:                audit.KindAnalysis,
		Actor:               audit.ActorAI,
		Title:               "Task Analysis",
		Description:         plan.ParaphrasedTask,
		SourceFiles:         docNames(docs),
		TransformationLogic: plan.LogicSummary,
		Metadata: audit.Metadata{
			ExecutionTimeMs: audit.Int64Ptr(elapsed),
			Parameters:      map[string]any{"task_id": entry.task.ID},
		},
		Status: audit.StatusCompleted,
	})

	p.notify(entry.task)
	return copyTask(entry.task), nil
}

// Execute runs an analyzed task. The transition to executing happens
// before the engine call, under the task lock, so a concurrent Execute
// observes the executing stage and fails with ErrInvalidTransition:
// execution is at most once per task. Execute returns immediately; the
// engine call proceeds in the background and its completion is observed
// via Get or the notifier. Cancelling ctx fails the task with the
// cancellation recorded in the audit trail.
func (p *Pipeline) Execute(ctx context.Context, taskID string) (*Task, error) {
	entry, err := p.entry(taskID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	if entry.task.Stage != StageAnalyzed {
		stage := entry.task.Stage
		entry.mu.Unlock()
		return nil, fmt.Errorf("%w: execute requires stage %s, task is %s",
			ErrInvalidTransition, StageAnalyzed, stage)
	}

	entry.task.Stage = StageExecuting
	entry.task.UpdatedAt = time.Now().UTC()
	p.persist(ctx, entry.task)

	snapshot := copyTask(entry.task)
	entry.mu.Unlock()

	p.notify(*snapshot)

	p.wg.Add(1)
	go p.runExecution(ctx, entry, snapshot.Plan, snapshot.ContextDocumentIDs)

	return snapshot, nil
}

func (p *Pipeline) runExecution(ctx context.Context, entry *taskEntry, plan *engine.TaskPlan, documentIDs []string) {
	defer p.wg.Done()

	docs, err := p.docs.GetMany(ctx, documentIDs)
	started := time.Now()
	var result *engine.TaskResult
	if err == nil {
		result, err = p.engine.Run(ctx, plan, docs)
	}
	elapsed := time.Since(started).Milliseconds()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err != nil {
		p.failLocked(ctx, entry, "Task Execution Failed", err, docs, elapsed)
		return
	}

	entry.task.Result = result
	entry.task.OutputFiles = []string{outputFileName(entry.task.ID)}
	entry.task.Stage = StageCompleted
	entry.task.UpdatedAt = time.Now().UTC()
	p.persist(ctx, entry.task)

	confidence := result.Confidence
	if confidence == nil {
		confidence = audit.Float64Ptr(deriveConfidence(result.Rows))
	}

	p.auditLog.Record(ctx, audit.Event{
		Kind:        audit.KindAnalysis,
		Actor:       audit.ActorAI,
		Title:       "Task Execution Completed",
		Description: result.Summary,
		SourceFiles: docNames(docs),
		OutputFiles: append([]string(nil), entry.task.OutputFiles...),
		Metadata: audit.Metadata{
			Confidence:       confidence,
			RecordsProcessed: audit.IntPtr(len(result.Rows)),
			ExecutionTimeMs:  audit.Int64Ptr(elapsed),
			Parameters:       map[string]any{"task_id": entry.task.ID},
		},
		Status: audit.StatusCompleted,
	})

	p.notify(entry.task)
}

// Chain creates a new task seeded with a completed parent's outputs.
func (p *Pipeline) Chain(ctx context.Context, parentTaskID, input string) (*Task, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	parent, err := p.entry(parentTaskID)
	if err != nil {
		return nil, err
	}

	parent.mu.Lock()
	if parent.task.Stage != StageCompleted {
		stage := parent.task.Stage
		parent.mu.Unlock()
		return nil, fmt.Errorf("%w: parent is %s", ErrParentNotCompleted, stage)
	}
	parentOutputs := append([]string(nil), parent.task.OutputFiles...)
	parentInput := parent.task.OriginalInput
	parent.mu.Unlock()

	task, err := p.submit(ctx, input, parentOutputs, parentTaskID)
	if err != nil {
		return nil, err
	}

	p.auditLog.Record(ctx, audit.Event{
		Kind:        audit.KindChain,
		Actor:       audit.ActorUser,
		Title:       "Chained Analysis Task",
		Description: fmt.Sprintf("Connected results of %q to a new analysis task", parentInput),
		SourceFiles: parentOutputs,
		Metadata: audit.Metadata{
			Parameters: map[string]any{
				"parent_task_id": parentTaskID,
				"task_id":        task.ID,
			},
		},
		Status: audit.StatusCompleted,
	})

	return task, nil
}

// Get returns a snapshot of a task.
func (p *Pipeline) Get(ctx context.Context, taskID string) (*Task, error) {
	entry, err := p.entry(taskID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return copyTask(entry.task), nil
}

// List returns snapshots of all tasks, newest first.
func (p *Pipeline) List(ctx context.Context) []Task {
	p.mu.RLock()
	entries := make([]*taskEntry, 0, len(p.tasks))
	for _, entry := range p.tasks {
		entries = append(entries, entry)
	}
	p.mu.RUnlock()

	tasks := make([]Task, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		tasks = append(tasks, *copyTask(entry.task))
		entry.mu.Unlock()
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

// failLocked moves the task to failed and records the failure. The error
// reason is kept in the audit description so the failure is auditable;
// cancellations are labelled as such. Caller holds entry.mu.
func (p *Pipeline) failLocked(ctx context.Context, entry *taskEntry, title string, cause error, docs []docstore.Document, elapsedMs int64) {
	reason := cause.Error()
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		reason = "cancelled: " + reason
	}

	entry.task.Stage = StageFailed
	entry.task.FailureReason = reason
	entry.task.UpdatedAt = time.Now().UTC()
	p.persist(ctx, entry.task)

	p.auditLog.Record(ctx, audit.Event{
		Kind:        audit.KindAnalysis,
		Actor:       audit.ActorAI,
		Title:       title,
		Description: reason,
		SourceFiles: docNames(docs),
		Metadata: audit.Metadata{
			ExecutionTimeMs: audit.Int64Ptr(elapsedMs),
			Parameters:      map[string]any{"task_id": entry.task.ID},
		},
		Status: audit.StatusFailed,
	})

	p.notify(entry.task)
}

func (p *Pipeline) entry(taskID string) (*taskEntry, error) {
	p.mu.RLock()
	entry, ok := p.tasks[taskID]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	return entry, nil
}

// persist writes through to the task store. Persistence failures are
// logged, not propagated: the in-memory state machine remains the
// authority for transitions.
func (p *Pipeline) persist(ctx context.Context, task Task) {
	if err := p.store.save(ctx, task); err != nil {
		log.Printf("pipeline: persisting task %s: %v", task.ID, err)
	}
}

func (p *Pipeline) notify(task Task) {
	if p.notifier != nil {
		p.notifier.TaskUpdated(*copyTask(task))
	}
}

// deriveConfidence is the proportion of high-confidence rows, as a
// percentage. No rows means no signal, reported as zero.
func deriveConfidence(rows []engine.ResultRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	high := 0
	for _, row := range rows {
		if row.Confidence == engine.ConfidenceHigh {
			high++
		}
	}
	return float64(high) / float64(len(rows)) * 100
}

func outputFileName(taskID string) string {
	short := taskID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Task_%s_Results.json", short)
}

func docNames(docs []docstore.Document) []string {
	if len(docs) == 0 {
		return nil
	}
	names := make([]string, len(docs))
	for i, doc := range docs {
		names[i] = doc.FileName
	}
	return names
}

func copyTask(task Task) *Task {
	dup := task
	dup.ContextDocumentIDs = append([]string(nil), task.ContextDocumentIDs...)
	dup.OutputFiles = append([]string(nil), task.OutputFiles...)
	if task.Plan != nil {
		plan := *task.Plan
		dup.Plan = &plan
	}
	if task.Result != nil {
		result := *task.Result
		result.Rows = append([]engine.ResultRow(nil), task.Result.Rows...)
		dup.Result = &result
	}
	return &dup
}
