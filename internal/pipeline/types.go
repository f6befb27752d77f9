package pipeline

import (
	"errors"
	"time"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/engine"
)

// Stage is the discrete lifecycle position of a task. Transitions only
// move forward along submitted -> analyzed -> executing -> completed or
// failed; a task never regresses.
type Stage string

const (
	StageSubmitted Stage = "submitted"
	StageAnalyzed  Stage = "analyzed"
	StageExecuting Stage = "executing"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

var (
	// ErrEmptyInput is returned when a task submission has no text.
	ErrEmptyInput = errors.New("task input is empty")

	// ErrNotFound is returned when no task has the given id.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when an operation is called on a
	// task in the wrong stage. The task is left untouched.
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrParentNotCompleted is returned by Chain when the parent task is
	// not in the completed stage.
	ErrParentNotCompleted = errors.New("parent task is not completed")
)

// Task is a unit of investigative work tracked through the pipeline.
// ParentTaskID links a chained task to the completed task whose output
// seeded it; the resulting provenance tree is acyclic by construction,
// because tasks are always freshly created and never re-parented.
type Task struct {
	ID                 string             `json:"id"`
	OriginalInput      string             `json:"original_input"`
	Stage              Stage              `json:"stage"`
	ParentTaskID       string             `json:"parent_task_id,omitempty"`
	ContextDocumentIDs []string           `json:"context_document_ids"`
	Plan               *engine.TaskPlan   `json:"plan,omitempty"`
	Result             *engine.TaskResult `json:"result,omitempty"`
	OutputFiles        []string           `json:"output_files,omitempty"`
	FailureReason      string             `json:"failure_reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Notifier receives task snapshots after every stage change, letting
// callers observe completion without polling.
type Notifier interface {
	TaskUpdated(task Task)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Task)

func (f NotifierFunc) TaskUpdated(task Task) { f(task) }
