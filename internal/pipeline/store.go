package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/db"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/engine"
)

// Store persists task snapshots. The in-memory pipeline owns all
// transition logic; this store only makes tasks durable across restarts
// and queryable alongside the audit trail.
type Store struct {
	db *db.DB
}

// NewStore creates a task store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) save(ctx context.Context, task Task) error {
	contextIDs, err := json.Marshal(task.ContextDocumentIDs)
	if err != nil {
		return fmt.Errorf("marshalling context ids: %w", err)
	}
	outputs, err := json.Marshal(task.OutputFiles)
	if err != nil {
		return fmt.Errorf("marshalling output files: %w", err)
	}

	var planJSON, resultJSON sql.NullString
	if task.Plan != nil {
		data, err := json.Marshal(task.Plan)
		if err != nil {
			return fmt.Errorf("marshalling plan: %w", err)
		}
		planJSON = sql.NullString{String: string(data), Valid: true}
	}
	if task.Result != nil {
		data, err := json.Marshal(task.Result)
		if err != nil {
			return fmt.Errorf("marshalling result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	var parentID sql.NullString
	if task.ParentTaskID != "" {
		parentID = sql.NullString{String: task.ParentTaskID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, original_input, stage, parent_task_id, context_document_ids, plan, result, output_files, failure_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage = excluded.stage,
			plan = excluded.plan,
			result = excluded.result,
			output_files = excluded.output_files,
			failure_reason = excluded.failure_reason,
			updated_at = excluded.updated_at`,
		task.ID, task.OriginalInput, string(task.Stage), parentID,
		string(contextIDs), planJSON, resultJSON, string(outputs),
		task.FailureReason,
		task.CreatedAt.Format(time.RFC3339Nano),
		task.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving task: %w", err)
	}
	return nil
}

func (s *Store) loadAll(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_input, stage, parent_task_id, context_document_ids, plan, result, output_files, failure_reason, created_at, updated_at
		FROM tasks ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var (
			task                 Task
			stage                string
			parentID             sql.NullString
			contextIDs, outputs  string
			planJSON, resultJSON sql.NullString
			createdAt, updatedAt string
		)
		err := rows.Scan(&task.ID, &task.OriginalInput, &stage, &parentID,
			&contextIDs, &planJSON, &resultJSON, &outputs, &task.FailureReason,
			&createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}

		task.Stage = Stage(stage)
		if parentID.Valid {
			task.ParentTaskID = parentID.String
		}
		if err := json.Unmarshal([]byte(contextIDs), &task.ContextDocumentIDs); err != nil {
			task.ContextDocumentIDs = nil
		}
		if err := json.Unmarshal([]byte(outputs), &task.OutputFiles); err != nil {
			task.OutputFiles = nil
		}
		if planJSON.Valid {
			var plan engine.TaskPlan
			if err := json.Unmarshal([]byte(planJSON.String), &plan); err == nil {
				task.Plan = &plan
			}
		}
		if resultJSON.Valid {
			var result engine.TaskResult
			if err := json.Unmarshal([]byte(resultJSON.String), &result); err == nil {
				task.Result = &result
			}
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			task.CreatedAt = t
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
			task.UpdatedAt = t
		}

		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
