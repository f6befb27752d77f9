package audit

import "time"

// EventKind categorizes what an audit event records.
type EventKind string

const (
	KindUpload   EventKind = "upload"
	KindAnalysis EventKind = "analysis"
	KindQuery    EventKind = "query"
	KindExport   EventKind = "export"
	KindChain    EventKind = "chain"
)

// Actor identifies who performed an action.
type Actor string

const (
	ActorUser Actor = "user"
	ActorAI   Actor = "ai"
)

// Status describes the outcome of the operation an event records.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusInProgress Status = "in_progress"
)

// Metadata carries optional measurements attached to an event.
// Confidence, when set, is a percentage in [0,100].
type Metadata struct {
	Confidence       *float64       `json:"confidence,omitempty"`
	RecordsProcessed *int           `json:"records_processed,omitempty"`
	ExecutionTimeMs  *int64         `json:"execution_time_ms,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
}

// Event is a single audit trail record. Events are append-only: once
// recorded they are never mutated or deleted. ID is assigned by the Log
// at record time from a monotonically increasing counter, which is the
// authoritative ordering (not wall-clock timestamps).
//
// SourceFiles and OutputFiles hold snapshot file names, not live document
// references, so removing a document never rewrites history.
type Event struct {
	ID                  int64     `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	Kind                EventKind `json:"kind"`
	Actor               Actor     `json:"actor"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	SourceFiles         []string  `json:"source_files,omitempty"`
	OutputFiles         []string  `json:"output_files,omitempty"`
	TransformationLogic string    `json:"transformation_logic,omitempty"`
	Metadata            Metadata  `json:"metadata"`
	Status              Status    `json:"status"`
}

// Filter controls which events Query returns. Zero-valued fields match
// everything in their dimension.
type Filter struct {
	Text  string    // case-insensitive substring over title or description
	Kind  EventKind // exact match on kind
	Actor Actor     // exact match on actor
	Limit int       // 0 means no limit
}

// IntPtr, Int64Ptr and Float64Ptr are small helpers for building Metadata.
func IntPtr(v int) *int             { return &v }
func Int64Ptr(v int64) *int64       { return &v }
func Float64Ptr(v float64) *float64 { return &v }
