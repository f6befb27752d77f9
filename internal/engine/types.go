package engine

// TaskPlan describes how a submitted task will be carried out. Produced
// once per task and immutable afterwards.
type TaskPlan struct {
	ParaphrasedTask string `json:"paraphrased_task"`
	LogicSummary    string `json:"logic_summary"`
	SuggestedFormat string `json:"suggested_format"`
	EstimatedTime   string `json:"estimated_time"`
}

// Confidence grades a single finding.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// ResultRow is one finding in a task result.
type ResultRow struct {
	Date       string     `json:"date"`
	Source     string     `json:"source"`
	Finding    string     `json:"finding"`
	Confidence Confidence `json:"confidence"`
}

// TaskResult is the output of executing a task. Immutable once attached.
// Confidence, when the engine supplies one, is a percentage in [0,100];
// when nil the pipeline derives it from the rows.
type TaskResult struct {
	Summary    string      `json:"summary"`
	Rows       []ResultRow `json:"rows"`
	Confidence *float64    `json:"confidence,omitempty"`
}

// ResponseKind tags the shape of a conversational answer.
type ResponseKind string

const (
	ResponseTimeline  ResponseKind = "timeline"
	ResponseTable     ResponseKind = "table"
	ResponseFinancial ResponseKind = "financial"
	ResponseText      ResponseKind = "text"
)

// ClassifiedQuery is a free-text question plus the response shape the
// router classified it into.
type ClassifiedQuery struct {
	Text string       `json:"text"`
	Kind ResponseKind `json:"kind"`
}

// TimelineEvent is one entry of a timeline response.
type TimelineEvent struct {
	Date   string `json:"date"`
	Event  string `json:"event"`
	Detail string `json:"detail,omitempty"`
}

// Table is a column/row shaped response.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// FinancialSummary is an aggregate financial response.
type FinancialSummary struct {
	TotalAmount     string `json:"total_amount"`
	SuspiciousCount int    `json:"suspicious_count"`
	Note            string `json:"note"`
}

// TypedResponse is the tagged result of answering a query. Kind selects
// which payload field is populated; Text is always set and doubles as
// the exhaustive fallback.
type TypedResponse struct {
	Kind      ResponseKind      `json:"kind"`
	Text      string            `json:"text"`
	Timeline  []TimelineEvent   `json:"timeline,omitempty"`
	Table     *Table            `json:"table,omitempty"`
	Financial *FinancialSummary `json:"financial,omitempty"`
}
