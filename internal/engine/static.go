package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
)

// StaticEngine is a deterministic AnalysisEngine that derives plans and
// findings from document metadata alone. It is the default when no API
// key is configured and the engine used throughout the tests.
type StaticEngine struct{}

// NewStaticEngine creates a static engine.
func NewStaticEngine() *StaticEngine {
	return &StaticEngine{}
}

func (e *StaticEngine) Plan(ctx context.Context, input string, docs []docstore.Document) (*TaskPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &TaskPlan{
		ParaphrasedTask: fmt.Sprintf("Analysis Request: %s", input),
		LogicSummary: fmt.Sprintf(
			"Process %d uploaded documents and extract relevant information based on pattern recognition and keyword analysis.",
			len(docs)),
		SuggestedFormat: "Table with columns: Date, Source, Finding, Confidence Level",
		EstimatedTime:   "2-3 minutes",
	}, nil
}

// findingTemplates maps document types to the finding each one yields.
var findingTemplates = map[docstore.DocumentType]struct {
	finding    string
	confidence Confidence
}{
	docstore.TypeFinancial:     {"Suspicious transaction pattern above reporting threshold", ConfidenceHigh},
	docstore.TypeStatement:     {"Meeting mentioned at Central Plaza", ConfidenceMedium},
	docstore.TypeCommunication: {"Phone call to unknown number", ConfidenceHigh},
	docstore.TypeEvidence:      {"Timestamp inconsistency across referenced records", ConfidenceMedium},
	docstore.TypeReport:        {"Cross-reference to previously flagged entity", ConfidenceLow},
}

func (e *StaticEngine) Run(ctx context.Context, plan *TaskPlan, docs []docstore.Document) (*TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]ResultRow, 0, len(docs))
	for i, doc := range docs {
		tmpl, ok := findingTemplates[doc.DocumentType]
		if !ok {
			tmpl = findingTemplates[docstore.TypeEvidence]
		}
		rows = append(rows, ResultRow{
			Date:       fmt.Sprintf("2024-01-%02d", 15+i),
			Source:     doc.FileName,
			Finding:    tmpl.finding,
			Confidence: tmpl.confidence,
		})
	}

	return &TaskResult{
		Summary: fmt.Sprintf("Found %d significant patterns across your uploaded documents.", len(rows)),
		Rows:    rows,
	}, nil
}

func (e *StaticEngine) Answer(ctx context.Context, query ClassifiedQuery, docs []docstore.Document) (*TypedResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch query.Kind {
	case ResponseTimeline:
		return &TypedResponse{
			Kind: ResponseTimeline,
			Text: "Here's a timeline of key events based on your investigation data:",
			Timeline: []TimelineEvent{
				{Date: "2024-01-10", Event: "Initial contact made", Detail: "Central Plaza"},
				{Date: "2024-01-12", Event: "Financial transaction", Detail: "$12,500"},
				{Date: "2024-01-15", Event: "Phone call logged", Detail: "15 minutes"},
			},
		}, nil

	case ResponseTable:
		return &TypedResponse{
			Kind: ResponseTable,
			Text: "Based on the evidence, here are the subject's known locations:",
			Table: &Table{
				Columns: []string{"Date", "Time", "Location", "Source", "Confidence"},
				Rows: [][]string{
					{"2024-06-12", "09:30", "Downtown Office Building", "CCTV Footage", "High"},
					{"2024-06-12", "12:15", "Restaurant District", "Credit Card Transaction", "High"},
					{"2024-06-12", "15:45", "Residential Area", "Cell Tower Data", "Medium"},
					{"2024-06-12", "18:20", "Shopping Mall", "Witness Statement", "Medium"},
				},
			},
		}, nil

	case ResponseFinancial:
		return &TypedResponse{
			Kind: ResponseFinancial,
			Text: "I found several significant financial transactions. Here's the analysis:",
			Financial: &FinancialSummary{
				TotalAmount:     "$287,450",
				SuspiciousCount: 5,
				Note:            "Found 23 transactions above $10,000 in the past 30 days",
			},
		}, nil

	default:
		names := make([]string, len(docs))
		for i, doc := range docs {
			names[i] = doc.FileName
		}
		text := fmt.Sprintf("I understand you're asking about: %q.", query.Text)
		if len(names) > 0 {
			text += fmt.Sprintf(" Based on %s, I can see patterns related to your query.", strings.Join(names, ", "))
		}
		return &TypedResponse{Kind: ResponseText, Text: text}, nil
	}
}
