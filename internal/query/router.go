package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/engine"
)

// ErrEmptyQuery is returned when a query has no text.
var ErrEmptyQuery = errors.New("query text is empty")

// Router classifies free-text questions into a response shape, asks the
// analysis engine, and records one query event per round trip.
type Router struct {
	engine   engine.AnalysisEngine
	docs     *docstore.Store
	auditLog *audit.Log
}

// NewRouter creates a query router.
func NewRouter(eng engine.AnalysisEngine, docs *docstore.Store, auditLog *audit.Log) *Router {
	return &Router{engine: eng, docs: docs, auditLog: auditLog}
}

// Classify maps a question to a response shape by keyword. The mapping
// is deterministic: the same text always yields the same kind.
func Classify(text string) engine.ClassifiedQuery {
	lower := strings.ToLower(text)
	kind := engine.ResponseText
	switch {
	case containsAny(lower, "timeline", "chronolog", "sequence of events", "when did"):
		kind = engine.ResponseTimeline
	case containsAny(lower, "financial", "transaction", "amount", "money", "payment"):
		kind = engine.ResponseFinancial
	case containsAny(lower, "where", "location", "address", "place"):
		kind = engine.ResponseTable
	}
	return engine.ClassifiedQuery{Text: text, Kind: kind}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Ask answers a question against the current document set. Every round
// trip, successful or not, leaves exactly one query event in the audit
// trail with the question in its description.
func (r *Router) Ask(ctx context.Context, text string) (*engine.TypedResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	classified := Classify(text)

	docs, err := r.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	started := time.Now()
	resp, err := r.engine.Answer(ctx, classified, docs)
	elapsed := time.Since(started).Milliseconds()

	event := audit.Event{
		Kind:        audit.KindQuery,
		Actor:       audit.ActorUser,
		Title:       "Data Query",
		Description: text,
		SourceFiles: sourceNames(docs),
		Metadata: audit.Metadata{
			ExecutionTimeMs: audit.Int64Ptr(elapsed),
			Parameters:      map[string]any{"response_kind": string(classified.Kind)},
		},
		Status: audit.StatusCompleted,
	}
	if err != nil {
		event.Status = audit.StatusFailed
		event.Description = fmt.Sprintf("%s (failed: %v)", text, err)
		r.auditLog.Record(ctx, event)
		return nil, fmt.Errorf("answering query: %w", err)
	}
	r.auditLog.Record(ctx, event)

	return resp, nil
}

func sourceNames(docs []docstore.Document) []string {
	if len(docs) == 0 {
		return nil
	}
	names := make([]string, len(docs))
	for i, doc := range docs {
		names[i] = doc.FileName
	}
	return names
}
