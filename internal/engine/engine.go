package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
)

// AnalysisEngine is the injected capability that interprets tasks and
// queries. The pipeline treats it as opaque: it only relies on the
// contract below, never on how the interpretation happens.
type AnalysisEngine interface {
	// Plan turns a natural-language task into an execution plan.
	Plan(ctx context.Context, input string, docs []docstore.Document) (*TaskPlan, error)

	// Run executes a previously produced plan against the documents.
	Run(ctx context.Context, plan *TaskPlan, docs []docstore.Document) (*TaskResult, error)

	// Answer responds to a classified conversational query.
	Answer(ctx context.Context, query ClassifiedQuery, docs []docstore.Document) (*TypedResponse, error)
}

// New creates an engine for the given provider. Supported providers:
// "openai" and "static". The static engine is fully deterministic and
// needs no credentials.
func New(provider, model string) (AnalysisEngine, error) {
	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIEngine(apiKey, model), nil

	case "static":
		return NewStaticEngine(), nil

	default:
		return nil, fmt.Errorf("unsupported engine provider: %s", provider)
	}
}
