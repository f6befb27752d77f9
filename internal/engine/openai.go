package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
)

const planSystemPrompt = `You are an investigation analysis planner. Given a task
description and the available documents, respond with a JSON object:
{"paraphrased_task": "...", "logic_summary": "...", "suggested_format": "...", "estimated_time": "..."}
The paraphrased_task must restate the user's request including its original wording.`

const runSystemPrompt = `You are an investigation analyst. Execute the given analysis
plan against the listed documents. Respond with a JSON object:
{"summary": "...", "rows": [{"date": "YYYY-MM-DD", "source": "<file name>", "finding": "...", "confidence": "Low|Medium|High"}]}
Only reference documents from the provided list.`

const answerSystemPrompt = `You are an investigation assistant answering a question about
case data. The required response shape is given. Respond with a JSON object matching it:
timeline  -> {"text": "...", "timeline": [{"date": "...", "event": "...", "detail": "..."}]}
table     -> {"text": "...", "table": {"columns": [...], "rows": [[...]]}}
financial -> {"text": "...", "financial": {"total_amount": "...", "suspicious_count": 0, "note": "..."}}
text      -> {"text": "..."}`

// OpenAIEngine implements AnalysisEngine using the OpenAI Chat
// Completions API with JSON-mode responses.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine creates an OpenAI-backed engine.
func NewOpenAIEngine(apiKey, model string) *OpenAIEngine {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (e *OpenAIEngine) Plan(ctx context.Context, input string, docs []docstore.Document) (*TaskPlan, error) {
	user := fmt.Sprintf("Task: %s\n\nAvailable documents:\n%s", input, describeDocuments(docs))

	content, err := e.complete(ctx, planSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("planning task: %w", err)
	}

	var plan TaskPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, fmt.Errorf("parsing plan response: %w", err)
	}
	if plan.ParaphrasedTask == "" {
		return nil, fmt.Errorf("engine returned an empty plan")
	}
	return &plan, nil
}

func (e *OpenAIEngine) Run(ctx context.Context, plan *TaskPlan, docs []docstore.Document) (*TaskResult, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("marshalling plan: %w", err)
	}
	user := fmt.Sprintf("Plan: %s\n\nDocuments:\n%s", planJSON, describeDocuments(docs))

	content, err := e.complete(ctx, runSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("running plan: %w", err)
	}

	var result TaskResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parsing result response: %w", err)
	}
	if result.Summary == "" {
		result.Summary = fmt.Sprintf("Found %d significant patterns across your uploaded documents.", len(result.Rows))
	}
	return &result, nil
}

func (e *OpenAIEngine) Answer(ctx context.Context, query ClassifiedQuery, docs []docstore.Document) (*TypedResponse, error) {
	user := fmt.Sprintf("Response shape: %s\nQuestion: %s\n\nDocuments:\n%s",
		query.Kind, query.Text, describeDocuments(docs))

	content, err := e.complete(ctx, answerSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("answering query: %w", err)
	}

	var resp TypedResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("parsing answer response: %w", err)
	}
	resp.Kind = query.Kind
	if resp.Text == "" {
		return nil, fmt.Errorf("engine returned an empty answer")
	}
	return &resp, nil
}

func (e *OpenAIEngine) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func describeDocuments(docs []docstore.Document) string {
	if len(docs) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&b, "- %s (%s, %s, intelligence %s)", doc.FileName, doc.MimeKind, doc.DocumentType, doc.IntelligenceLevel)
		if doc.Definition != "" {
			fmt.Fprintf(&b, ": %s", doc.Definition)
		}
		b.WriteString("\n")
	}
	return b.String()
}
