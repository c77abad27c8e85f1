// Package aiclient defines the leaf adapter the Quality Classifier and
// Threat Classifier call through: a single-turn chat completion used to
// obtain a structured verdict about a record's prompt/response.
package aiclient

import "context"

// Params carries the per-call sampling configuration. Each classifier
// fills it from config.PipelineConfig and may override individual values
// (quality clamps Temperature into 0.1..0.3; threat fixes it at 0.1 and
// leaves TopK unset).
type Params struct {
	ModelName       string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// Request is a single-turn completion: a system instruction (the
// classifier's rubric/prompt template) plus the user content being
// analyzed (the record's prompt and/or response).
type Request struct {
	TraceID string // for correlation in logs/metrics only
	System  string
	User    string
	Params  Params
}

// Response carries the model's raw text; classifiers are responsible for
// parsing it as JSON per their own rubric.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Client is the narrow interface every analyzer depends on. Concrete
// implementations (HTTPClient, FakeClient) and the Resilient wrapper all
// satisfy it; no analyzer ever imports net/http directly.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
