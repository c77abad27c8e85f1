// Package quality implements the Quality Classifier: it asks the AI
// client to rate a record's response for coherence, relevance, and
// completeness, then folds those into a weighted overall score.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/guardianai/telemetry-pipeline/internal/aiclient"
	"github.com/guardianai/telemetry-pipeline/internal/config"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/guardianai/telemetry-pipeline/internal/retrywrap"
	"go.uber.org/zap"
)

// minCompletenessLength is the byte threshold below which the rubric
// instructs the model to cap completeness at 0.5, so judgments are
// reproducible across model versions.
const minCompletenessLength = 20

// ParseFailureCounter is incremented once per record that could not be
// scored after exhausting retries, whether the last attempt returned an
// unparsable response or an AI call error. Bound to a
// Prometheus counter by the caller; nil is a valid no-op.
type ParseFailureCounter interface {
	Inc()
}

type Classifier struct {
	client   aiclient.Client
	cfg      *config.PipelineConfig
	logger   *zap.Logger
	failures ParseFailureCounter
}

func New(client aiclient.Client, cfg *config.PipelineConfig, logger *zap.Logger, failures ParseFailureCounter) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{client: client, cfg: cfg, logger: logger, failures: failures}
}

// skipped is returned whenever quality analysis is disabled or has
// nothing to score; it never counts as a parse failure.
func skipped() *record.QualityScore {
	overall := 1.0
	return &record.QualityScore{
		Coherence:    1.0,
		Relevance:    1.0,
		Completeness: 1.0,
		Overall:      &overall,
		Explanation:  "skipped",
	}
}

func (c *Classifier) Classify(ctx context.Context, rec *record.TelemetryRecord) *record.QualityScore {
	if !c.cfg.EnableQualityAnalysis || strings.TrimSpace(rec.Response) == "" {
		return skipped()
	}

	parsed, err := retrywrap.Do(ctx, retrywrap.DefaultPolicy(c.cfg.MaxRetries), func(ctx context.Context) (*verdict, error) {
		resp, err := c.client.Complete(ctx, aiclient.Request{
			TraceID: rec.TraceID,
			System:  rubricPrompt(),
			User:    userContent(rec.Prompt, rec.Response),
			Params: aiclient.Params{
				ModelName:       c.cfg.ModelName,
				Temperature:     clampTemperature(c.cfg.Temperature),
				TopP:            c.cfg.TopP,
				TopK:            c.cfg.TopK,
				MaxOutputTokens: c.cfg.MaxOutputTokens,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("ai call failed: %w", err)
		}
		return parseVerdict(resp.Text)
	})
	if err != nil {
		return c.onFailure(rec.TraceID, err)
	}

	overall := record.ComputeOverall(parsed.Coherence, parsed.Relevance, parsed.Completeness)
	return &record.QualityScore{
		Coherence:    parsed.Coherence,
		Relevance:    parsed.Relevance,
		Completeness: parsed.Completeness,
		Overall:      &overall,
		Explanation:  parsed.Explanation,
	}
}

func (c *Classifier) onFailure(traceID string, err error) *record.QualityScore {
	c.logger.Warn("quality classification failed", zap.String("trace_id", traceID), zap.Error(err))
	if c.failures != nil {
		c.failures.Inc()
	}
	return &record.QualityScore{Explanation: "parse_failure: " + err.Error()}
}

// clampTemperature keeps deterministic scoring within the rubric's
// documented 0.1..0.3 band regardless of the configured sampling
// temperature used for other calls.
func clampTemperature(configured float64) float64 {
	if configured < 0.1 {
		return 0.1
	}
	if configured > 0.3 {
		return 0.3
	}
	return configured
}

type verdict struct {
	Coherence    float64 `json:"coherence"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Explanation  string  `json:"explanation"`
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func parseVerdict(text string) (*verdict, error) {
	text = extractJSONObject(text)
	var v verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("invalid quality verdict JSON: %w", err)
	}
	v.Coherence = clamp01(v.Coherence)
	v.Relevance = clamp01(v.Relevance)
	v.Completeness = clamp01(v.Completeness)
	return &v, nil
}

// extractJSONObject trims any leading/trailing prose a chat model might
// wrap around the JSON object despite instructions.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func rubricPrompt() string {
	return fmt.Sprintf(`You are a strict response-quality grader. Given a PROMPT and a RESPONSE, rate the response on three axes, each in the range [0,1]:

- coherence: is the response readable, well-structured, and internally consistent?
- relevance: does the response actually address the prompt?
- completeness: does the response fully answer the prompt? Responses shorter than %d characters must be scored completeness <= 0.5, regardless of content.

Return strictly a single JSON object with exactly these keys: "coherence", "relevance", "completeness", "explanation". No prose outside the JSON object.`, minCompletenessLength)
}

func userContent(prompt, response string) string {
	return fmt.Sprintf("PROMPT:\n%s\n\nRESPONSE:\n%s", prompt, response)
}
