// Package record defines the telemetry data model: the TelemetryRecord
// unit of work and the enrichment types analyzers attach to it
// (QualityScore, ThreatVerdict, Anomaly, Incident).
package record

import (
	"fmt"
	"time"
)

// TelemetryRecord is the unit of work flowing through the pipeline. It is
// created once at ingress and never mutated thereafter; analyzers receive
// it by value or by immutable shared pointer.
type TelemetryRecord struct {
	TraceID       string            `json:"trace_id"`
	IngestedAt    time.Time         `json:"ingested_at"`
	ModelID       string            `json:"model_id"`
	Prompt        string            `json:"prompt"`
	Response      string            `json:"response"`
	InputTokens   int               `json:"input_tokens"`
	OutputTokens  int               `json:"output_tokens"`
	LatencyMS     float64           `json:"latency_ms"`
	CostUSD       float64           `json:"cost_usd"`
	ErrorOccurred bool              `json:"error_occurred"`
	UserID        string            `json:"user_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Validate checks the record's structural invariants. It does not fill
// defaults; that is the Normalizer's job.
func (r *TelemetryRecord) Validate() error {
	if r.TraceID == "" {
		return &MalformedError{Field: "trace_id", Reason: "must be non-empty"}
	}
	if r.InputTokens < 0 {
		return &MalformedError{Field: "input_tokens", Reason: "must be >= 0"}
	}
	if r.OutputTokens < 0 {
		return &MalformedError{Field: "output_tokens", Reason: "must be >= 0"}
	}
	if r.LatencyMS < 0 {
		return &MalformedError{Field: "latency_ms", Reason: "must be >= 0"}
	}
	if r.CostUSD < 0 {
		return &MalformedError{Field: "cost_usd", Reason: "must be >= 0"}
	}
	return nil
}

// MalformedError reports a per-record validation failure at ingress. It is
// an input error: reported to the caller, never escalated.
type MalformedError struct {
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed record: field %q %s", e.Field, e.Reason)
}

// DuplicateError signals that a trace_id was already seen within the
// dedup window. Input error, never escalated.
type DuplicateError struct {
	TraceID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate trace_id %q", e.TraceID)
}
