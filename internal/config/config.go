// Package config loads the process-wide PipelineConfig from environment
// variables exactly once at startup. There is no dynamic attribute
// access anywhere downstream: every threshold is a named, strongly-typed
// field, and an unparsable or out-of-range value fails startup loudly
// instead of running with a partially-valid configuration.
package config

import "time"

// PipelineConfig is immutable after Load returns and is shared read-only
// with every component — no locks are needed around it.
type PipelineConfig struct {
	EnableThreatDetection  bool
	EnableAnomalyDetection bool
	EnableQualityAnalysis  bool
	EnableIncidentEmission bool

	CostAnomalyUSDPerDay  float64
	CostZThreshold        float64
	LatencyAbsMS          float64
	LatencyP95MS          float64
	QualityMinOverall     float64
	QualityMinCoherence   float64
	QualityMinRelevance   float64
	QualityMinCompleteness float64
	ErrorRateMax          float64
	ThreatMinConfidence   float64
	ToxicityMin           float64

	MaxConcurrentAnalyses int
	BatchSize             int
	BatchTimeout          time.Duration

	ModelName       string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	MaxRetries      int
	PerCallTimeout  time.Duration

	WindowCapacity     int
	MinSamplesForStat  int
	DedupWindowSize    int
	DedupHorizon       time.Duration
	MaxFieldBytes      int

	MetricsNamespace   string
	RequireOnStartup   bool
}

// RecordDeadline returns the whole-record processing deadline:
// per_call_timeout * (max_retries+1) * 3 analyzers, plus fixed overhead.
func (c *PipelineConfig) RecordDeadline() time.Duration {
	const fixedOverhead = 2 * time.Second
	perAnalyzer := c.PerCallTimeout * time.Duration(c.MaxRetries+1)
	return perAnalyzer*3 + fixedOverhead
}
