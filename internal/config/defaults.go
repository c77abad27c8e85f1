package config

import "time"

// Default returns the documented defaults before any environment
// override is applied.
func Default() *PipelineConfig {
	return &PipelineConfig{
		EnableThreatDetection:  true,
		EnableAnomalyDetection: true,
		EnableQualityAnalysis:  true,
		EnableIncidentEmission: true,

		CostAnomalyUSDPerDay:   100.0,
		CostZThreshold:         3.0,
		LatencyAbsMS:           5000,
		LatencyP95MS:           5000,
		QualityMinOverall:      0.7,
		QualityMinCoherence:    0.5,
		QualityMinRelevance:    0.5,
		QualityMinCompleteness: 0.5,
		ErrorRateMax:           0.05,
		ThreatMinConfidence:    0.75,
		ToxicityMin:            0.8,

		MaxConcurrentAnalyses: 16,
		BatchSize:             100,
		BatchTimeout:          5 * time.Second,

		ModelName:       "guardian-quality-v1",
		Temperature:     0.2,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 512,
		MaxRetries:      3,
		PerCallTimeout:  10 * time.Second,

		WindowCapacity:    1000,
		MinSamplesForStat: 30,
		DedupWindowSize:   10000,
		DedupHorizon:      24 * time.Hour,
		MaxFieldBytes:     64 * 1024,

		MetricsNamespace: "guardian",
		RequireOnStartup: false,
	}
}
