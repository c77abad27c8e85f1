package anomaly

import (
	"testing"
	"time"

	"github.com/guardianai/telemetry-pipeline/internal/config"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestDetector_NoAnomalyForCleanRecord(t *testing.T) {
	cfg := config.Default()
	d := NewDetector(cfg)
	now := time.Now()

	anomalies := d.Check(Sample{Now: now, CostUSD: 0.0005, LatencyMS: 400, QualityOverall: f(0.9), TotalTokens: 6})
	assert.Empty(t, anomalies)
}

func TestDetector_LatencyAbsoluteTrigger(t *testing.T) {
	cfg := config.Default()
	d := NewDetector(cfg)
	now := time.Now()

	anomalies := d.Check(Sample{Now: now, LatencyMS: 6000, QualityOverall: f(0.9)})
	require.Len(t, anomalies, 1)
	assert.Equal(t, record.MetricLatency, anomalies[0].Metric)
	assert.Equal(t, record.TriggerAbsolute, anomalies[0].Trigger)
	assert.Equal(t, record.SeverityHigh, anomalies[0].Severity)
}

func TestDetector_QualityAbsoluteTrigger(t *testing.T) {
	cfg := config.Default()
	d := NewDetector(cfg)
	now := time.Now()

	anomalies := d.Check(Sample{Now: now, QualityOverall: f(0.3)})
	require.Len(t, anomalies, 1)
	assert.Equal(t, record.MetricQuality, anomalies[0].Metric)
	assert.Equal(t, record.SeverityHigh, anomalies[0].Severity)
}

func TestDetector_ErrorRateAbsoluteTrigger(t *testing.T) {
	cfg := config.Default()
	cfg.ErrorRateMax = 0.05
	d := NewDetector(cfg)
	now := time.Now()

	// First request errors, bucket error_rate = 1.0 > 0.05
	anomalies := d.Check(Sample{Now: now, QualityOverall: f(0.9), ErrorOccurred: true})
	require.NotEmpty(t, anomalies)
	found := false
	for _, a := range anomalies {
		if a.Metric == record.MetricErrorRate {
			found = true
			assert.Equal(t, record.SeverityCritical, a.Severity)
		}
	}
	assert.True(t, found)
}

func TestDetector_StatisticalTriggerNeedsMinSamples(t *testing.T) {
	cfg := config.Default()
	cfg.LatencyAbsMS = 1e9 // disable absolute trigger so only statistical matters
	d := NewDetector(cfg)
	now := time.Now()

	for i := 0; i < cfg.MinSamplesForStat-1; i++ {
		d.Check(Sample{Now: now, LatencyMS: 100, QualityOverall: f(0.9)})
	}
	// the window now has a consistent baseline; this sample is a massive
	// outlier against it
	anomalies := d.Check(Sample{Now: now, LatencyMS: 100000, QualityOverall: f(0.9)})
	found := false
	for _, a := range anomalies {
		if a.Metric == record.MetricLatency && a.Trigger == record.TriggerStatistical {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetector_NoStatisticalTriggerBelowMinSamples(t *testing.T) {
	cfg := config.Default()
	cfg.MinSamplesForStat = 30
	cfg.LatencyAbsMS = 1e9
	d := NewDetector(cfg)
	now := time.Now()

	anomalies := d.Check(Sample{Now: now, LatencyMS: 100000, QualityOverall: f(0.9)})
	assert.Empty(t, anomalies)
}

func TestDetector_DisabledReturnsNoAnomalies(t *testing.T) {
	cfg := config.Default()
	cfg.EnableAnomalyDetection = false
	d := NewDetector(cfg)
	anomalies := d.Check(Sample{Now: time.Now(), LatencyMS: 999999})
	assert.Nil(t, anomalies)
}

func TestDetector_BaselinesRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.MinSamplesForStat = 1
	d := NewDetector(cfg)
	now := time.Now()
	for i := 0; i < 5; i++ {
		d.Check(Sample{Now: now, LatencyMS: 400, QualityOverall: f(0.9)})
	}

	baselines := d.Baselines()
	latencyBaseline := baselines[record.MetricLatency]
	assert.Equal(t, 5, latencyBaseline.SampleCount)
	assert.InDelta(t, 400.0, latencyBaseline.Mean, 1e-9)

	d2 := NewDetector(cfg)
	d2.LoadBaseline(record.MetricLatency, latencyBaseline, now)
	count, mean, _ := d2.latency.Stats()
	assert.Equal(t, 5, count)
	assert.InDelta(t, 400.0, mean, 1e-9)
}
