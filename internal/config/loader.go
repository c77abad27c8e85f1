package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is prepended to every variable name, e.g. GUARDIAN_MAX_RETRIES.
const EnvPrefix = "GUARDIAN"

// Load builds a PipelineConfig from Default() overridden by environment
// variables. Every threshold has an override; a variable present but
// unparsable, or a probability outside [0,1], aborts loading with a
// descriptive error instead of silently falling back to a default — the
// pipeline never runs with a partially-valid configuration.
func Load() (*PipelineConfig, error) {
	cfg := Default()
	l := &loader{cfg: cfg}

	l.bindBool("ENABLE_THREAT_DETECTION", &cfg.EnableThreatDetection)
	l.bindBool("ENABLE_ANOMALY_DETECTION", &cfg.EnableAnomalyDetection)
	l.bindBool("ENABLE_QUALITY_ANALYSIS", &cfg.EnableQualityAnalysis)
	l.bindBool("ENABLE_INCIDENT_EMISSION", &cfg.EnableIncidentEmission)

	l.bindFloat("COST_ANOMALY_USD_PER_DAY", &cfg.CostAnomalyUSDPerDay, 0, -1)
	l.bindFloat("COST_Z_THRESHOLD", &cfg.CostZThreshold, 0, -1)
	l.bindFloat("LATENCY_ABS_MS", &cfg.LatencyAbsMS, 0, -1)
	l.bindFloat("LATENCY_P95_MS", &cfg.LatencyP95MS, 0, -1)
	l.bindFloat("QUALITY_MIN_OVERALL", &cfg.QualityMinOverall, 0, 1)
	l.bindFloat("QUALITY_MIN_COHERENCE", &cfg.QualityMinCoherence, 0, 1)
	l.bindFloat("QUALITY_MIN_RELEVANCE", &cfg.QualityMinRelevance, 0, 1)
	l.bindFloat("QUALITY_MIN_COMPLETENESS", &cfg.QualityMinCompleteness, 0, 1)
	l.bindFloat("ERROR_RATE_MAX", &cfg.ErrorRateMax, 0, 1)
	l.bindFloat("THREAT_MIN_CONFIDENCE", &cfg.ThreatMinConfidence, 0, 1)
	l.bindFloat("TOXICITY_MIN", &cfg.ToxicityMin, 0, 1)

	l.bindInt("MAX_CONCURRENT_ANALYSES", &cfg.MaxConcurrentAnalyses, 1, -1)
	l.bindInt("BATCH_SIZE", &cfg.BatchSize, 1, -1)
	l.bindDuration("BATCH_TIMEOUT", &cfg.BatchTimeout)

	l.bindString("MODEL_NAME", &cfg.ModelName)
	l.bindFloat("TEMPERATURE", &cfg.Temperature, 0, 2)
	l.bindFloat("TOP_P", &cfg.TopP, 0, 1)
	l.bindInt("TOP_K", &cfg.TopK, 0, -1)
	l.bindInt("MAX_OUTPUT_TOKENS", &cfg.MaxOutputTokens, 1, -1)
	l.bindInt("MAX_RETRIES", &cfg.MaxRetries, 0, -1)
	l.bindDuration("PER_CALL_TIMEOUT", &cfg.PerCallTimeout)

	l.bindInt("WINDOW_CAPACITY", &cfg.WindowCapacity, 1, -1)
	l.bindInt("MIN_SAMPLES_FOR_STAT", &cfg.MinSamplesForStat, 1, -1)
	l.bindInt("DEDUP_WINDOW_SIZE", &cfg.DedupWindowSize, 1, -1)
	l.bindDuration("DEDUP_HORIZON", &cfg.DedupHorizon)
	l.bindInt("MAX_FIELD_BYTES", &cfg.MaxFieldBytes, 1, -1)

	l.bindString("METRICS_NAMESPACE", &cfg.MetricsNamespace)
	l.bindBool("REQUIRE_ON_STARTUP", &cfg.RequireOnStartup)

	if len(l.errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(l.errs, "; "))
	}
	return cfg, nil
}

type loader struct {
	cfg  *PipelineConfig
	errs []string
}

func (l *loader) key(name string) string { return EnvPrefix + "_" + name }

func (l *loader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(l.key(name))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (l *loader) fail(name string, err error) {
	l.errs = append(l.errs, fmt.Sprintf("%s: %v", l.key(name), err))
}

func (l *loader) bindString(name string, dst *string) {
	if v, ok := l.lookup(name); ok {
		*dst = v
	}
}

func (l *loader) bindBool(name string, dst *bool) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(name, fmt.Errorf("invalid bool %q", v))
		return
	}
	*dst = b
}

// bindFloat parses v as float64. If max >= min the value must fall in
// [min,max] (used for probability-bounded fields); pass max < min to skip
// range checking.
func (l *loader) bindFloat(name string, dst *float64, min, max float64) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail(name, fmt.Errorf("invalid float %q", v))
		return
	}
	if max >= min && (f < min || f > max) {
		l.fail(name, fmt.Errorf("value %v out of range [%v,%v]", f, min, max))
		return
	}
	*dst = f
}

func (l *loader) bindInt(name string, dst *int, min, max int) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		l.fail(name, fmt.Errorf("invalid int %q", v))
		return
	}
	if max >= min && (i < min || i > max) {
		l.fail(name, fmt.Errorf("value %d out of range [%d,%d]", i, min, max))
		return
	}
	*dst = i
}

func (l *loader) bindDuration(name string, dst *time.Duration) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(name, fmt.Errorf("invalid duration %q", v))
		return
	}
	if d < 0 {
		l.fail(name, fmt.Errorf("duration %q must be >= 0", v))
		return
	}
	*dst = d
}
