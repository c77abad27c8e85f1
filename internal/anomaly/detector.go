// Package anomaly implements the Anomaly Detector: rolling per-metric
// baselines plus absolute and statistical trigger rules.
package anomaly

import (
	"sync"
	"time"

	"github.com/guardianai/telemetry-pipeline/internal/config"
	"github.com/guardianai/telemetry-pipeline/internal/record"
)

// Sample is one record's worth of metric observations fed to Check.
type Sample struct {
	Now            time.Time
	CostUSD        float64
	LatencyMS      float64
	QualityOverall *float64 // nil if quality didn't contribute
	TotalTokens    int
	ErrorOccurred  bool
}

// Detector owns one RollingWindow per tracked metric plus a RateTracker
// for cost projection and the request_rate/token_rate metrics, and a
// 5-minute request/error counter pair for error_rate.
type Detector struct {
	cfg *config.PipelineConfig

	cost        *RollingWindow
	latency     *RollingWindow
	quality     *RollingWindow
	tokenRate   *RollingWindow
	requestRate *RollingWindow
	rate        *RateTracker

	mu           sync.Mutex
	bucketStart  time.Time
	bucketReqs   int
	bucketErrors int
}

func NewDetector(cfg *config.PipelineConfig) *Detector {
	return &Detector{
		cfg:         cfg,
		cost:        NewRollingWindow(cfg.WindowCapacity, cfg.DedupHorizon),
		latency:     NewRollingWindow(cfg.WindowCapacity, cfg.DedupHorizon),
		quality:     NewRollingWindow(cfg.WindowCapacity, cfg.DedupHorizon),
		tokenRate:   NewRollingWindow(cfg.WindowCapacity, cfg.DedupHorizon),
		requestRate: NewRollingWindow(cfg.WindowCapacity, cfg.DedupHorizon),
		rate:        NewRateTracker(time.Hour),
	}
}

// Check appends the sample to every window, updates the 5-minute error
// bucket, and returns the deduplicated set of anomalies it implies.
func (d *Detector) Check(s Sample) []record.Anomaly {
	if !d.cfg.EnableAnomalyDetection {
		return nil
	}

	d.cost.Add(s.CostUSD, s.Now)
	d.latency.Add(s.LatencyMS, s.Now)
	if s.QualityOverall != nil {
		d.quality.Add(*s.QualityOverall, s.Now)
	}
	d.rate.Record(s.Now, s.TotalTokens, s.CostUSD)
	requestRate := d.rate.RequestRatePerHour(s.Now)
	tokenRate := d.rate.TokenRatePerHour(s.Now)
	d.requestRate.Add(requestRate, s.Now)
	d.tokenRate.Add(tokenRate, s.Now)
	errorRate := d.updateErrorBucket(s.Now, s.ErrorOccurred)

	var found []record.Anomaly
	found = appendIfAnomaly(found, d.checkCost(s.Now, s.CostUSD))
	found = appendIfAnomaly(found, d.checkLatency(s.LatencyMS))
	if s.QualityOverall != nil {
		found = appendIfAnomaly(found, d.checkQuality(*s.QualityOverall))
	}
	found = appendIfAnomaly(found, d.checkErrorRate(errorRate))
	found = appendIfAnomaly(found, d.statisticalTrigger(d.requestRate, record.MetricRequestRate, requestRate))
	found = appendIfAnomaly(found, d.statisticalTrigger(d.tokenRate, record.MetricTokenRate, tokenRate))

	return dedupeByMetric(found)
}

func appendIfAnomaly(list []record.Anomaly, a *record.Anomaly) []record.Anomaly {
	if a == nil {
		return list
	}
	return append(list, *a)
}

// checkCost implements the cost absolute trigger: projected 24h spend
// compared against cost_anomaly_usd_per_day, then falls through to the
// statistical z-score trigger of the record's own cost on the cost window.
func (d *Detector) checkCost(now time.Time, cost float64) *record.Anomaly {
	projected := d.rate.ProjectedDailyCostUSD(now)
	if projected > d.cfg.CostAnomalyUSDPerDay {
		mean, stddev := windowStatsOrZero(d.cost)
		return &record.Anomaly{
			Metric:         record.MetricCost,
			Observed:       projected,
			BaselineMean:   mean,
			BaselineStdDev: stddev,
			Trigger:        record.TriggerAbsolute,
			Severity:       record.SeverityCritical,
		}
	}
	return d.statisticalTrigger(d.cost, record.MetricCost, cost)
}

func (d *Detector) checkLatency(value float64) *record.Anomaly {
	if value > d.cfg.LatencyAbsMS {
		mean, stddev := windowStatsOrZero(d.latency)
		return &record.Anomaly{
			Metric:         record.MetricLatency,
			Observed:       value,
			BaselineMean:   mean,
			BaselineStdDev: stddev,
			Trigger:        record.TriggerAbsolute,
			Severity:       record.SeverityHigh,
		}
	}
	return d.statisticalTrigger(d.latency, record.MetricLatency, value)
}

func (d *Detector) checkQuality(value float64) *record.Anomaly {
	if value < d.cfg.QualityMinOverall {
		mean, stddev := windowStatsOrZero(d.quality)
		return &record.Anomaly{
			Metric:         record.MetricQuality,
			Observed:       value,
			BaselineMean:   mean,
			BaselineStdDev: stddev,
			Trigger:        record.TriggerAbsolute,
			Severity:       record.SeverityHigh,
		}
	}
	return d.statisticalTrigger(d.quality, record.MetricQuality, value)
}

func (d *Detector) checkErrorRate(rate float64) *record.Anomaly {
	if rate > d.cfg.ErrorRateMax {
		return &record.Anomaly{
			Metric:   record.MetricErrorRate,
			Observed: rate,
			Trigger:  record.TriggerAbsolute,
			Severity: record.SeverityCritical,
		}
	}
	return nil
}

// statisticalTrigger computes z = (x-mean)/stddev against the window
// (once it has enough samples) and maps |z| to severity.
func (d *Detector) statisticalTrigger(w *RollingWindow, metric record.AnomalyMetric, value float64) *record.Anomaly {
	count, mean, stddev := w.Stats()
	if count < d.cfg.MinSamplesForStat {
		return nil
	}
	z := w.ZScore(value)
	absZ := z
	if absZ < 0 {
		absZ = -absZ
	}
	if absZ < d.cfg.CostZThreshold {
		return nil
	}

	zCopy := z
	return &record.Anomaly{
		Metric:         metric,
		Observed:       value,
		BaselineMean:   mean,
		BaselineStdDev: stddev,
		ZScore:         &zCopy,
		Trigger:        record.TriggerStatistical,
		Severity:       severityForZ(absZ),
	}
}

func severityForZ(absZ float64) record.Severity {
	switch {
	case absZ >= 5:
		return record.SeverityCritical
	case absZ >= 4:
		return record.SeverityHigh
	case absZ >= 3.5:
		return record.SeverityMedium
	default:
		return record.SeverityLow
	}
}

func windowStatsOrZero(w *RollingWindow) (mean, stddev float64) {
	_, mean, stddev = w.Stats()
	return mean, stddev
}

// updateErrorBucket rolls a 5-minute request/error counter pair forward
// and returns the current bucket's error_rate.
func (d *Detector) updateErrorBucket(now time.Time, errored bool) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	const bucketWidth = 5 * time.Minute
	if d.bucketStart.IsZero() || now.Sub(d.bucketStart) >= bucketWidth {
		d.bucketStart = now
		d.bucketReqs = 0
		d.bucketErrors = 0
	}
	d.bucketReqs++
	if errored {
		d.bucketErrors++
	}
	if d.bucketReqs == 0 {
		return 0
	}
	return float64(d.bucketErrors) / float64(d.bucketReqs)
}

// dedupeByMetric keeps, per metric, the anomaly with the higher
// severity — the order in which checkCost/checkLatency/... append
// entries never produces two anomalies for the same metric in practice,
// but this makes that invariant explicit and safe against future
// additions.
func dedupeByMetric(anomalies []record.Anomaly) []record.Anomaly {
	best := make(map[record.AnomalyMetric]record.Anomaly)
	order := make([]record.AnomalyMetric, 0, len(anomalies))
	for _, a := range anomalies {
		existing, ok := best[a.Metric]
		if !ok {
			order = append(order, a.Metric)
			best[a.Metric] = a
			continue
		}
		if a.Severity.Rank() > existing.Severity.Rank() {
			best[a.Metric] = a
		}
	}
	out := make([]record.Anomaly, 0, len(order))
	for _, m := range order {
		out = append(out, best[m])
	}
	return out
}

// Baselines exports the current mean/stddev per metric, for persistence
// across restarts.
func (d *Detector) Baselines() map[record.AnomalyMetric]Baseline {
	result := make(map[record.AnomalyMetric]Baseline, 5)
	for metric, w := range map[record.AnomalyMetric]*RollingWindow{
		record.MetricCost:        d.cost,
		record.MetricLatency:     d.latency,
		record.MetricQuality:     d.quality,
		record.MetricTokenRate:   d.tokenRate,
		record.MetricRequestRate: d.requestRate,
	} {
		count, mean, stddev := w.Stats()
		result[metric] = Baseline{Mean: mean, StdDev: stddev, SampleCount: count}
	}
	return result
}

// Baseline is the exported snapshot of a RollingWindow's statistics.
type Baseline struct {
	Mean        float64
	StdDev      float64
	SampleCount int
}

// LoadBaseline seeds a metric's window so a freshly started process
// doesn't have to relearn statistics from zero. Seeding fills the window
// with Count synthetic samples split between mean-stddev and
// mean+stddev (see RollingWindow.seed), which reproduces the mean exactly
// and the stddev only approximately.
func (d *Detector) LoadBaseline(metric record.AnomalyMetric, b Baseline, now time.Time) {
	w := d.windowFor(metric)
	if w == nil || b.SampleCount <= 0 {
		return
	}
	w.seed(b.Mean, b.StdDev, b.SampleCount, now)
}

func (d *Detector) windowFor(metric record.AnomalyMetric) *RollingWindow {
	switch metric {
	case record.MetricCost:
		return d.cost
	case record.MetricLatency:
		return d.latency
	case record.MetricQuality:
		return d.quality
	case record.MetricTokenRate:
		return d.tokenRate
	case record.MetricRequestRate:
		return d.requestRate
	default:
		return nil
	}
}
