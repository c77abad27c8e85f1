// Package incident implements the Incident Synthesizer: it decides
// whether a record's analyzer outputs warrant an Incident and, if so,
// assembles one with a deterministic summary and severity.
package incident

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guardianai/telemetry-pipeline/internal/config"
	"github.com/guardianai/telemetry-pipeline/internal/record"
)

// Inputs bundles everything the Synthesizer needs for one record; the
// pipeline assembles it from the three analyzers' outputs.
type Inputs struct {
	TraceID    string
	IngestedAt time.Time
	Threats    []record.ThreatVerdict
	Anomalies  []record.Anomaly
	Quality    *record.QualityScore
	Partial    bool
}

type Synthesizer struct {
	cfg *config.PipelineConfig
}

func New(cfg *config.PipelineConfig) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// Synthesize returns nil when no contributor warrants an Incident.
func (s *Synthesizer) Synthesize(in Inputs) *record.Incident {
	threats := activeThreats(in.Threats)
	qualityBelowThreshold := in.Quality != nil && in.Quality.Overall != nil && *in.Quality.Overall < s.cfg.QualityMinOverall

	if len(threats) == 0 && len(in.Anomalies) == 0 && !qualityBelowThreshold {
		return nil
	}

	severity := s.severity(threats, in.Anomalies, qualityBelowThreshold)

	inc := &record.Incident{
		ID:        newID(in.IngestedAt),
		TraceID:   in.TraceID,
		CreatedAt: in.IngestedAt,
		Severity:  severity,
		Status:    record.StatusOpen,
		Threats:   threats,
		Anomalies: in.Anomalies,
		Summary:   summarize(threats, in.Anomalies, qualityBelowThreshold),
		Partial:   in.Partial,
	}
	if qualityBelowThreshold {
		inc.Quality = in.Quality
	}
	return inc
}

func activeThreats(verdicts []record.ThreatVerdict) []record.ThreatVerdict {
	out := make([]record.ThreatVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		if v.Kind != record.ThreatNone {
			out = append(out, v)
		}
	}
	return out
}

// severity computes max(contributor severities) then applies the two
// promotion rules: 2+ distinct high-severity contributors escalate to
// critical, and a cost/absolute anomaly co-occurring with a
// prompt_injection threat always escalates to critical.
func (s *Synthesizer) severity(threats []record.ThreatVerdict, anomalies []record.Anomaly, qualityBelow bool) record.Severity {
	max := record.SeverityLow
	highCount := 0

	for _, t := range threats {
		max = record.MaxSeverity(max, t.Severity)
		if t.Severity == record.SeverityHigh {
			highCount++
		}
	}
	for _, a := range anomalies {
		max = record.MaxSeverity(max, a.Severity)
		if a.Severity == record.SeverityHigh {
			highCount++
		}
	}
	if qualityBelow {
		max = record.MaxSeverity(max, record.SeverityHigh)
		highCount++
	}

	if highCount >= 2 {
		max = record.SeverityCritical
	}
	if hasCostAbsoluteAnomaly(anomalies) && hasThreatKind(threats, record.ThreatPromptInjection) {
		max = record.SeverityCritical
	}
	return max
}

func hasCostAbsoluteAnomaly(anomalies []record.Anomaly) bool {
	for _, a := range anomalies {
		if a.Metric == record.MetricCost && a.Trigger == record.TriggerAbsolute {
			return true
		}
	}
	return false
}

func hasThreatKind(threats []record.ThreatVerdict, kind record.ThreatKind) bool {
	for _, t := range threats {
		if t.Kind == kind {
			return true
		}
	}
	return false
}

// summarize joins the top-3 contributors' indicator strings in a
// deterministic order: threats first (sorted by kind lexicographically),
// then anomalies (sorted by metric lexicographically). It is a pure
// function of its inputs so it is reproducible in tests.
func summarize(threats []record.ThreatVerdict, anomalies []record.Anomaly, qualityBelow bool) string {
	sortedThreats := append([]record.ThreatVerdict(nil), threats...)
	sort.Slice(sortedThreats, func(i, j int) bool { return sortedThreats[i].Kind < sortedThreats[j].Kind })

	sortedAnomalies := append([]record.Anomaly(nil), anomalies...)
	sort.Slice(sortedAnomalies, func(i, j int) bool { return sortedAnomalies[i].Metric < sortedAnomalies[j].Metric })

	var contributors []string
	for _, t := range sortedThreats {
		contributors = append(contributors, threatIndicator(t))
	}
	for _, a := range sortedAnomalies {
		contributors = append(contributors, anomalyIndicator(a))
	}
	if qualityBelow {
		contributors = append(contributors, "quality:below_threshold")
	}

	if len(contributors) > 3 {
		contributors = contributors[:3]
	}
	if len(contributors) == 0 {
		return ""
	}

	out := contributors[0]
	for _, c := range contributors[1:] {
		out += ", " + c
	}
	return out
}

// threatIndicator uses the classifier's own recorded indicator strings
// (e.g. the redacted PII pattern name, the matched injection phrase) and
// falls back to the bare kind only when the classifier recorded none.
func threatIndicator(t record.ThreatVerdict) string {
	if len(t.Indicators) == 0 {
		return fmt.Sprintf("threat:%s", t.Kind)
	}
	return strings.Join(t.Indicators, ", ")
}

// anomalyIndicator describes the metric's deviation from baseline.
// Anomaly carries no indicator strings of its own, so this is always the
// fallback text for an anomaly contributor.
func anomalyIndicator(a record.Anomaly) string {
	if a.Trigger == record.TriggerStatistical && a.ZScore != nil {
		return fmt.Sprintf("%s=%.2f(z=%.2f)", a.Metric, a.Observed, *a.ZScore)
	}
	return fmt.Sprintf("%s=%.2f", a.Metric, a.Observed)
}

// newID produces a UUIDv7-style lexicographically sortable id: the
// leading 48 bits are ingestedAt's Unix millisecond timestamp (so
// incidents sort by creation time as plain strings), the rest is random.
func newID(ingestedAt time.Time) string {
	id := uuid.New()
	ms := uint64(ingestedAt.UnixMilli())
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)
	id[6] = (id[6] & 0x0f) | 0x70 // version 7
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id.String()
}
