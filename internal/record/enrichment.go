package record

import "time"

// QualityScore is produced once per record by the Quality Classifier.
// Overall is a pointer so "not contributing" (AI exhausted retries) can be
// represented as nil rather than an arbitrary sentinel float.
type QualityScore struct {
	Coherence     float64  `json:"coherence"`
	Relevance     float64  `json:"relevance"`
	Completeness  float64  `json:"completeness"`
	Overall       *float64 `json:"overall"`
	Explanation   string   `json:"explanation"`
	Issues        []string `json:"issues,omitempty"`
}

// QualityWeights are the weighted-mean coefficients for Overall. Exposed
// as a variable rather than a constant so callers can tune the mix
// without forking ComputeOverall.
var QualityWeights = struct {
	Coherence, Relevance, Completeness float64
}{0.4, 0.4, 0.2}

// ComputeOverall applies QualityWeights to the three clamped sub-scores.
func ComputeOverall(coherence, relevance, completeness float64) float64 {
	return QualityWeights.Coherence*coherence +
		QualityWeights.Relevance*relevance +
		QualityWeights.Completeness*completeness
}

// ThreatVerdict is produced by the Threat Classifier, up to twice per
// record (once per Scope).
type ThreatVerdict struct {
	Kind       ThreatKind `json:"kind"`
	Confidence float64    `json:"confidence"`
	Severity   Severity   `json:"severity"`
	Indicators []string   `json:"indicators"`
	Scope      Scope      `json:"scope"`
}

// Anomaly is emitted by the Anomaly Detector.
type Anomaly struct {
	Metric         AnomalyMetric  `json:"metric"`
	Observed       float64        `json:"observed"`
	BaselineMean   float64        `json:"baseline_mean"`
	BaselineStdDev float64        `json:"baseline_stddev"`
	ZScore         *float64       `json:"z_score"`
	Trigger        AnomalyTrigger `json:"trigger"`
	Severity       Severity       `json:"severity"`
}

// Incident is the synthesis artifact. It never exists without cause: at
// least one threat (kind != none) or anomaly must be present, or a
// below-threshold quality score.
type Incident struct {
	ID        string          `json:"id"`
	TraceID   string          `json:"trace_id"`
	CreatedAt time.Time       `json:"created_at"`
	Severity  Severity        `json:"severity"`
	Status    IncidentStatus  `json:"status"`
	Threats   []ThreatVerdict `json:"threats"`
	Anomalies []Anomaly       `json:"anomalies"`
	Quality   *QualityScore   `json:"quality,omitempty"`
	Summary   string          `json:"summary"`
	Partial   bool            `json:"partial"`
}

// Transition validates and applies a state-machine move. Only
// open->acknowledged and acknowledged->resolved are legal; re-applying
// the current state is an idempotent no-op. Any other move is rejected
// with IllegalTransitionError.
func (inc *Incident) Transition(to IncidentStatus) error {
	if inc.Status == to {
		return nil
	}
	switch {
	case inc.Status == StatusOpen && to == StatusAcknowledged:
		inc.Status = to
		return nil
	case inc.Status == StatusAcknowledged && to == StatusResolved:
		inc.Status = to
		return nil
	default:
		return &IllegalTransitionError{From: inc.Status, To: to}
	}
}
