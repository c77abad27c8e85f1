package emitter

import (
	"github.com/guardianai/telemetry-pipeline/internal/record"
)

// Emitter publishes the mandatory metric set over an injected Sink. Every
// method is fire-and-forget: callers never check for an error because the
// Sink contract is to swallow its own failures.
type Emitter struct {
	sink Sink
}

func New(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

// RecordIngress emits ingress.accepted or ingress.rejected.
func (e *Emitter) RecordIngress(accepted bool) {
	if accepted {
		e.sink.Counter("ingress.accepted", 1, nil)
		return
	}
	e.sink.Counter("ingress.rejected", 1, nil)
}

// RecordDuplicate emits the normalize.duplicate counter for a trace_id
// rejected because it was already seen within the dedup window.
func (e *Emitter) RecordDuplicate() {
	e.sink.Counter("normalize.duplicate", 1, nil)
}

// RecordRecord emits the per-record metrics mandated for every processed
// TelemetryRecord: request/error counts, latency, cost, and quality.
func (e *Emitter) RecordRecord(rec *record.TelemetryRecord, quality *record.QualityScore) {
	e.sink.Counter("requests.total", 1, nil)
	if rec.ErrorOccurred {
		e.sink.Counter("requests.errors", 1, nil)
	}
	e.sink.Histogram("latency.response_time", rec.LatencyMS, nil)
	e.sink.Counter("cost.total", rec.CostUSD, nil)
	if quality != nil && quality.Overall != nil {
		e.sink.Gauge("quality.overall_score", *quality.Overall, nil)
	}
}

// RecordThreat emits threats.detected, tagged kind/severity/scope.
func (e *Emitter) RecordThreat(v record.ThreatVerdict) {
	if v.Kind == record.ThreatNone {
		return
	}
	e.sink.Counter("threats.detected", 1, Tags{
		"kind":     string(v.Kind),
		"severity": string(v.Severity),
		"scope":    string(v.Scope),
	})
}

// RecordAnomaly emits anomalies.detected, tagged metric/trigger/severity.
func (e *Emitter) RecordAnomaly(a record.Anomaly) {
	e.sink.Counter("anomalies.detected", 1, Tags{
		"metric":   string(a.Metric),
		"trigger":  string(a.Trigger),
		"severity": string(a.Severity),
	})
}

// RecordIncident emits incidents.created, tagged severity, plus an event.
func (e *Emitter) RecordIncident(inc *record.Incident) {
	e.sink.Counter("incidents.created", 1, Tags{"severity": string(inc.Severity)})
	e.sink.Event("incident created", inc.Summary, string(inc.Severity), Tags{"trace_id": inc.TraceID})
}

// RecordStoreWriteFailure emits store.write_failures, observable evidence
// that a store write was dropped after exhausting retries.
func (e *Emitter) RecordStoreWriteFailure() {
	e.sink.Counter("store.write_failures", 1, nil)
}
