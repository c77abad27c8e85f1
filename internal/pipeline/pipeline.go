// Package pipeline implements the orchestrator: it owns the bounded
// worker pool, the FIFO record queue, and the wiring between the
// Normalizer, the three concurrent analyzers, the Incident Synthesizer,
// the Emitter, and the Store.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/guardianai/telemetry-pipeline/internal/anomaly"
	"github.com/guardianai/telemetry-pipeline/internal/channel"
	"github.com/guardianai/telemetry-pipeline/internal/config"
	"github.com/guardianai/telemetry-pipeline/internal/ctxkeys"
	"github.com/guardianai/telemetry-pipeline/internal/emitter"
	"github.com/guardianai/telemetry-pipeline/internal/incident"
	"github.com/guardianai/telemetry-pipeline/internal/ingress"
	"github.com/guardianai/telemetry-pipeline/internal/normalize"
	"github.com/guardianai/telemetry-pipeline/internal/quality"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/guardianai/telemetry-pipeline/internal/store"
	"github.com/guardianai/telemetry-pipeline/internal/telemetry"
	"github.com/guardianai/telemetry-pipeline/internal/threat"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IncidentPublisher receives every synthesized Incident. internal/queryapi
// implements it; kept as a narrow interface so pipeline doesn't need to
// import queryapi's broadcast/sequence-number machinery.
type IncidentPublisher interface {
	PublishIncident(inc *record.Incident)
}

// Pipeline satisfies ingress.Submitter: it is the single point through
// which every transport (HTTP, a future broker consumer) feeds records
// into analysis.
type Pipeline struct {
	cfg *config.PipelineConfig

	normalizer  *normalize.Normalizer
	quality     *quality.Classifier
	threat      *threat.Classifier
	anomaly     *anomaly.Detector
	synthesizer *incident.Synthesizer
	store       store.Store
	emitter     *emitter.Emitter
	publisher   IncidentPublisher
	logger      *zap.Logger

	queue *channel.TunableChannel[*record.TelemetryRecord]
	wg    sync.WaitGroup
}

// Dependencies bundles every collaborator the Pipeline wires together,
// so New's signature doesn't grow every time SPEC_FULL gains a
// component.
type Dependencies struct {
	Normalizer  *normalize.Normalizer
	Quality     *quality.Classifier
	Threat      *threat.Classifier
	Anomaly     *anomaly.Detector
	Synthesizer *incident.Synthesizer
	Store       store.Store
	Emitter     *emitter.Emitter
	Publisher   IncidentPublisher
	Logger      *zap.Logger
}

func New(cfg *config.PipelineConfig, deps Dependencies) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	qcfg := channel.DefaultTunableConfig()
	qcfg.InitialSize = cfg.BatchSize * 2
	if qcfg.InitialSize <= 0 {
		qcfg.InitialSize = channel.DefaultTunableConfig().InitialSize
	}
	qcfg.MinSize = qcfg.InitialSize
	qcfg.MaxSize = qcfg.InitialSize

	return &Pipeline{
		cfg:         cfg,
		normalizer:  deps.Normalizer,
		quality:     deps.Quality,
		threat:      deps.Threat,
		anomaly:     deps.Anomaly,
		synthesizer: deps.Synthesizer,
		store:       deps.Store,
		emitter:     deps.Emitter,
		publisher:   deps.Publisher,
		logger:      logger.With(zap.String("component", "pipeline")),
		queue:       channel.NewTunableChannel[*record.TelemetryRecord](qcfg),
	}
}

// overloadCeiling is the backpressure threshold: the queue's capacity
// already equals batch_size*2, so a full queue and Overloaded are the
// same condition.
func (p *Pipeline) overloadCeiling() int {
	return p.cfg.BatchSize * 2
}

// Submit implements ingress.Submitter. Normalization and dedup run
// synchronously here, before the record is queued, so a duplicate
// trace_id is rejected in the same call the caller is awaiting rather
// than being silently dropped later by a worker. Past that check it
// never blocks: a saturated queue returns ingress.ErrOverloaded
// immediately rather than applying backpressure to the caller's
// goroutine.
func (p *Pipeline) Submit(_ context.Context, rec *record.TelemetryRecord) error {
	if err := p.normalizer.Normalize(rec); err != nil {
		var dup *record.DuplicateError
		if errors.As(err, &dup) {
			p.emitter.RecordDuplicate()
			p.logger.Debug("duplicate record rejected", zap.String("trace_id", rec.TraceID))
		}
		return err
	}

	if p.overloadCeiling() > 0 && p.queue.Len() >= p.overloadCeiling() {
		return ingress.ErrOverloaded
	}
	if !p.queue.TrySend(rec) {
		return ingress.ErrOverloaded
	}
	return nil
}

// Run starts max_concurrent_analyses workers and blocks until ctx is
// canceled, then drains in-flight work before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	workers := p.cfg.MaxConcurrentAnalyses
	if workers <= 0 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	<-ctx.Done()
	p.wg.Wait()
	return ctx.Err()
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-p.queue.Chan():
			if !ok {
				return
			}
			p.process(ctx, rec)
		}
	}
}

// process runs one record through the whole analysis chain within its
// deadline, cooperatively canceling outstanding analyzer work if the
// deadline is exceeded and synthesizing a partial incident from whatever
// completed.
func (p *Pipeline) process(ctx context.Context, rec *record.TelemetryRecord) {
	ctx = ctxkeys.WithTraceID(ctx, rec.TraceID)
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.process", oteltrace.WithAttributes(
		attribute.String("trace_id", rec.TraceID),
		attribute.String("model_id", rec.ModelID),
	))
	defer span.End()

	cctx, cancel := context.WithTimeout(ctx, p.cfg.RecordDeadline())
	defer cancel()

	// Quality and threat both make AI calls, so they fan out concurrently.
	// Anomaly detection is pure in-memory statistics and needs quality's
	// completed score as one of its inputs, so it runs after the fan-in
	// rather than as a third concurrent branch racing on that value.
	var qualityScore *record.QualityScore
	var threats []record.ThreatVerdict

	g, gctx := errgroup.WithContext(cctx)

	g.Go(func() error {
		sctx, s := telemetry.Tracer().Start(gctx, "pipeline.quality")
		defer s.End()
		qualityScore = p.quality.Classify(sctx, rec)
		return nil
	})
	g.Go(func() error {
		sctx, s := telemetry.Tracer().Start(gctx, "pipeline.threat")
		defer s.End()
		threats = p.classifyThreats(sctx, rec)
		return nil
	})
	_ = g.Wait()

	anomalies := p.anomaly.Check(anomaly.Sample{
		Now:            rec.IngestedAt,
		CostUSD:        rec.CostUSD,
		LatencyMS:      rec.LatencyMS,
		QualityOverall: overallOrNil(qualityScore),
		TotalTokens:    rec.InputTokens + rec.OutputTokens,
		ErrorOccurred:  rec.ErrorOccurred,
	})

	partial := cctx.Err() != nil
	span.SetAttributes(attribute.Bool("partial", partial), attribute.Int("threat_count", len(threats)), attribute.Int("anomaly_count", len(anomalies)))

	p.emitter.RecordRecord(rec, qualityScore)
	for _, t := range threats {
		p.emitter.RecordThreat(t)
	}
	for _, a := range anomalies {
		p.emitter.RecordAnomaly(a)
	}

	if p.cfg.EnableIncidentEmission {
		p.synthesizeAndStore(ctx, rec, qualityScore, threats, anomalies, partial)
	}

	if err := p.store.PutRecord(ctx, rec); err != nil {
		p.logger.Warn("record store write failed", zap.String("trace_id", rec.TraceID), zap.Error(err))
		p.emitter.RecordStoreWriteFailure()
	}
}

// classifyThreats runs the Threat Classifier once per non-empty scope.
// The teacher's classifier does not itself gate on
// EnableThreatDetection, so the pipeline is the gate.
func (p *Pipeline) classifyThreats(ctx context.Context, rec *record.TelemetryRecord) []record.ThreatVerdict {
	if !p.cfg.EnableThreatDetection {
		return nil
	}

	var verdicts []record.ThreatVerdict
	if v := p.threat.Classify(ctx, rec.TraceID, rec.Prompt, record.ScopePrompt); v != nil && v.Kind != record.ThreatNone {
		verdicts = append(verdicts, *v)
	}
	if v := p.threat.Classify(ctx, rec.TraceID, rec.Response, record.ScopeResponse); v != nil && v.Kind != record.ThreatNone {
		verdicts = append(verdicts, *v)
	}
	return verdicts
}

func (p *Pipeline) synthesizeAndStore(ctx context.Context, rec *record.TelemetryRecord, qualityScore *record.QualityScore, threats []record.ThreatVerdict, anomalies []record.Anomaly, partial bool) {
	inc := p.synthesizer.Synthesize(incident.Inputs{
		TraceID:    rec.TraceID,
		IngestedAt: rec.IngestedAt,
		Threats:    threats,
		Anomalies:  anomalies,
		Quality:    qualityScore,
		Partial:    partial,
	})
	if inc == nil {
		return
	}

	p.emitter.RecordIncident(inc)
	if err := p.store.PutIncident(ctx, inc); err != nil {
		p.logger.Warn("incident store write failed", zap.String("incident_id", inc.ID), zap.Error(err))
		p.emitter.RecordStoreWriteFailure()
	}
	if p.publisher != nil {
		p.publisher.PublishIncident(inc)
	}
}

func overallOrNil(q *record.QualityScore) *float64 {
	if q == nil {
		return nil
	}
	return q.Overall
}
