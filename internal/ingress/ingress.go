// Package ingress implements the Ingress Adapter: it accepts raw
// TelemetryRecords from any transport, validates them, and hands
// well-formed records to the pipeline for processing.
package ingress

import (
	"context"
	"errors"

	"github.com/guardianai/telemetry-pipeline/internal/emitter"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"go.uber.org/zap"
)

// ErrOverloaded is returned by Submitter.Submit when the pipeline's
// record queue is full (its backpressure ceiling). It is a
// pipeline-wide signal, not a per-record validation failure.
var ErrOverloaded = errors.New("ingress: pipeline overloaded")

// Submitter is implemented by internal/pipeline. It is the sole coupling
// point between ingress and the pipeline's internals, kept narrow so
// ingress never needs to know about worker pools or queues.
type Submitter interface {
	Submit(ctx context.Context, rec *record.TelemetryRecord) error
}

// MessageSource is implemented by a broker consumer (pub/sub, Kafka,
// etc.) that wants to feed raw records into Submit without the core
// depending on any specific broker SDK — grounded on the teacher's
// Provider-interface pattern (llm/provider.go) for keeping a transport
// concern behind a narrow Go interface.
type MessageSource interface {
	// Messages returns a channel of raw JSON payloads (a single record
	// object or a JSON array of records), closed when the source is
	// exhausted or ctx is done.
	Messages(ctx context.Context) (<-chan []byte, error)
}

// RejectedRecord reports why a single record in a batch was not
// accepted.
type RejectedRecord struct {
	TraceID string `json:"trace_id"`
	Reason  string `json:"reason"`
}

// Result summarizes the outcome of one Submit call.
type Result struct {
	Accepted   int              `json:"accepted"`
	Rejected   []RejectedRecord `json:"rejected,omitempty"`
	Overloaded bool             `json:"overloaded"`
}

// Adapter validates and submits raw records, and emits the
// ingress.accepted/ingress.rejected counters.
type Adapter struct {
	submitter Submitter
	emitter   *emitter.Emitter
	logger    *zap.Logger
}

func New(submitter Submitter, em *emitter.Emitter, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{submitter: submitter, emitter: em, logger: logger.With(zap.String("component", "ingress"))}
}

// Submit validates then submits each record, stopping early on the first
// Overloaded signal — once the pipeline is saturated, retrying the rest
// of the batch against it wastes work the caller should back off from
// instead.
func (a *Adapter) Submit(ctx context.Context, raws []*record.TelemetryRecord) Result {
	var res Result

	for _, rec := range raws {
		if rec == nil {
			continue
		}
		if err := rec.Validate(); err != nil {
			a.reject(&res, rec.TraceID, err.Error())
			continue
		}

		err := a.submitter.Submit(ctx, rec)
		switch {
		case err == nil:
			res.Accepted++
			a.emitter.RecordIngress(true)
		case errors.Is(err, ErrOverloaded):
			res.Overloaded = true
			a.reject(&res, rec.TraceID, "pipeline overloaded")
			return res
		default:
			a.reject(&res, rec.TraceID, err.Error())
		}
	}
	return res
}

func (a *Adapter) reject(res *Result, traceID, reason string) {
	res.Rejected = append(res.Rejected, RejectedRecord{TraceID: traceID, Reason: reason})
	a.emitter.RecordIngress(false)
}

// Consume drains src until its channel closes or ctx is done, decoding
// and submitting each payload. Malformed payloads are logged and
// skipped; they never abort the loop.
func (a *Adapter) Consume(ctx context.Context, src MessageSource) error {
	ch, err := src.Messages(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			recs, err := DecodePayload(payload)
			if err != nil {
				a.logger.Warn("dropping unparsable message payload", zap.Error(err))
				continue
			}
			a.Submit(ctx, recs)
		}
	}
}
