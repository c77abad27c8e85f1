package ingress

import (
	"context"
	"testing"

	"github.com/guardianai/telemetry-pipeline/internal/emitter"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	counters map[string]int
}

func newFakeSink() *fakeSink { return &fakeSink{counters: make(map[string]int)} }

func (s *fakeSink) Counter(name string, value float64, tags emitter.Tags) { s.counters[name]++ }
func (s *fakeSink) Gauge(name string, value float64, tags emitter.Tags)   {}
func (s *fakeSink) Histogram(name string, value float64, tags emitter.Tags) {}
func (s *fakeSink) Event(name, message, severity string, tags emitter.Tags) {}

type fakeSubmitter struct {
	err        error
	overloaded bool
	submitted  []*record.TelemetryRecord
}

func (f *fakeSubmitter) Submit(ctx context.Context, rec *record.TelemetryRecord) error {
	if f.overloaded {
		return ErrOverloaded
	}
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, rec)
	return nil
}

func TestSubmit_AcceptsValidRecords(t *testing.T) {
	sink := newFakeSink()
	sub := &fakeSubmitter{}
	a := New(sub, emitter.New(sink), nil)

	res := a.Submit(context.Background(), []*record.TelemetryRecord{
		{TraceID: "t1"},
		{TraceID: "t2"},
	})

	assert.Equal(t, 2, res.Accepted)
	assert.Empty(t, res.Rejected)
	assert.False(t, res.Overloaded)
	assert.Equal(t, 2, sink.counters["ingress.accepted"])
}

func TestSubmit_RejectsMalformedRecord(t *testing.T) {
	sink := newFakeSink()
	sub := &fakeSubmitter{}
	a := New(sub, emitter.New(sink), nil)

	res := a.Submit(context.Background(), []*record.TelemetryRecord{
		{TraceID: ""}, // missing trace_id
	})

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 0, res.Accepted)
	assert.Equal(t, 1, sink.counters["ingress.rejected"])
}

func TestSubmit_RejectsDuplicateSynchronously(t *testing.T) {
	sink := newFakeSink()
	sub := &fakeSubmitter{err: &record.DuplicateError{TraceID: "t1"}}
	a := New(sub, emitter.New(sink), nil)

	res := a.Submit(context.Background(), []*record.TelemetryRecord{
		{TraceID: "t1"},
	})

	assert.Equal(t, 0, res.Accepted)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "duplicate")
	assert.Equal(t, 1, sink.counters["ingress.rejected"])
}

func TestSubmit_StopsOnOverloaded(t *testing.T) {
	sink := newFakeSink()
	sub := &fakeSubmitter{overloaded: true}
	a := New(sub, emitter.New(sink), nil)

	res := a.Submit(context.Background(), []*record.TelemetryRecord{
		{TraceID: "t1"},
		{TraceID: "t2"},
	})

	assert.True(t, res.Overloaded)
	assert.Equal(t, 0, res.Accepted)
	require.Len(t, res.Rejected, 1)
}

func TestDecodePayload_SingleObject(t *testing.T) {
	recs, err := DecodePayload([]byte(`{"trace_id":"t1"}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "t1", recs[0].TraceID)
}

func TestDecodePayload_Array(t *testing.T) {
	recs, err := DecodePayload([]byte(`[{"trace_id":"t1"},{"trace_id":"t2"}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestDecodePayload_Empty(t *testing.T) {
	_, err := DecodePayload([]byte(``))
	require.Error(t, err)
}

func TestDecodePayload_UnknownField(t *testing.T) {
	_, err := DecodePayload([]byte(`{"trace_id":"t1","bogus_field":1}`))
	require.Error(t, err)
}
