package queryapi

import (
	"context"
	"errors"
	"testing"

	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/guardianai/telemetry-pipeline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	incidents map[string]*record.Incident
}

func newFakeStore() *fakeStore {
	return &fakeStore{incidents: map[string]*record.Incident{}}
}

func (f *fakeStore) PutRecord(context.Context, *record.TelemetryRecord) error { return nil }

func (f *fakeStore) PutIncident(_ context.Context, inc *record.Incident) error {
	f.incidents[inc.ID] = inc
	return nil
}

func (f *fakeStore) GetIncident(_ context.Context, id string) (*record.Incident, error) {
	inc, ok := f.incidents[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return inc, nil
}

func (f *fakeStore) UpdateIncidentStatus(_ context.Context, id string, status record.IncidentStatus) (*record.Incident, error) {
	inc, ok := f.incidents[id]
	if !ok {
		return nil, errors.New("not found")
	}
	if err := inc.Transition(status); err != nil {
		return nil, err
	}
	return inc, nil
}

func (f *fakeStore) QueryIncidents(_ context.Context, q store.Query) ([]*record.Incident, error) {
	var out []*record.Incident
	for _, inc := range f.incidents {
		if q.Severity != "" && inc.Severity != q.Severity {
			continue
		}
		out = append(out, inc)
	}
	return out, nil
}

func TestService_TransitionPublishesEvent(t *testing.T) {
	st := newFakeStore()
	st.incidents["inc-1"] = &record.Incident{ID: "inc-1", Status: record.StatusOpen}

	svc := New(st, zap.NewNop())

	updated, err := svc.Transition(context.Background(), "inc-1", record.StatusAcknowledged)
	require.NoError(t, err)
	assert.Equal(t, record.StatusAcknowledged, updated.Status)

	select {
	case evt := <-svc.Transitions():
		assert.Equal(t, "inc-1", evt.IncidentID)
		assert.Equal(t, record.StatusOpen, evt.From)
		assert.Equal(t, record.StatusAcknowledged, evt.To)
	default:
		t.Fatal("expected a transition event to be published")
	}
}

func TestService_TransitionRejectsIllegalMove(t *testing.T) {
	st := newFakeStore()
	st.incidents["inc-1"] = &record.Incident{ID: "inc-1", Status: record.StatusOpen}

	svc := New(st, zap.NewNop())

	_, err := svc.Transition(context.Background(), "inc-1", record.StatusResolved)
	require.Error(t, err)

	select {
	case <-svc.Transitions():
		t.Fatal("no transition event should be published on failure")
	default:
	}
}

func TestService_PublishIncident_DropsWhenBufferFull(t *testing.T) {
	st := newFakeStore()
	svc := New(st, zap.NewNop())

	for i := 0; i < eventBufferSize+10; i++ {
		svc.PublishIncident(&record.Incident{ID: "inc"})
	}

	count := 0
	for {
		select {
		case <-svc.Incidents():
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, eventBufferSize, count, "publication beyond the buffer must be dropped, not block")
}

func TestService_GetAndList(t *testing.T) {
	st := newFakeStore()
	st.incidents["inc-1"] = &record.Incident{ID: "inc-1", Severity: record.SeverityHigh}

	svc := New(st, zap.NewNop())

	got, err := svc.Get(context.Background(), "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "inc-1", got.ID)

	list, err := svc.List(context.Background(), store.Query{Severity: record.SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
