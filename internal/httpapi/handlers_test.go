package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/guardianai/telemetry-pipeline/internal/queryapi"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/guardianai/telemetry-pipeline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQueryAPI struct {
	incidents        map[string]*record.Incident
	transitionErr    error
	incidentEvents   chan queryapi.IncidentEvent
	transitionEvents chan queryapi.TransitionEvent
}

func newFakeQueryAPI() *fakeQueryAPI {
	return &fakeQueryAPI{
		incidents:        make(map[string]*record.Incident),
		incidentEvents:   make(chan queryapi.IncidentEvent, 1),
		transitionEvents: make(chan queryapi.TransitionEvent, 1),
	}
}

func (f *fakeQueryAPI) List(ctx context.Context, q store.Query) ([]*record.Incident, error) {
	var out []*record.Incident
	for _, inc := range f.incidents {
		out = append(out, inc)
	}
	return out, nil
}

func (f *fakeQueryAPI) Get(ctx context.Context, id string) (*record.Incident, error) {
	inc, ok := f.incidents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return inc, nil
}

func (f *fakeQueryAPI) Transition(ctx context.Context, id string, to record.IncidentStatus) (*record.Incident, error) {
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	inc, ok := f.incidents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := inc.Transition(to); err != nil {
		return nil, err
	}
	return inc, nil
}

func (f *fakeQueryAPI) Incidents() <-chan queryapi.IncidentEvent     { return f.incidentEvents }
func (f *fakeQueryAPI) Transitions() <-chan queryapi.TransitionEvent { return f.transitionEvents }

func TestListIncidents(t *testing.T) {
	api := newFakeQueryAPI()
	api.incidents["inc-1"] = &record.Incident{ID: "inc-1", Status: record.StatusOpen}

	mux := NewMux(api, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/incidents", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["success"].(bool))
}

func TestGetIncident_NotFound(t *testing.T) {
	api := newFakeQueryAPI()
	mux := NewMux(api, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/incidents/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionIncident_Success(t *testing.T) {
	api := newFakeQueryAPI()
	api.incidents["inc-1"] = &record.Incident{ID: "inc-1", Status: record.StatusOpen}
	mux := NewMux(api, zap.NewNop())

	body := strings.NewReader(`{"status":"acknowledged"}`)
	req := httptest.NewRequest(http.MethodPost, "/incidents/inc-1/transition", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, record.StatusAcknowledged, api.incidents["inc-1"].Status)
}

func TestTransitionIncident_IllegalTransition(t *testing.T) {
	api := newFakeQueryAPI()
	api.incidents["inc-1"] = &record.Incident{ID: "inc-1", Status: record.StatusOpen}
	mux := NewMux(api, zap.NewNop())

	body := strings.NewReader(`{"status":"resolved"}`)
	req := httptest.NewRequest(http.MethodPost, "/incidents/inc-1/transition", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionIncident_UnknownStatus(t *testing.T) {
	api := newFakeQueryAPI()
	api.incidents["inc-1"] = &record.Incident{ID: "inc-1", Status: record.StatusOpen}
	mux := NewMux(api, zap.NewNop())

	body := strings.NewReader(`{"status":"bogus"}`)
	req := httptest.NewRequest(http.MethodPost, "/incidents/inc-1/transition", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListIncidents_InvalidSeverityParam(t *testing.T) {
	api := newFakeQueryAPI()
	mux := NewMux(api, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/incidents?severity=bogus", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
