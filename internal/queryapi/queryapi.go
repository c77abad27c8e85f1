// Package queryapi implements the Incident Synthesizer's query/push
// surface: read access to persisted incidents, status transitions, and
// two broadcast channels a transport layer (internal/httpapi) fans out to
// subscribers.
package queryapi

import (
	"context"
	"sync/atomic"

	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/guardianai/telemetry-pipeline/internal/store"
	"go.uber.org/zap"
)

// IncidentEvent is published once per newly synthesized Incident.
type IncidentEvent struct {
	Seq      int64
	Incident *record.Incident
}

// TransitionEvent is published once per successful status Transition.
type TransitionEvent struct {
	Seq        int64
	IncidentID string
	From       record.IncidentStatus
	To         record.IncidentStatus
}

// QueryAPI is the in-process surface internal/httpapi fronts with HTTP and
// websocket handlers.
type QueryAPI interface {
	List(ctx context.Context, q store.Query) ([]*record.Incident, error)
	Get(ctx context.Context, id string) (*record.Incident, error)
	Transition(ctx context.Context, id string, to record.IncidentStatus) (*record.Incident, error)
	Incidents() <-chan IncidentEvent
	Transitions() <-chan TransitionEvent
}

const eventBufferSize = 256

// Service is QueryAPI's implementation, backed by a store.Store. The
// pipeline calls PublishIncident once per synthesized Incident; Service
// itself publishes TransitionEvents whenever Transition succeeds.
type Service struct {
	store  store.Store
	logger *zap.Logger
	seq    atomic.Int64

	incidentCh   chan IncidentEvent
	transitionCh chan TransitionEvent
}

func New(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        st,
		logger:       logger.With(zap.String("component", "queryapi")),
		incidentCh:   make(chan IncidentEvent, eventBufferSize),
		transitionCh: make(chan TransitionEvent, eventBufferSize),
	}
}

func (s *Service) List(ctx context.Context, q store.Query) ([]*record.Incident, error) {
	return s.store.QueryIncidents(ctx, q)
}

func (s *Service) Get(ctx context.Context, id string) (*record.Incident, error) {
	return s.store.GetIncident(ctx, id)
}

func (s *Service) Transition(ctx context.Context, id string, to record.IncidentStatus) (*record.Incident, error) {
	before, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	from := before.Status

	updated, err := s.store.UpdateIncidentStatus(ctx, id, to)
	if err != nil {
		return nil, err
	}

	s.publishTransition(id, from, to)
	return updated, nil
}

// PublishIncident is called by internal/pipeline once per synthesized
// Incident. Publication is non-blocking: a full buffer drops the event
// rather than stalling record processing, since the push channel is an
// observability convenience, not the durable record (the store is).
func (s *Service) PublishIncident(inc *record.Incident) {
	evt := IncidentEvent{Seq: s.seq.Add(1), Incident: inc}
	select {
	case s.incidentCh <- evt:
	default:
		s.logger.Warn("incident event buffer full, dropped", zap.String("incident_id", inc.ID))
	}
}

func (s *Service) publishTransition(id string, from, to record.IncidentStatus) {
	evt := TransitionEvent{Seq: s.seq.Add(1), IncidentID: id, From: from, To: to}
	select {
	case s.transitionCh <- evt:
	default:
		s.logger.Warn("transition event buffer full, dropped", zap.String("incident_id", id))
	}
}

func (s *Service) Incidents() <-chan IncidentEvent { return s.incidentCh }

func (s *Service) Transitions() <-chan TransitionEvent { return s.transitionCh }
