package store

import (
	"context"
	"sort"
	"sync"

	"github.com/guardianai/telemetry-pipeline/internal/record"
)

// MemoryStore is an in-process map-backed Store used by tests; `pipeline
// serve` always uses PostgresStore. Writes never fail, so it never
// produces ErrWriteFailure.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*record.TelemetryRecord
	incidents map[string]*record.Incident
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*record.TelemetryRecord),
		incidents: make(map[string]*record.Incident),
	}
}

func (m *MemoryStore) PutRecord(_ context.Context, rec *record.TelemetryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.TraceID] = &cp
	return nil
}

func (m *MemoryStore) PutIncident(_ context.Context, inc *record.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inc
	m.incidents[inc.ID] = &cp
	return nil
}

func (m *MemoryStore) GetIncident(_ context.Context, id string) (*record.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inc
	return &cp, nil
}

func (m *MemoryStore) UpdateIncidentStatus(_ context.Context, id string, status record.IncidentStatus) (*record.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inc
	if err := cp.Transition(status); err != nil {
		return nil, err
	}
	m.incidents[id] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) QueryIncidents(_ context.Context, q Query) ([]*record.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]*record.Incident, 0, len(m.incidents))
	for _, inc := range m.incidents {
		if q.Severity != "" && inc.Severity != q.Severity {
			continue
		}
		if q.Status != "" && inc.Status != q.Status {
			continue
		}
		if !q.Since.IsZero() && inc.CreatedAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && inc.CreatedAt.After(q.Until) {
			continue
		}
		cp := *inc
		matches = append(matches, &cp)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	limit := q.limit()
	if q.Offset >= len(matches) {
		return []*record.Incident{}, nil
	}
	end := q.Offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[q.Offset:end], nil
}

// RecordCount reports how many records have been stored, for tests.
func (m *MemoryStore) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
