// Package store implements the Record Store Adapter: durable persistence
// for TelemetryRecords and Incidents, behind a narrow interface so the
// pipeline never depends on a specific database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/guardianai/telemetry-pipeline/internal/record"
)

// ErrNotFound is returned by GetIncident when no incident has the given id.
var ErrNotFound = errors.New("store: incident not found")

// ErrWriteFailure wraps the underlying error of a write that exhausted
// its retry budget. Callers observe it via errors.As; the emitter reports
// it as store.write_failures rather than escalating.
type ErrWriteFailure struct {
	Op  string
	Err error
}

func (e *ErrWriteFailure) Error() string {
	return "store: " + e.Op + " failed after retries: " + e.Err.Error()
}

func (e *ErrWriteFailure) Unwrap() error { return e.Err }

// Query filters QueryIncidents. A zero-value Query matches everything,
// newest first, up to the default page size.
type Query struct {
	Severity record.Severity
	Status   record.IncidentStatus
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 500
)

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultQueryLimit
	}
	if q.Limit > maxQueryLimit {
		return maxQueryLimit
	}
	return q.Limit
}

// Store is the persistence contract every analyzer/synthesizer output
// flows through. Write semantics are at-most-once: a write is attempted
// with retries, and on exhaustion the record is dropped and counted, never
// retried indefinitely and never blocking pipeline throughput.
type Store interface {
	PutRecord(ctx context.Context, rec *record.TelemetryRecord) error
	PutIncident(ctx context.Context, inc *record.Incident) error
	GetIncident(ctx context.Context, id string) (*record.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id string, status record.IncidentStatus) (*record.Incident, error)
	QueryIncidents(ctx context.Context, q Query) ([]*record.Incident, error)
}
