// Package httpapi fronts internal/queryapi with HTTP handlers: listing and
// reading incidents, applying status transitions, and a websocket stream
// of the push channels — grounded on the teacher's api/handlers response
// envelope (common.go) and its net/http.ServeMux + middleware chain
// (cmd/agentflow/middleware.go).
package httpapi

import (
	"net/http"

	"github.com/guardianai/telemetry-pipeline/internal/queryapi"
	"go.uber.org/zap"
)

// NewMux builds the incident query/push surface's routing table. The
// caller (cmd/pipeline) mounts this alongside internal/ingress's own
// handler on the process's single listener.
func NewMux(api queryapi.QueryAPI, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &incidentHandlers{api: api, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /incidents", h.list)
	mux.HandleFunc("GET /incidents/{id}", h.get)
	mux.HandleFunc("POST /incidents/{id}/transition", h.transition)
	mux.HandleFunc("GET /incidents/stream", h.stream)

	return Chain(mux,
		Recovery(logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(logger),
	)
}
