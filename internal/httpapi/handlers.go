package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/guardianai/telemetry-pipeline/internal/httpx"
	"github.com/guardianai/telemetry-pipeline/internal/queryapi"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/guardianai/telemetry-pipeline/internal/store"
	"go.uber.org/zap"
)

type incidentHandlers struct {
	api    queryapi.QueryAPI
	logger *zap.Logger
}

// list implements GET /incidents?severity=&status=&since=&until=&limit=&offset=.
func (h *incidentHandlers) list(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.WriteError(w, httpx.ErrInvalidRequest, err.Error(), h.logger)
		return
	}

	incidents, err := h.api.List(r.Context(), q)
	if err != nil {
		httpx.WriteError(w, httpx.ErrInternal, "failed to list incidents", h.logger)
		return
	}
	httpx.WriteSuccess(w, incidents)
}

// get implements GET /incidents/{id}.
func (h *incidentHandlers) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inc, err := h.api.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	httpx.WriteSuccess(w, inc)
}

type transitionRequest struct {
	Status string `json:"status"`
}

// transition implements POST /incidents/{id}/transition.
func (h *incidentHandlers) transition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body transitionRequest
	if err := httpx.DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return
	}

	status := record.IncidentStatus(body.Status)
	if !status.Valid() {
		httpx.WriteError(w, httpx.ErrInvalidRequest, "unknown incident status: "+body.Status, h.logger)
		return
	}

	inc, err := h.api.Transition(r.Context(), id, status)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	httpx.WriteSuccess(w, inc)
}

func (h *incidentHandlers) writeStoreError(w http.ResponseWriter, err error) {
	var illegal *record.IllegalTransitionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, httpx.ErrNotFound, "incident not found", nil)
	case errors.As(err, &illegal):
		// Policy error: logged at debug, never error, per the taxonomy.
		h.logger.Debug("illegal incident transition rejected", zap.Error(err))
		httpx.WriteError(w, httpx.ErrIllegalTransition, err.Error(), nil)
	default:
		httpx.WriteError(w, httpx.ErrInternal, "internal error", h.logger)
	}
}

func parseQuery(r *http.Request) (store.Query, error) {
	var q store.Query
	v := r.URL.Query()

	if s := v.Get("severity"); s != "" {
		q.Severity = record.Severity(s)
		if !q.Severity.Valid() {
			return q, errInvalidParam("severity")
		}
	}
	if s := v.Get("status"); s != "" {
		q.Status = record.IncidentStatus(s)
		if !q.Status.Valid() {
			return q, errInvalidParam("status")
		}
	}
	if s := v.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errInvalidParam("since")
		}
		q.Since = t
	}
	if s := v.Get("until"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errInvalidParam("until")
		}
		q.Until = t
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, errInvalidParam("limit")
		}
		q.Limit = n
	}
	if s := v.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, errInvalidParam("offset")
		}
		q.Offset = n
	}
	return q, nil
}

type invalidParamError struct{ param string }

func (e *invalidParamError) Error() string { return "invalid query parameter: " + e.param }

func errInvalidParam(param string) error { return &invalidParamError{param: param} }
