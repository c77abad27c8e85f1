package ingress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/guardianai/telemetry-pipeline/internal/httpx"
	"github.com/guardianai/telemetry-pipeline/internal/record"
	"go.uber.org/zap"
)

const maxTelemetryBodyBytes = 8 << 20 // 8 MiB per POST

// Handler exposes the Ingress Adapter over HTTP: POST /telemetry accepts
// either a single TelemetryRecord object or a JSON array of them.
type Handler struct {
	adapter *Adapter
	logger  *zap.Logger
}

func NewHandler(adapter *Adapter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{adapter: adapter, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, httpx.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxTelemetryBodyBytes)
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		httpx.WriteError(w, httpx.ErrInvalidRequest, "body too large or unreadable", h.logger)
		return
	}

	recs, err := DecodePayload(raw)
	if err != nil {
		httpx.WriteError(w, httpx.ErrInvalidRequest, err.Error(), h.logger)
		return
	}

	result := h.adapter.Submit(r.Context(), recs)
	if result.Overloaded {
		httpx.WriteJSON(w, http.StatusTooManyRequests, struct {
			Success bool   `json:"success"`
			Result  Result `json:"result"`
		}{Success: false, Result: result})
		return
	}
	httpx.WriteSuccess(w, result)
}

// DecodePayload accepts either a single TelemetryRecord JSON object or a
// JSON array of them, matching spec §6's "single record or JSON array"
// requirement for POST /telemetry.
func DecodePayload(raw []byte) ([]*record.TelemetryRecord, error) {
	trimmed := skipLeadingSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty request body")
	}

	if trimmed[0] == '[' {
		var recs []*record.TelemetryRecord
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&recs); err != nil {
			return nil, fmt.Errorf("invalid JSON array body: %w", err)
		}
		return recs, nil
	}

	var rec record.TelemetryRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return []*record.TelemetryRecord{&rec}, nil
}

func skipLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}
