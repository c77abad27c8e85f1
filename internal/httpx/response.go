// Package httpx holds the JSON response envelope and request-decoding
// helpers shared by internal/ingress's and internal/httpapi's HTTP
// handlers, so every endpoint in the process answers with the same
// success/error shape.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrorCode is a small closed set of API error codes, independent of the
// domain error types (record.MalformedError, store.ErrNotFound, ...)
// that handlers translate into one of these.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "invalid_request"
	ErrNotFound          ErrorCode = "not_found"
	ErrOverloaded        ErrorCode = "overloaded"
	ErrIllegalTransition ErrorCode = "illegal_transition"
	ErrInternal          ErrorCode = "internal_error"
)

// Response is the uniform JSON envelope for every handler in the process.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{Success: true, Data: data, Timestamp: time.Now()})
}

// WriteError maps code to an HTTP status and writes the error envelope,
// logging the failure at warn if logger is non-nil.
func WriteError(w http.ResponseWriter, code ErrorCode, message string, logger *zap.Logger) {
	status := mapCodeToStatus(code)
	if logger != nil {
		logger.Warn("api error", zap.String("code", string(code)), zap.String("message", message), zap.Int("status", status))
	}
	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorInfo{Code: string(code), Message: message},
		Timestamp: time.Now(),
	})
}

func mapCodeToStatus(code ErrorCode) int {
	switch code {
	case ErrInvalidRequest, ErrIllegalTransition:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrOverloaded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes r's body into dst in strict mode, rejecting
// unknown fields, and writes an error response itself on failure.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		WriteError(w, ErrInvalidRequest, "request body is empty", logger)
		return errEmptyBody
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		WriteError(w, ErrInvalidRequest, "invalid JSON body: "+err.Error(), logger)
		return err
	}
	return nil
}

var errEmptyBody = &emptyBodyError{}

type emptyBodyError struct{}

func (e *emptyBodyError) Error() string { return "request body is empty" }

// ResponseWriter wraps http.ResponseWriter to capture the status code
// written, for access-log middleware.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
