package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/guardianai/telemetry-pipeline/internal/tlsutil"
	"go.uber.org/zap"
)

// HTTPConfig configures an OpenAI-compatible chat-completions endpoint.
type HTTPConfig struct {
	BaseURL      string
	APIKey       string
	EndpointPath string // defaults to "/v1/chat/completions"
	Timeout      time.Duration
}

// HTTPClient talks to any OpenAI-compatible chat-completions endpoint.
// It performs no retries or circuit breaking itself — wrap it with
// Resilient for that.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

type chatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
	Usage   chatCompletionUsage    `json:"usage,omitempty"`
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	body := chatCompletionRequest{
		Model: req.Params.ModelName,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		MaxTokens:   req.Params.MaxOutputTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Code: ErrInvalidRequest, Message: err.Error()}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.EndpointPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Code: ErrInvalidRequest, Message: err.Error()}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("ai client request failed", zap.String("trace_id", req.TraceID), zap.Error(err))
		return nil, &Error{Code: ErrUpstreamError, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, mapHTTPError(resp.StatusCode, string(raw), resp.Header.Get("Retry-After"))
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Code: ErrMalformedResponse, Message: err.Error(), Retryable: true}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Code: ErrMalformedResponse, Message: "no choices returned", Retryable: true}
	}

	return &Response{
		Text:             parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func mapHTTPError(status int, msg string, retryAfterHeader string) *Error {
	var retryAfter int64
	if retryAfterHeader != "" {
		if s, err := strconv.ParseInt(retryAfterHeader, 10, 64); err == nil {
			retryAfter = s
		}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Code: ErrUnauthorized, Message: msg, HTTPStatus: status}
	case http.StatusTooManyRequests:
		return &Error{Code: ErrRateLimited, Message: msg, HTTPStatus: status, Retryable: true, RetryAfter: retryAfter}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &Error{Code: ErrInvalidRequest, Message: msg, HTTPStatus: status}
	default:
		if status >= 500 {
			return &Error{Code: ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: true}
		}
		return &Error{Code: ErrUpstreamError, Message: fmt.Sprintf("status %d: %s", status, msg), HTTPStatus: status}
	}
}
