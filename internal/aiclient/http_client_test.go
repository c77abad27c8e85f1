package aiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Complete_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "guardian-quality-v1", body.Model)
		assert.Len(t, body.Messages, 2)

		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []chatCompletionChoice{{Message: chatMessage{Role: "assistant", Content: `{"coherence":0.9}`}}},
			Usage:   chatCompletionUsage{PromptTokens: 10, CompletionTokens: 5},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, APIKey: "test-key"}, nil)
	resp, err := c.Complete(t.Context(), Request{
		System: "rubric",
		User:   "content",
		Params: Params{ModelName: "guardian-quality-v1"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"coherence":0.9}`, resp.Text)
	assert.Equal(t, 10, resp.PromptTokens)
}

func TestHTTPClient_Complete_MapsRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, APIKey: "test-key"}, nil)
	_, err := c.Complete(t.Context(), Request{Params: Params{ModelName: "x"}})
	require.Error(t, err)

	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ErrRateLimited, aerr.Code)
	assert.True(t, aerr.Retryable)
	assert.EqualValues(t, 3, aerr.RetryAfter)
}

func TestHTTPClient_Complete_MapsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, APIKey: "bad"}, nil)
	_, err := c.Complete(t.Context(), Request{Params: Params{ModelName: "x"}})
	require.Error(t, err)

	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ErrUnauthorized, aerr.Code)
	assert.False(t, aerr.Retryable)
}
