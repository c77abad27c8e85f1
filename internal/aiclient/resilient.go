package aiclient

import (
	"context"
	"time"

	"github.com/guardianai/telemetry-pipeline/internal/breaker"
	"github.com/guardianai/telemetry-pipeline/internal/retrywrap"
	"go.uber.org/zap"
)

// Resilient wraps a Client with retry and circuit-breaking, the way
// llm.ResilientProvider wraps an llm.Provider. Retries happen inside the
// breaker's guard: a whole retry sequence that ends in a retryable error
// counts as one breaker failure, and once the breaker is open, calls are
// rejected before any attempt reaches the upstream.
type Resilient struct {
	inner   Client
	breaker *breaker.Breaker
	policy  retrywrap.Policy
	logger  *zap.Logger
}

func NewResilient(inner Client, br *breaker.Breaker, maxRetries int, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := retrywrap.DefaultPolicy(maxRetries)
	policy.Retryable = IsRetryable
	policy.RetryAfter = func(err error) time.Duration {
		return time.Duration(RetryAfterOf(err)) * time.Second
	}
	return &Resilient{inner: inner, breaker: br, policy: policy, logger: logger}
}

func (r *Resilient) Complete(ctx context.Context, req Request) (*Response, error) {
	result, err := breaker.Call(r.breaker, ctx, func(ctx context.Context) (*Response, error) {
		return retrywrap.Do(ctx, r.policy, func(ctx context.Context) (*Response, error) {
			return r.inner.Complete(ctx, req)
		})
	}, IsRetryable)

	if err != nil {
		r.logger.Warn("ai client call failed after retries",
			zap.String("trace_id", req.TraceID),
			zap.Error(err),
		)
	}
	return result, err
}
