// Package retrywrap implements the exponential-backoff-with-jitter retry
// loop used by every leaf adapter call in the pipeline (AI client calls,
// store writes). It is a result-typed retry loop rather than
// exception-based control flow: the callee reports retryable vs.
// terminal failure explicitly through the Retryable predicate.
package retrywrap

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy configures the backoff loop: exponential backoff with a base
// delay, a cap, and +/- jitter.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
	JitterFrac float64 // e.g. 0.2 for +/-20%

	// Retryable reports whether err should trigger another attempt. A nil
	// Retryable treats every non-nil error as retryable.
	Retryable func(err error) bool

	// RetryAfter optionally extracts a server-provided retry-after hint
	// from err; when non-zero it is honored in place of the computed
	// backoff for that attempt.
	RetryAfter func(err error) time.Duration
}

// DefaultPolicy returns the standard 500ms/5s/20% backoff used across
// leaf adapters.
func DefaultPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		Base:       500 * time.Millisecond,
		Cap:        5 * time.Second,
		JitterFrac: 0.2,
	}
}

// ErrCancelled is returned (in place of ctx.Err(), which it does not
// wrap) when cancellation is observed between retry attempts.
var ErrCancelled = errors.New("retrywrap: cancelled")

// Do runs fn, retrying on retryable failures per policy. Cancellation is
// observed cooperatively between attempts: an in-flight fn call is not
// itself interrupted, but no further attempt is started once ctx is done.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := computeDelay(policy, attempt, lastErr)
			select {
			case <-ctx.Done():
				return zero, ErrCancelled
			case <-time.After(delay):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(policy, err) {
			return zero, err
		}
		if attempt >= policy.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return zero, ErrCancelled
		}
	}

	return zero, lastErr
}

func isRetryable(policy Policy, err error) bool {
	if policy.Retryable == nil {
		return true
	}
	return policy.Retryable(err)
}

func computeDelay(policy Policy, attempt int, lastErr error) time.Duration {
	if policy.RetryAfter != nil {
		if d := policy.RetryAfter(lastErr); d > 0 {
			return d
		}
	}

	d := float64(policy.Base) * math.Pow(2, float64(attempt-1))
	if d > float64(policy.Cap) {
		d = float64(policy.Cap)
	}
	if policy.JitterFrac > 0 {
		jitter := d * policy.JitterFrac
		d += (rand.Float64()*2 - 1) * jitter
	}
	if d < float64(policy.Base) {
		d = float64(policy.Base)
	}
	return time.Duration(d)
}
