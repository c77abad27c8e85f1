package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-123")

	got, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-123", got)
}

func TestTraceID_AbsentOnBareContext(t *testing.T) {
	_, ok := TraceID(context.Background())
	assert.False(t, ok)
}

func TestTraceID_EmptyStringTreatedAsAbsent(t *testing.T) {
	ctx := WithTraceID(context.Background(), "")

	_, ok := TraceID(ctx)
	assert.False(t, ok, "an empty trace_id must not be reported as present")
}
