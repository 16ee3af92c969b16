package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"

	"github.com/Goden-Gun/ezadmin/pkg/tracing"
)

func TestWithTraceAddsIDs(t *testing.T) {
	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid}))
	ctx = tracing.WithRequestID(ctx, "req-1")

	e := WithTrace(ctx)
	assert.Equal(t, tid.String(), e.Data["trace_id"])
	assert.Equal(t, "req-1", e.Data["request_id"])
}

func TestWithTraceNilContext(t *testing.T) {
	//nolint:staticcheck
	e := WithTrace(nil)
	assert.Empty(t, e.Data)
}

func TestAlertMarksEntry(t *testing.T) {
	e := Alert(tracing.WithRequestID(context.Background(), "req-2"))
	assert.Equal(t, true, e.Data[FieldAlert])
	assert.Equal(t, "req-2", e.Data["request_id"])
}
