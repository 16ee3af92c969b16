package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HeaderRequestID carries the caller's request id across service hops.
const HeaderRequestID = "X-Request-Id"

const requestIDAttr = "request_id"

var propagator = propagation.TraceContext{}

type requestIDKey struct{}

// WithRequestID stores the inbound request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id bound to ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// InjectHTTP writes W3C trace context and the request id into outbound headers.
func InjectHTTP(ctx context.Context, h http.Header) {
	if h == nil {
		return
	}
	propagator.Inject(ctx, propagation.HeaderCarrier(h))
	if id := RequestIDFrom(ctx); id != "" {
		h.Set(HeaderRequestID, id)
	}
}

// ExtractHTTP restores trace context and request id from inbound headers.
func ExtractHTTP(ctx context.Context, h http.Header) context.Context {
	if h == nil {
		return ctx
	}
	ctx = propagator.Extract(ctx, propagation.HeaderCarrier(h))
	if id := h.Get(HeaderRequestID); id != "" {
		ctx = WithRequestID(ctx, id)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(requestIDAttr, id))
	}
	return ctx
}

// Tracer returns named tracer for ez-admin components.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
