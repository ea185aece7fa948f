package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceHTTPClient wraps an outgoing HTTP call. fn returns the response status.
func TraceHTTPClient(ctx context.Context, tracerName, method, url string, fn func(context.Context) (int, error)) (int, error) {
	ctx, span := StartSpan(ctx, tracerName, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		),
	)
	defer span.End()

	status, err := fn(ctx)
	if status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusBadRequest:
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
	default:
		span.SetStatus(codes.Ok, "")
	}
	return status, err
}

// TraceExternalAPI wraps external API calls with tracing
func TraceExternalAPI(ctx context.Context, tracerName, serviceName, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, serviceName+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("external.service", serviceName),
			attribute.String("external.operation", operation),
		),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// PaymentAttributes describes a payment attempt on a span. The card is never recorded.
func PaymentAttributes(userID, ip string, amount float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("risk.user_id", userID),
		attribute.String("risk.ip", ip),
		attribute.Float64("risk.amount", amount),
	}
}
