package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks a control-plane span as failed. The mediaflux.* attributes
// passed in stay on the span so failed admissions and stage roll-ups stay
// searchable by execution.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
