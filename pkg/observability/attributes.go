package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// regcoder semantic convention attributes.
var (
	AttrRegulation = attribute.Key("regcoder.regulation.id")
	AttrSystem     = attribute.Key("regcoder.system.name")
	AttrReportID   = attribute.Key("regcoder.report.id")
	AttrVerdict    = attribute.Key("regcoder.verdict")
	AttrScore      = attribute.Key("regcoder.score")

	AttrAuditAction  = attribute.Key("regcoder.audit.action")
	AttrArtifactKind = attribute.Key("regcoder.artifact.kind")
	AttrBatchSize    = attribute.Key("regcoder.batch.size")
)

// EvaluationAttrs creates attributes for an evaluation run.
func EvaluationAttrs(regulation, system string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRegulation.String(regulation),
		AttrSystem.String(system),
	}
}

// ReportAttrs describes a finished report.
func ReportAttrs(reportID, verdict string, score float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrReportID.String(reportID),
		AttrVerdict.String(verdict),
		AttrScore.Float64(score),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus sets the span status based on error.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
