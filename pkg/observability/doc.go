// Package observability provides OpenTelemetry tracing and metrics for
// regcoder pipelines.
//
// Initialize the provider at startup; a disabled provider is a no-op:
//
//	p, err := observability.New(ctx, &observability.Config{Enabled: false})
//	defer p.Shutdown(ctx)
//
// Wrap pipeline operations:
//
//	ctx, done := p.TrackOperation(ctx, "pipeline.evaluate", observability.EvaluationAttrs(reg, system)...)
//	defer func() { done(err) }()
//
// Record domain metrics:
//
//	p.RecordRuleVerdicts(ctx, map[string]int64{"pass": 40, "fail": 11})
//	p.RecordAuditAppend(ctx, "evaluate")
package observability
