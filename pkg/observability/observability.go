package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Mindburn-Labs/regcoder"

// metricInterval is how often the periodic reader pushes to the collector.
const metricInterval = 15 * time.Second

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string        // host:port of the OTLP gRPC collector
	SampleRate     float64       // 0.0 to 1.0
	BatchTimeout   time.Duration // span batch flush interval
	Enabled        bool
	Insecure       bool // plaintext gRPC, local collectors only
}

// DefaultConfig returns the settings the CLI starts from when telemetry is
// switched on.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "regcoder",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        true,
		Insecure:       false,
	}
}

// instruments groups every metric the provider records. A nil instrument is
// skipped, so a disabled provider records nothing.
type instruments struct {
	operations metric.Int64Counter
	errors     metric.Int64Counter
	duration   metric.Float64Histogram
	active     metric.Int64UpDownCounter

	rulesEvaluated metric.Int64Counter
	auditAppends   metric.Int64Counter
}

// Provider owns the trace and metric pipelines for one process.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger
	inst           instruments
}

// New builds a provider. With Enabled false it returns a no-op provider and
// never dials the collector.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}
	if !config.Enabled {
		p.logger.DebugContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	if p.tracerProvider, err = newTracerProvider(ctx, config, res); err != nil {
		return nil, err
	}
	if p.meterProvider, err = newMeterProvider(ctx, config, res); err != nil {
		_ = p.tracerProvider.Shutdown(ctx)
		return nil, err
	}
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracer = p.tracerProvider.Tracer(instrumentationName,
		trace.WithInstrumentationVersion(config.ServiceVersion))
	if err := p.bind(p.meterProvider.Meter(instrumentationName,
		metric.WithInstrumentationVersion(config.ServiceVersion))); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

// NewWithMeterProvider returns a provider that records on mp and traces on
// the global tracer provider, without starting any exporter. Tests and
// embedding hosts use it to collect metrics in process.
func NewWithMeterProvider(mp metric.MeterProvider) (*Provider, error) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	p := &Provider{
		config: cfg,
		logger: slog.Default().With("component", "observability"),
		tracer: otel.Tracer(instrumentationName),
	}
	if err := p.bind(mp.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	return p, nil
}

func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	), nil
}

func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricInterval))),
	), nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// bind creates every instrument on meter.
func (p *Provider) bind(meter metric.Meter) error {
	p.meter = meter
	var (
		inst instruments
		errs []error
		err  error
	)

	inst.operations, err = meter.Int64Counter("regcoder.operations.total",
		metric.WithDescription("Pipeline operations started"),
		metric.WithUnit("{operation}"))
	errs = append(errs, err)

	inst.errors, err = meter.Int64Counter("regcoder.errors.total",
		metric.WithDescription("Pipeline operations that returned an error"),
		metric.WithUnit("{operation}"))
	errs = append(errs, err)

	inst.duration, err = meter.Float64Histogram("regcoder.operation.duration",
		metric.WithDescription("Pipeline operation duration"),
		metric.WithUnit("s"))
	errs = append(errs, err)

	inst.active, err = meter.Int64UpDownCounter("regcoder.operations.active",
		metric.WithDescription("Pipeline operations in flight"),
		metric.WithUnit("{operation}"))
	errs = append(errs, err)

	inst.rulesEvaluated, err = meter.Int64Counter("regcoder.rules.evaluated",
		metric.WithDescription("Rule evaluations by verdict"),
		metric.WithUnit("{rule}"))
	errs = append(errs, err)

	inst.auditAppends, err = meter.Int64Counter("regcoder.audit.appends",
		metric.WithDescription("Audit chain entries appended by action"),
		metric.WithUnit("{entry}"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("observability: instruments: %w", err)
	}
	p.inst = inst
	return nil
}

// Shutdown flushes and stops both pipelines. It is safe on a disabled
// provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tracer returns the provider's tracer, or the global one when disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return p.tracer
}

// Meter returns the provider's meter, or the global one when disabled.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter(instrumentationName)
	}
	return p.meter
}

func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, opts...)
}

// RecordRequest counts one started operation.
func (p *Provider) RecordRequest(ctx context.Context, attrs ...attribute.KeyValue) {
	if p.inst.operations != nil {
		p.inst.operations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordError counts one failed operation, tagged with the error's type.
func (p *Provider) RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	if p.inst.errors == nil {
		return
	}
	all := append(append([]attribute.KeyValue(nil), attrs...), attribute.String("error.type", fmt.Sprintf("%T", err)))
	p.inst.errors.Add(ctx, 1, metric.WithAttributes(all...))
}

func (p *Provider) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	if p.inst.duration != nil {
		p.inst.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	}
}

// TrackOperation opens a span and the RED bookkeeping for one operation.
// The returned func closes both and must be called exactly once.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	set := metric.WithAttributes(attrs...)
	if p.inst.active != nil {
		p.inst.active.Add(ctx, 1, set)
	}
	p.RecordRequest(ctx, attrs...)

	return ctx, func(err error) {
		if p.inst.active != nil {
			p.inst.active.Add(ctx, -1, set)
		}
		p.RecordDuration(ctx, time.Since(start), attrs...)
		if err != nil {
			p.RecordError(ctx, err, attrs...)
		}
		SetSpanStatus(ctx, err)
		span.End()
	}
}

// RecordRuleVerdicts adds one count per evaluated rule, keyed by verdict.
func (p *Provider) RecordRuleVerdicts(ctx context.Context, counts map[string]int64, attrs ...attribute.KeyValue) {
	if p.inst.rulesEvaluated == nil {
		return
	}
	for verdict, n := range counts {
		if n == 0 {
			continue
		}
		all := append([]attribute.KeyValue{AttrVerdict.String(verdict)}, attrs...)
		p.inst.rulesEvaluated.Add(ctx, n, metric.WithAttributes(all...))
	}
}

// RecordAuditAppend counts one appended audit entry.
func (p *Provider) RecordAuditAppend(ctx context.Context, action string) {
	if p.inst.auditAppends != nil {
		p.inst.auditAppends.Add(ctx, 1, metric.WithAttributes(AttrAuditAction.String(action)))
	}
}
