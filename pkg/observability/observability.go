// Package observability provides OpenTelemetry-based observability for the
// reference-data pipeline: OTLP trace export for the batch runs and a small
// set of pipeline counters (records accepted/rejected, manifests sealed,
// threshold trips, access denials, staleness states).
package observability

import (
	"context"
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

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // e.g., "localhost:4317" for gRPC
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool // Use insecure connection (dev only)
}

// DefaultConfig returns defaults suitable for a cron-driven batch process.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "refdata-pipeline",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		BatchTimeout:   5 * time.Second,
		Enabled:        true,
		Insecure:       false,
	}
}

// Provider manages OpenTelemetry trace and metric providers.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	logger         *slog.Logger
	metrics        *Metrics
}

// Metrics holds the pipeline counters. A nil *Metrics is a valid no-op
// receiver, so components can take metrics optionally.
type Metrics struct {
	recordsAccepted metric.Int64Counter
	recordsRejected metric.Int64Counter
	manifestsSealed metric.Int64Counter
	thresholdTrips  metric.Int64Counter
	accessDenials   metric.Int64Counter
	stalenessStates metric.Int64Counter
}

// New creates a new observability provider.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
			attribute.String("refdata.component", "pipeline"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("refdata.pipeline",
		trace.WithInstrumentationVersion(config.ServiceVersion),
	)

	if err := p.initPipelineMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init pipeline metrics: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
	)

	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(p.config.BatchTimeout),
		),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)

	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initPipelineMetrics() error {
	meter := otel.Meter("refdata.pipeline")
	m := &Metrics{}
	var err error

	if m.recordsAccepted, err = meter.Int64Counter("refdata.records.accepted",
		metric.WithDescription("Mirror-log lines accepted into a manifest")); err != nil {
		return err
	}
	if m.recordsRejected, err = meter.Int64Counter("refdata.records.rejected",
		metric.WithDescription("Mirror-log lines rejected, by category")); err != nil {
		return err
	}
	if m.manifestsSealed, err = meter.Int64Counter("refdata.manifests.sealed",
		metric.WithDescription("Daily manifests sealed to disk")); err != nil {
		return err
	}
	if m.thresholdTrips, err = meter.Int64Counter("refdata.integrity.threshold_trips",
		metric.WithDescription("Runs aborted by the integrity-error threshold")); err != nil {
		return err
	}
	if m.accessDenials, err = meter.Int64Counter("refdata.access.denied",
		metric.WithDescription("Guardrail denials, by purpose")); err != nil {
		return err
	}
	if m.stalenessStates, err = meter.Int64Counter("refdata.staleness.evaluations",
		metric.WithDescription("Staleness evaluations, by resulting state")); err != nil {
		return err
	}

	p.metrics = m
	return nil
}

// Metrics returns the pipeline counters (nil when disabled).
func (p *Provider) Metrics() *Metrics { return p.metrics }

// Tracer returns the pipeline tracer, or a no-op tracer when disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer("refdata.noop")
	}
	return p.tracer
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecordAccepted counts an accepted mirror-log line.
func (m *Metrics) RecordAccepted(ctx context.Context) {
	if m == nil {
		return
	}
	m.recordsAccepted.Add(ctx, 1)
}

// RecordRejected counts a rejected line under its error category.
func (m *Metrics) RecordRejected(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.recordsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("error_category", category)))
}

// ManifestSealed counts a sealed daily manifest.
func (m *Metrics) ManifestSealed(ctx context.Context) {
	if m == nil {
		return
	}
	m.manifestsSealed.Add(ctx, 1)
}

// ThresholdTrip counts a run aborted over the integrity threshold.
func (m *Metrics) ThresholdTrip(ctx context.Context) {
	if m == nil {
		return
	}
	m.thresholdTrips.Add(ctx, 1)
}

// AccessDenied counts a guardrail denial for a purpose.
func (m *Metrics) AccessDenied(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.accessDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

// StalenessState counts a staleness evaluation outcome.
func (m *Metrics) StalenessState(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.stalenessStates.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}
