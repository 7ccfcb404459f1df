package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resumatch/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds the resolved observability settings.
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// Metrics bundles the service's custom instruments. Fields stay nil when
// observability is disabled; the recording helpers tolerate that.
type Metrics struct {
	MatchProcessingTime metric.Float64Histogram
	MatchRequestCount   metric.Int64Counter
	MatchErrorCount     metric.Int64Counter

	MatchesScored metric.Int64Counter
	MatchScores   metric.Float64Histogram
	ResumesParsed metric.Int64Counter

	CertReloadCount metric.Int64Counter
	CertExpiryTime  metric.Float64Gauge

	RateLimitHits metric.Int64Counter
}

// ObservabilityManager owns the OpenTelemetry providers for the process.
type ObservabilityManager struct {
	config         ObservabilityConfig
	fullConfig     *config.Config
	res            *resource.Resource
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
}

// NewObservabilityManager wires tracing and metrics per obsConfig. When
// observability is disabled the manager is inert: middleware passes handlers
// through, tracers are no-ops and no instruments are registered.
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config) (*ObservabilityManager, error) {
	om := &ObservabilityManager{config: obsConfig, fullConfig: fullConfig}
	if !obsConfig.Enabled {
		return om, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(obsConfig.ServiceName),
			semconv.ServiceVersion(obsConfig.ServiceVersion),
			attribute.String("service.instance.id", om.serviceInstanceID()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	om.res = res

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return om, nil
}

func (om *ObservabilityManager) initTracing() error {
	exporter, err := om.spanExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.res),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)
	return nil
}

// spanExporter picks the trace exporter: stdout for development, OTLP when
// configured, and a discard exporter otherwise so span processing still runs.
func (om *ObservabilityManager) spanExporter() (trace.SpanExporter, error) {
	if om.config.ConsoleOutput {
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		return stdouttrace.New(opts...)
	}
	if om.otlpEnabled() {
		return om.newOTLPTraceExporter()
	}
	return discardSpans{}, nil
}

func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.metricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(om.res)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(opts...)

	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	return om.initInstruments()
}

// metricReaders assembles the export pipelines: stdout for development, OTLP
// push and a Prometheus scrape endpoint for production. With nothing
// configured a manual reader keeps instrument registration valid.
func (om *ObservabilityManager) metricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(om.collectionInterval())))
	}

	if om.otlpEnabled() {
		reader, err := om.newOTLPMetricReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	if om.config.Prometheus.Enabled {
		reader, stopServer, err := startPrometheus(om.config.Prometheus)
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
		om.shutdownFuncs = append(om.shutdownFuncs, stopServer)
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

// initInstruments registers the custom instruments. The metric names are part
// of the operational surface, dashboards and alerts key on them.
func (om *ObservabilityManager) initInstruments() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	m := &Metrics{}
	var err error

	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	histogram := func(name, desc, unit string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return h
	}
	gauge := func(name, desc, unit string) metric.Float64Gauge {
		if err != nil {
			return nil
		}
		var g metric.Float64Gauge
		g, err = meter.Float64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return g
	}

	m.MatchProcessingTime = histogram("resumatch_match_processing_duration_seconds",
		"Time spent computing match scores", "s")
	m.MatchRequestCount = counter("resumatch_match_requests_total",
		"Total number of match requests")
	m.MatchErrorCount = counter("resumatch_match_errors_total",
		"Total number of match request errors")

	m.MatchesScored = counter("resumatch_matches_scored_total",
		"Total number of resume matches scored")
	m.MatchScores = histogram("resumatch_match_score",
		"Distribution of overall match scores", "percent")
	m.ResumesParsed = counter("resumatch_resumes_parsed_total",
		"Total number of resume files parsed")

	m.CertReloadCount = counter("resumatch_cert_reloads_total",
		"Total number of certificate reloads")
	m.CertExpiryTime = gauge("resumatch_cert_expiry_seconds",
		"Seconds until certificate expiry", "s")

	m.RateLimitHits = counter("resumatch_rate_limit_hits_total",
		"Total number of rate limit hits")

	if err != nil {
		return fmt.Errorf("failed to register instruments: %w", err)
	}
	om.metrics = m
	return nil
}

// GetMetrics returns the custom instruments. The zero Metrics handed out
// before initialization records nothing.
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// HTTPMiddleware instruments inbound requests, passing handlers through
// untouched when observability is disabled.
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}
	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for name, a no-op one when disabled.
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown flushes and stops every component the manager started.
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	for _, stop := range om.shutdownFuncs {
		if err := stop(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (om *ObservabilityManager) otlpEnabled() bool {
	return om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled
}

func (om *ObservabilityManager) matchMetricsEnabled() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.MatchOperations.Enabled
}

func (om *ObservabilityManager) businessMetricsEnabled() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.BusinessMetrics.Enabled
}

func (om *ObservabilityManager) serviceInstanceID() string {
	if om.fullConfig != nil && om.fullConfig.Observability.ServiceInstance != "" {
		return om.fullConfig.Observability.ServiceInstance
	}
	return "resumatch-1"
}

func (om *ObservabilityManager) collectionInterval() time.Duration {
	if om.fullConfig != nil {
		return om.fullConfig.Observability.Metrics.CollectionInterval
	}
	return 15 * time.Second
}

// MatchOperationResult reports how a tracked match went and which embedding
// model served it.
type MatchOperationResult struct {
	Error     error
	ModelInfo *ModelInfo
}

// ModelInfo identifies the embedding provider and model used for a match.
// It is nil when the match was scored with keyword matching only.
type ModelInfo struct {
	Provider string
	Model    string
}

// TrackMatchOperation runs fn under a span and records duration, request and
// error counts for the operation. Recording honors the custom-metrics config;
// with uninitialized instruments fn still runs, untracked.
func (m *Metrics) TrackMatchOperation(ctx context.Context, operation string, fn func(context.Context) *MatchOperationResult, om *ObservabilityManager) error {
	if m.MatchProcessingTime == nil {
		if result := fn(ctx); result != nil {
			return result.Error
		}
		return nil
	}

	tracer := otel.Tracer("resumatch.match")
	ctx, span := tracer.Start(ctx, "match."+operation)
	defer span.End()

	start := time.Now()
	result := fn(ctx)
	duration := time.Since(start).Seconds()

	var err error
	if result != nil {
		err = result.Error
	}

	if om.matchMetricsEnabled() {
		m.recordMatchOperation(ctx, operation, err, duration, result, om, span)
	}
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}
	return err
}

func (m *Metrics) recordMatchOperation(ctx context.Context, operation string, err error, duration float64, result *MatchOperationResult, om *ObservabilityManager, span oteltrace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}

	if result != nil && result.ModelInfo != nil {
		// Traces always carry the model identity; metric labels carry it
		// only when the config accepts the extra cardinality.
		span.SetAttributes(
			attribute.String("embedding.provider", result.ModelInfo.Provider),
			attribute.String("embedding.model", result.ModelInfo.Model),
		)
		if om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.MatchOperations.TrackModelInfo {
			attrs = append(attrs,
				attribute.String("provider", result.ModelInfo.Provider),
				attribute.String("model", result.ModelInfo.Model),
			)
		}
	}

	if om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.MatchOperations.TrackDuration {
		m.MatchProcessingTime.Record(ctx, duration, metric.WithAttributes(attrs...))
	}
	m.MatchRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.MatchErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	span.SetAttributes(attrs...)
}

// RecordBusinessMetric counts a domain event. metricType selects the
// instrument; unknown types are dropped silently.
func (m *Metrics) RecordBusinessMetric(ctx context.Context, metricType string, success bool, om *ObservabilityManager, attributes ...attribute.KeyValue) {
	if !om.businessMetricsEnabled() {
		return
	}

	attrs := append([]attribute.KeyValue{attribute.Bool("success", success)}, attributes...)
	opt := metric.WithAttributes(attrs...)

	switch metricType {
	case "match_scored":
		if m.MatchesScored != nil {
			m.MatchesScored.Add(ctx, 1, opt)
		}
	case "resume_parsed":
		if m.ResumesParsed != nil {
			m.ResumesParsed.Add(ctx, 1, opt)
		}
	case "rate_limit_hit":
		if om.fullConfig != nil && !om.fullConfig.Observability.CustomMetrics.Infrastructure.TrackRateLimits {
			return
		}
		if m.RateLimitHits != nil {
			m.RateLimitHits.Add(ctx, 1, opt)
		}
	}
}

// RecordMatchScore feeds the overall score distribution.
func (m *Metrics) RecordMatchScore(ctx context.Context, score float64, om *ObservabilityManager, attributes ...attribute.KeyValue) {
	if !om.businessMetricsEnabled() || m.MatchScores == nil {
		return
	}
	m.MatchScores.Record(ctx, score, metric.WithAttributes(attributes...))
}

// discardSpans satisfies the exporter contract when no trace backend is
// configured.
type discardSpans struct{}

func (discardSpans) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }
func (discardSpans) Shutdown(context.Context) error                         { return nil }

// newOTLPTraceExporter builds the OTLP HTTP span exporter. Only called once
// otlpEnabled has been checked.
func (om *ObservabilityManager) newOTLPTraceExporter() (trace.SpanExporter, error) {
	otlpCfg := om.fullConfig.Observability.OTLP

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(otlpCfg.Endpoint)}
	if otlpCfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpCfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpCfg.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// newOTLPMetricReader builds a periodic reader pushing to the OTLP endpoint.
func (om *ObservabilityManager) newOTLPMetricReader() (sdkmetric.Reader, error) {
	otlpCfg := om.fullConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(otlpCfg.Endpoint)}
	if otlpCfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpCfg.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpCfg.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(om.collectionInterval())), nil
}
