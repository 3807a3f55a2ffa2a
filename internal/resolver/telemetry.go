package resolver

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "preval.resolver"

// Metric names.
const (
	MetricPackagesSelected = "preval_packages_selected_total"
	MetricManifestLookups  = "preval_manifest_lookups_total"
)

// telemetry holds the resolver's tracer and instruments.
type telemetry struct {
	tracer   trace.Tracer
	selected metric.Int64Counter
	lookups  metric.Int64Counter
}

// newTelemetry creates instruments from the given providers. Nil providers
// fall back to the global ones, which are no-ops until installed.
func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	selected, err := meter.Int64Counter(MetricPackagesSelected,
		metric.WithDescription("Packages selected for build, by policy"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricPackagesSelected, err)
	}

	lookups, err := meter.Int64Counter(MetricManifestLookups,
		metric.WithDescription("Package manifest lookups, by cache outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricManifestLookups, err)
	}

	return &telemetry{
		tracer:   tp.Tracer(instrumentationName),
		selected: selected,
		lookups:  lookups,
	}, nil
}

func (t *telemetry) startResolveSpan(ctx context.Context, files, candidates int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "PackageResolver.Resolve",
		trace.WithAttributes(
			attribute.Int("resolve.files", files),
			attribute.Int("resolve.candidates", candidates),
		),
	)
}

func setResolveSpanResult(span trace.Span, selected, remaining int, err error) {
	span.SetAttributes(
		attribute.Int("resolve.selected", selected),
		attribute.Int("resolve.remaining", remaining),
		attribute.Bool("resolve.success", err == nil),
	)
	if err != nil {
		span.RecordError(err)
	}
}

func (t *telemetry) recordSelected(ctx context.Context, policy Policy) {
	t.selected.Add(ctx, 1, metric.WithAttributes(attribute.String("policy", policy.String())))
}

func (t *telemetry) recordManifestLookup(ctx context.Context, hit bool) {
	t.lookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cache_hit", hit)))
}

// Option configures a Resolver.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider records resolve spans on tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider records counters on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}
