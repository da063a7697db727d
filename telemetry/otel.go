package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type (
	// OtelTracer adapts an OpenTelemetry trace.Tracer to the engine's Tracer
	// interface. Use this in production to get real spans for planner/tool
	// execution; tests and examples can keep using NoopTracer.
	OtelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}

	// OtelMetrics adapts OpenTelemetry metric instruments to the engine's
	// Metrics interface. Instruments are created lazily and cached per name.
	OtelMetrics struct {
		meter    metric.Meter
		counters *instrumentCache[metric.Float64Counter]
		gauges   *instrumentCache[metric.Float64Gauge]
		timers   *instrumentCache[metric.Float64Histogram]
	}
)

// NewOtelTracer wraps an OpenTelemetry tracer obtained from a TracerProvider.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

func (t *OtelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &otelSpan{span: span}
}

func (s *otelSpan) End(opts ...trace.SpanEndOption)             { s.span.End(opts...) }
func (s *otelSpan) SetStatus(code codes.Code, description string) { s.span.SetStatus(code, description) }
func (s *otelSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}

func (s *otelSpan) AddEvent(name string, attrs ...any) {
	// attrs are accepted as a loosely typed variadic so callers don't need
	// to depend on attribute.KeyValue directly; only string pairs are used.
	var pairs []string
	for _, a := range attrs {
		if str, ok := a.(string); ok {
			pairs = append(pairs, str)
		}
	}
	s.span.AddEvent(name, trace.WithAttributes(attributesFromTags(pairs)...))
}

// NewOtelMetrics wraps an OpenTelemetry meter obtained from a MeterProvider.
func NewOtelMetrics(meter metric.Meter) *OtelMetrics {
	return &OtelMetrics{
		meter:    meter,
		counters: newInstrumentCache[metric.Float64Counter](),
		gauges:   newInstrumentCache[metric.Float64Gauge](),
		timers:   newInstrumentCache[metric.Float64Histogram](),
	}
}

func (m *OtelMetrics) IncCounter(name string, value float64, tags ...string) {
	c, err := m.counters.getOrCreate(name, func() (metric.Float64Counter, error) {
		return m.meter.Float64Counter(name)
	})
	if err != nil {
		return
	}
	c.Add(context.Background(), value, metric.WithAttributes(attributesFromTags(tags)...))
}

func (m *OtelMetrics) RecordGauge(name string, value float64, tags ...string) {
	g, err := m.gauges.getOrCreate(name, func() (metric.Float64Gauge, error) {
		return m.meter.Float64Gauge(name)
	})
	if err != nil {
		return
	}
	g.Record(context.Background(), value, metric.WithAttributes(attributesFromTags(tags)...))
}

func (m *OtelMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	h, err := m.timers.getOrCreate(name, func() (metric.Float64Histogram, error) {
		return m.meter.Float64Histogram(name, metric.WithUnit("ms"))
	})
	if err != nil {
		return
	}
	h.Record(context.Background(), float64(duration.Milliseconds()), metric.WithAttributes(attributesFromTags(tags)...))
}
