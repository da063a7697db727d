// Package telemetry defines the ambient logging, metrics, and tracing
// interfaces used throughout the graph execution engine. Implementations are
// intentionally small so callers can substitute noop stand-ins in tests and
// real backends (OpenTelemetry, structured loggers) in production without
// the engine depending on a specific provider.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger captures structured logging used throughout the engine.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics exposes counter/timer/gauge helpers for engine instrumentation.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer abstracts span creation so engine code stays agnostic of the
	// underlying OpenTelemetry provider while still accepting its option
	// types for type safety.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	}

	// Span represents an in-flight tracing span.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, attrs ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}

	// ToolTelemetry captures observability metadata collected during a tool
	// execution. Common fields provide type safety for standard metrics;
	// Extra holds tool-specific data.
	ToolTelemetry struct {
		DurationMs int64
		TokensUsed int
		Model      string
		Extra      map[string]any
	}
)
