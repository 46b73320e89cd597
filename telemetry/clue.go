package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// instrumentationName identifies this module's meter/tracer to OTEL,
// distinguishing its spans and metrics from any other instrumented library
// sharing the same process.
const instrumentationName = "github.com/agentcore/agentcore/controller"

type (
	// ClueLogger delegates Logger to goa.design/clue/log, reading
	// formatting and debug settings from the context (set via log.Context
	// and log.WithFormat/log.WithDebug upstream of the controller).
	ClueLogger struct{}

	// ClueMetrics delegates Metrics to an OTEL meter. Configure the global
	// MeterProvider (typically via clue.ConfigureOpenTelemetry) before
	// constructing one.
	ClueMetrics struct {
		meter metric.Meter
	}

	// ClueTracer delegates Tracer to an OTEL tracer. Configure the global
	// TracerProvider (via clue.ConfigureOpenTelemetry, or
	// OTEL_EXPORTER_OTLP_ENDPOINT and friends) before constructing one.
	ClueTracer struct {
		tracer trace.Tracer
	}

	clueSpan struct {
		span trace.Span
	}
)

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger { return ClueLogger{} }

// NewClueMetrics constructs a Metrics recorder backed by the global OTEL
// MeterProvider.
func NewClueMetrics() Metrics { return &ClueMetrics{meter: otel.Meter(instrumentationName)} }

// NewClueTracer constructs a Tracer backed by the global OTEL
// TracerProvider.
func NewClueTracer() Tracer { return &ClueTracer{tracer: otel.Tracer(instrumentationName)} }

// Debug emits msg at debug level with keyvals folded in as Clue fields.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, withMsg(msg, keyvals)...)
}

// Info emits msg at info level with keyvals folded in as Clue fields.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, withMsg(msg, keyvals)...)
}

// Warn emits msg at warning level with keyvals folded in as Clue fields.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fields := withMsg(msg, keyvals)
	fields = append(fields, log.KV{K: "severity", V: "warning"})
	log.Warn(ctx, fields...)
}

// Error emits msg at error level with keyvals folded in as Clue fields. No
// Go error value accompanies it; callers fold any error into keyvals
// themselves (the controller passes it under an "err" key).
func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, withMsg(msg, keyvals)...)
}

func withMsg(msg string, keyvals []any) []log.Fielder {
	fields := []log.Fielder{log.KV{K: "msg", V: msg}}
	return append(fields, kvToFielders(keyvals)...)
}

// IncCounter increments the named counter by value.
func (m *ClueMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordTimer records a duration against the named histogram.
func (m *ClueMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordGauge records value as a point-in-time reading. OTEL has no
// synchronous gauge instrument, so this rides a histogram suffixed
// "_gauge" — acceptable for the controller's own use (accumulated cost),
// where a distribution of recent values is exactly what an operator wants
// to graph anyway.
func (m *ClueMetrics) RecordGauge(name string, value float64, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	histogram.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// Start opens a child span named name under ctx's span, if any.
func (t *ClueTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, opts...)
	return newCtx, &clueSpan{span: span}
}

// Span returns the span already attached to ctx, if any.
func (t *ClueTracer) Span(ctx context.Context) Span {
	return &clueSpan{span: trace.SpanFromContext(ctx)}
}

func (s *clueSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s *clueSpan) AddEvent(name string, attrs ...any) {
	s.span.AddEvent(name, trace.WithAttributes(kvToAttrs(attrs)...))
}

func (s *clueSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *clueSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}

// kvToFielders walks a (k1, v1, k2, v2, ...) variadic slice into Clue's
// log.Fielder shape. Non-string keys are skipped; a dangling trailing key
// pairs with a nil value.
func kvToFielders(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	forEachKV(keyvals, func(k string, v any) {
		fielders = append(fielders, log.KV{K: k, V: v})
	})
	return fielders
}

// kvToAttrs walks the same variadic shape into typed OTEL attributes for a
// span event, choosing the attribute constructor from v's dynamic type and
// falling back to an empty string for anything else.
func kvToAttrs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	forEachKV(keyvals, func(k string, v any) {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, ""))
		}
	})
	return attrs
}

// forEachKV is the shared (k1, v1, k2, v2, ...) walk behind kvToFielders and
// kvToAttrs. Non-string keys are skipped rather than coerced.
func forEachKV(keyvals []any, fn func(key string, val any)) {
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fn(k, v)
	}
}

// tagsToAttrs converts metric dimension tags (k1, v1, k2, v2, ...), both
// already strings, into OTEL attributes. A dangling trailing key pairs
// with an empty string.
func tagsToAttrs(tags []string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(tags[i], v))
	}
	return attrs
}
