// Package observability provides OpenTelemetry tracing for the column
// storage layer. Spans are emitted around disk recall and eviction spill,
// the two paths whose latency depends on the outside world.
package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/meridiandb/meridian"

var (
	initOnce sync.Once
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer = noop.NewTracerProvider().Tracer(tracerName)
)

// Config contains tracing configuration.
type Config struct {
	// ServiceName labels emitted spans
	ServiceName string
	// Enabled turns span emission on; when false all spans are no-ops
	Enabled bool
	// PrettyPrint formats exporter output for humans
	PrettyPrint bool
}

// Initialize sets up the tracing provider. Safe to call more than once;
// only the first call takes effect.
func Initialize(cfg Config) error {
	var err error
	initOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		var opts []stdouttrace.Option
		if cfg.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		var exporter *stdouttrace.Exporter
		exporter, err = stdouttrace.New(opts...)
		if err != nil {
			return
		}
		provider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(provider)
		tracer = provider.Tracer(tracerName)
	})
	return err
}

// StartSpan begins a span on the storage tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// Shutdown flushes and stops the provider.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
