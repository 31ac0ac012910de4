// Package tracer wires OpenTelemetry tracing for handshakes and reloads.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/momentics/hioload-livereload/control"
)

const (
	tracerName  = "hioload-livereload"
	serviceName = "livereload"

	SpanHandshake = "websocket.handshake"
	SpanBroadcast = "reload.broadcast"
)

// Setup installs the global TracerProvider selected by cfg and returns its
// shutdown function. Disabled tracing and the "noop" exporter share the
// noop provider.
func Setup(ctx context.Context, cfg control.TracerConfig) (func(context.Context) error, error) {
	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// newExporter returns nil when spans should not leave the process.
func newExporter(cfg control.TracerConfig) (sdktrace.SpanExporter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Exporter {
	case "", "noop":
		return nil, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// Op is one traced agent operation. End must be called exactly once.
type Op struct {
	span trace.Span
}

// StartHandshake opens the span covering one WebSocket upgrade.
func StartHandshake(ctx context.Context, remote string) (context.Context, *Op) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, SpanHandshake,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer", remote)))
	return ctx, &Op{span: span}
}

// StartBroadcast opens the span covering one reload notification.
func StartBroadcast(ctx context.Context, file string) (context.Context, *Op) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, SpanBroadcast,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("file", file)))
	return ctx, &Op{span: span}
}

// Session tags the operation with the session it touched.
func (o *Op) Session(id string) {
	o.span.SetAttributes(attribute.String("session", id))
}

// Delivered records whether a reload reached a browser.
func (o *Op) Delivered(ok bool) {
	o.span.SetAttributes(attribute.Bool("delivered", ok))
}

// End closes the span, marking it failed when err is non-nil.
func (o *Op) End(err error) {
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	} else {
		o.span.SetStatus(codes.Ok, "")
	}
	o.span.End()
}
