// Package telemetry wires the process-wide OpenTelemetry TracerProvider
// and the three counters the event loop feeds (routes installed, routes
// removed, subscription retry attempts).
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/genzj/docker-warp-connect"

// Telemetry bundles the tracer and the counters produced for the core's
// metric hooks (internal/warp.LoopConfig.OnRoutesInstalled and friends).
type Telemetry struct {
	provider *sdktrace.TracerProvider
	Tracer   trace.Tracer

	RoutesInstalled metric.Int64Counter
	RoutesRemoved   metric.Int64Counter
	RetryAttempts   metric.Int64Counter
}

// New installs a process-wide TracerProvider and builds the counters.
// The returned Telemetry's Shutdown must be called on exit.
func New() (*Telemetry, error) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	meter := otel.GetMeterProvider().Meter(instrumentationName)

	installed, err := meter.Int64Counter(
		"warp.routes.installed",
		metric.WithDescription("routes installed into target container namespaces"),
	)
	if err != nil {
		return nil, err
	}
	removed, err := meter.Int64Counter(
		"warp.routes.removed",
		metric.WithDescription("routes removed from target container namespaces"),
	)
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter(
		"warp.subscribe.retry_attempts",
		metric.WithDescription("event subscription retry attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		provider:        tp,
		Tracer:          tp.Tracer(instrumentationName),
		RoutesInstalled: installed,
		RoutesRemoved:   removed,
		RetryAttempts:   retries,
	}, nil
}

// Shutdown flushes and releases the TracerProvider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Hooks adapts the counters to the func(int) shape
// internal/warp.LoopConfig expects, recording each call as a counter
// increment on the supplied context. No span events are recorded.
func (t *Telemetry) Hooks(ctx context.Context) (onInstalled func(int), onRemoved func(int), onRetry func(int)) {
	onInstalled = func(n int) {
		t.RoutesInstalled.Add(ctx, int64(n))
	}
	onRemoved = func(n int) {
		t.RoutesRemoved.Add(ctx, int64(n))
	}
	onRetry = func(attempt int) {
		t.RetryAttempts.Add(ctx, 1)
	}
	return
}
