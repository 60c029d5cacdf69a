// Package telemetry wires the engine's lifecycle logging and counters to
// OpenTelemetry, exporting over OTLP/HTTP when an endpoint is configured
// and falling back to no-op providers otherwise.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	otlploghttp "go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otlpmetrichttp "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otellog "go.opentelemetry.io/otel/log"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config controls whether telemetry exports anywhere, or stays local-only.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address, e.g. "localhost:4318".
	// Empty disables export; Counters/Gauges still work as no-ops.
	Endpoint    string
	ServiceName string
}

// Telemetry bundles the engine's counters and gauges, plus a Logger for
// lifecycle events distinct from the hot-path plain-text logging used
// elsewhere in the engine.
type Telemetry struct {
	shutdown []func(context.Context) error

	Logger otellog.Logger

	EventsIngested  metric.Int64Counter
	AgentsActive    metric.Int64UpDownCounter
	ReconcilerRuns  metric.Int64Counter
	ApplyLatencyMs  metric.Float64Histogram
}

// New builds providers per cfg. When cfg.Endpoint is empty, it returns
// no-op-backed instruments (the otel API default) rather than standing up
// exporters that would never be read.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rehoboam"
	}

	if cfg.Endpoint == "" {
		return newNoop(cfg)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	logExporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpoint(cfg.Endpoint), otlploghttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)

	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(mp)

	t := &Telemetry{
		Logger: lp.Logger("rehoboam/engine"),
		shutdown: []func(context.Context) error{
			lp.Shutdown,
			mp.Shutdown,
		},
	}
	if err := t.buildInstruments(mp.Meter("rehoboam/engine")); err != nil {
		return nil, err
	}
	return t, nil
}

func newNoop(cfg Config) (*Telemetry, error) {
	var noopProvider otellog.LoggerProvider = lognoop.NewLoggerProvider()
	t := &Telemetry{Logger: noopProvider.Logger("rehoboam/engine")}
	if err := t.buildInstruments(otel.GetMeterProvider().Meter("rehoboam/engine")); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Telemetry) buildInstruments(meter metric.Meter) error {
	var err error
	if t.EventsIngested, err = meter.Int64Counter("rehoboam.events_ingested",
		metric.WithDescription("hook events accepted by ingress")); err != nil {
		return err
	}
	if t.AgentsActive, err = meter.Int64UpDownCounter("rehoboam.agents_active",
		metric.WithDescription("agents currently tracked in fleet state")); err != nil {
		return err
	}
	if t.ReconcilerRuns, err = meter.Int64Counter("rehoboam.reconciler_runs",
		metric.WithDescription("reconciler sweeps executed")); err != nil {
		return err
	}
	if t.ApplyLatencyMs, err = meter.Float64Histogram("rehoboam.apply_latency_ms",
		metric.WithDescription("wall time spent in FleetState.Apply per event"),
		metric.WithUnit("ms")); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and closes any exporters. Safe to call on a no-op
// Telemetry (shutdown is then empty).
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
