package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/go-consume"

// Telemetry holds the OpenTelemetry instruments for the read path. When no
// providers are configured, all instruments are noops with zero overhead.
type Telemetry struct {
	Tracer trace.Tracer

	// Read lifecycle metrics
	ReadsActive  metric.Int64UpDownCounter
	ReadDuration metric.Float64Histogram

	// Result metrics
	RecordsReturned metric.Int64Counter
	BytesReturned   metric.Int64Counter

	// Failure metrics
	StepFailures metric.Int64Counter
}

// NewTelemetry creates a Telemetry instance from the given providers.
// Both providers are optional and defaulted to noops if nil.
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	tracer := tp.Tracer(scopeName)
	meter := mp.Meter(scopeName)

	readsActive, err := meter.Int64UpDownCounter(
		"consume.reads.active",
		metric.WithDescription("Read tasks currently in flight"),
	)
	if err != nil {
		return nil, err
	}

	readDuration, err := meter.Float64Histogram(
		"consume.read.duration",
		metric.WithDescription("Wall-clock time from submit to completion"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	recordsReturned, err := meter.Int64Counter(
		"consume.read.records",
		metric.WithDescription("Records returned to clients"),
	)
	if err != nil {
		return nil, err
	}

	bytesReturned, err := meter.Int64Counter(
		"consume.read.bytes",
		metric.WithDescription("Approximate bytes returned to clients"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	stepFailures, err := meter.Int64Counter(
		"consume.step.failures",
		metric.WithDescription("Read steps that terminated on an unexpected failure"),
	)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Tracer:          tracer,
		ReadsActive:     readsActive,
		ReadDuration:    readDuration,
		RecordsReturned: recordsReturned,
		BytesReturned:   bytesReturned,
		StepFailures:    stepFailures,
	}, nil
}

// NewNoopTelemetry creates a Telemetry instance with noop providers.
func NewNoopTelemetry() *Telemetry {
	t, _ := NewTelemetry(nil, nil)
	return t
}
