// Package telemetry exports shutdown observability through OpenTelemetry.
//
// The coordinator's outcome distinction matters operationally: a
// success-after-force outcome signals requests routinely outliving the
// graceful window, which is a capacity or latency problem worth alerting
// on. The Recorder turns each final report into a labelled counter
// increment and per-phase duration samples.
//
// With a nil provider the Recorder is wired to a no-op meter, so the
// library never forces an exporter on its host.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/phajek/drainkit/shutdown"
)

const meterName = "github.com/phajek/drainkit"

// Recorder records shutdown reports as OpenTelemetry metrics. Wire its
// OnOutcome method into shutdown.Config.
type Recorder struct {
	outcomes metric.Int64Counter
	graceful metric.Float64Histogram
	forceful metric.Float64Histogram
}

// NewRecorder creates a Recorder on the given meter provider. A nil
// provider yields a no-op recorder.
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(meterName)

	outcomes, err := meter.Int64Counter("drainkit.shutdown.outcome",
		metric.WithDescription("Shutdown sequences by final outcome"))
	if err != nil {
		return nil, err
	}
	graceful, err := meter.Float64Histogram("drainkit.shutdown.graceful_wait",
		metric.WithDescription("Time spent waiting for orderly drain"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	forceful, err := meter.Float64Histogram("drainkit.shutdown.forceful_wait",
		metric.WithDescription("Time spent waiting after forceful interruption"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		outcomes: outcomes,
		graceful: graceful,
		forceful: forceful,
	}, nil
}

// OnOutcome records the final report. Matches the signature of
// shutdown.Config.OnOutcome.
func (r *Recorder) OnOutcome(report shutdown.Report) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("outcome", report.Outcome.String()),
	)

	r.outcomes.Add(ctx, 1, attrs)
	r.graceful.Record(ctx, report.GracefulWait.Seconds(), attrs)
	if report.ForcefulWait > 0 {
		r.forceful.Record(ctx, report.ForcefulWait.Seconds(), attrs)
	}
}
