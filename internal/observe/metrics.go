// Package observe provides the service's observability primitives:
// OpenTelemetry metrics, tracing spans around pipeline stages and the HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/maauso/audiotrim"

// Pipeline stage names used with [Metrics.RecordStage].
const (
	StageDecode = "decode"
	StageDetect = "detect"
	StageFilter = "filter"
	StageEncode = "encode"
	StageStore  = "store"
)

// Trim outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks pipeline stage latency. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// Trims counts finished trim runs. Use with attributes:
	//   attribute.String("strategy", ...), attribute.String("status", ...)
	Trims metric.Int64Counter

	// ReductionPercent records how much of each input was removed.
	ReductionPercent metric.Float64Histogram

	// AudioProcessed accumulates seconds of decoded input audio.
	AudioProcessed metric.Float64Counter

	// ActiveTrims tracks trims currently holding a processing slot.
	ActiveTrims metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries in seconds. Decoding and
// encoding long recordings can take tens of seconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

var percentBuckets = []float64{
	0, 5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("audiotrim.stage.duration",
		metric.WithDescription("Latency of trim pipeline stages."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Trims, err = m.Int64Counter("audiotrim.trims",
		metric.WithDescription("Total trim runs by strategy and status."),
	); err != nil {
		return nil, err
	}
	if met.ReductionPercent, err = m.Float64Histogram("audiotrim.reduction",
		metric.WithDescription("Share of the input duration removed by a trim."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(percentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AudioProcessed, err = m.Float64Counter("audiotrim.audio.processed",
		metric.WithDescription("Seconds of input audio decoded."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ActiveTrims, err = m.Int64UpDownCounter("audiotrim.active_trims",
		metric.WithDescription("Number of trims currently running."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("audiotrim.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Call it after [InitProvider] so
// the instruments bind to the exporting provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStage records the latency of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordTrim records a finished trim run.
func (m *Metrics) RecordTrim(ctx context.Context, strategy, status string) {
	m.Trims.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("status", status),
		),
	)
}
