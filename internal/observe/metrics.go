// Package observe provides application-wide observability primitives for
// Hearken: OpenTelemetry metrics and the provider setup that bridges them to
// a Prometheus /metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Hearken metrics.
const meterName = "github.com/MrWong99/hearken"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ScoreDuration tracks per-frame detector scoring latency.
	ScoreDuration metric.Float64Histogram

	// ActionDuration tracks how long a triggered action takes end to end.
	ActionDuration metric.Float64Histogram

	// --- Counters ---

	// FramesCaptured counts audio frames read from the capture device.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts frames discarded because the queue was full.
	// Use with attribute: attribute.String("policy", ...)
	FramesDropped metric.Int64Counter

	// Detections counts threshold crossings. Use with attribute:
	//   attribute.String("label", ...)
	Detections metric.Int64Counter

	// RingWrites counts debug ring WAV files written.
	RingWrites metric.Int64Counter

	// --- Error counters ---

	// ScoreErrors counts detector scoring failures.
	ScoreErrors metric.Int64Counter

	// ActionErrors counts failed action invocations.
	ActionErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth reports the number of frames sitting in the capture queue.
	// Wire it to a live probe with [Metrics.RegisterQueueLength].
	QueueDepth metric.Int64ObservableGauge

	// meter is kept for registering observable callbacks after construction.
	meter metric.Meter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Scoring
// runs per 80 ms frame and playback runs for whole clips, so the range spans
// both.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Histograms.
	if met.ScoreDuration, err = m.Float64Histogram("hearken.score.duration",
		metric.WithDescription("Latency of per-frame detector scoring."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActionDuration, err = m.Float64Histogram("hearken.action.duration",
		metric.WithDescription("Latency of the triggered action, start to finish."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("hearken.frames.captured",
		metric.WithDescription("Total audio frames read from the capture device."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("hearken.frames.dropped",
		metric.WithDescription("Total frames discarded due to queue pressure, by policy."),
	); err != nil {
		return nil, err
	}
	if met.Detections, err = m.Int64Counter("hearken.detections",
		metric.WithDescription("Total threshold crossings by label."),
	); err != nil {
		return nil, err
	}
	if met.RingWrites, err = m.Int64Counter("hearken.ring.writes",
		metric.WithDescription("Total debug ring WAV files written."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ScoreErrors, err = m.Int64Counter("hearken.score.errors",
		metric.WithDescription("Total detector scoring failures."),
	); err != nil {
		return nil, err
	}
	if met.ActionErrors, err = m.Int64Counter("hearken.action.errors",
		metric.WithDescription("Total failed action invocations."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.QueueDepth, err = m.Int64ObservableGauge("hearken.queue.depth",
		metric.WithDescription("Number of frames currently buffered in the capture queue."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RegisterQueueLength wires the queue depth gauge to a live length probe. The
// returned registration should be unregistered when the queue goes away.
func (m *Metrics) RegisterQueueLength(length func() int64) (metric.Registration, error) {
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.QueueDepth, length())
		return nil
	}, m.QueueDepth)
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordDetection records a threshold crossing for the given label.
func (m *Metrics) RecordDetection(ctx context.Context, label string) {
	m.Detections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("label", label)),
	)
}

// RecordDrop records a discarded frame under the given drop policy.
func (m *Metrics) RecordDrop(ctx context.Context, policy string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("policy", policy)),
	)
}
