// Package observe provides application-wide observability primitives for
// Stagehand: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all Stagehand metrics.
const meterName = "github.com/MrWong99/stagehand"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RefreshDuration tracks one full stage refresh cycle: transcript read,
	// presence resolution, and roster reconciliation.
	RefreshDuration metric.Float64Histogram

	// ClassifyDuration tracks expression classification latency.
	ClassifyDuration metric.Float64Histogram

	// RestartDuration tracks full stage restart latency (tear-down through
	// set-up).
	RestartDuration metric.Float64Histogram

	// --- Counters ---

	// Refreshes counts refresh cycles. Use with attribute:
	//   attribute.String("trigger", "periodic"|"message"|"command")
	Refreshes metric.Int64Counter

	// SlotChanges counts surface effects. Use with attribute:
	//   attribute.String("op", "attach"|"move"|"detach")
	SlotChanges metric.Int64Counter

	// ClassifierCalls counts classification attempts. Use with attribute:
	//   attribute.String("status", "ok"|"fallback"|"error")
	ClassifierCalls metric.Int64Counter

	// SpriteLookups counts portrait lookups. Use with attribute:
	//   attribute.String("outcome", "hit"|"miss"|"error")
	SpriteLookups metric.Int64Counter

	// Restarts counts coalesced stage restarts.
	Restarts metric.Int64Counter

	// --- Gauges ---

	// ActiveSlots tracks the number of currently assigned slots.
	ActiveSlots metric.Int64UpDownCounter

	// OverlayClients tracks connected overlay websocket subscribers.
	OverlayClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// refresh cycles and classifier round-trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RefreshDuration, err = m.Float64Histogram("stagehand.refresh.duration",
		metric.WithDescription("Latency of one full stage refresh cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("stagehand.classify.duration",
		metric.WithDescription("Latency of expression classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RestartDuration, err = m.Float64Histogram("stagehand.restart.duration",
		metric.WithDescription("Latency of a full stage restart."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Refreshes, err = m.Int64Counter("stagehand.refreshes",
		metric.WithDescription("Total refresh cycles by trigger."),
	); err != nil {
		return nil, err
	}
	if met.SlotChanges, err = m.Int64Counter("stagehand.slot.changes",
		metric.WithDescription("Total surface effects by operation."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierCalls, err = m.Int64Counter("stagehand.classifier.calls",
		metric.WithDescription("Total expression classification attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.SpriteLookups, err = m.Int64Counter("stagehand.sprite.lookups",
		metric.WithDescription("Total portrait lookups by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Restarts, err = m.Int64Counter("stagehand.restarts",
		metric.WithDescription("Total coalesced stage restarts."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSlots, err = m.Int64UpDownCounter("stagehand.active_slots",
		metric.WithDescription("Number of currently assigned slots."),
	); err != nil {
		return nil, err
	}
	if met.OverlayClients, err = m.Int64UpDownCounter("stagehand.overlay_clients",
		metric.WithDescription("Number of connected overlay subscribers."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("stagehand.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRefresh records one refresh cycle with its duration in seconds.
func (m *Metrics) RecordRefresh(ctx context.Context, seconds float64, trigger string) {
	attrs := metric.WithAttributes(attribute.String("trigger", trigger))
	m.Refreshes.Add(ctx, 1, attrs)
	m.RefreshDuration.Record(ctx, seconds, attrs)
}

// RecordSlotChange records one surface effect.
func (m *Metrics) RecordSlotChange(ctx context.Context, op string) {
	m.SlotChanges.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}

// RecordClassifierCall records one classification attempt with its duration
// in seconds.
func (m *Metrics) RecordClassifierCall(ctx context.Context, seconds float64, status string) {
	m.ClassifierCalls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.ClassifyDuration.Record(ctx, seconds)
}

// RecordSpriteLookup records one portrait lookup.
func (m *Metrics) RecordSpriteLookup(ctx context.Context, outcome string) {
	m.SpriteLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
