// Package observe provides application-wide observability primitives for
// Taxiv: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A nil *Metrics
// is a valid no-op recorder, so components can be constructed without
// telemetry in tests.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Taxiv metrics.
const meterName = "github.com/gunba/taxiv"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// SearchDuration tracks end-to-end unified search latency.
	SearchDuration metric.Float64Histogram

	// FingerprintDuration tracks on-demand APPR fingerprint latency.
	FingerprintDuration metric.Float64Histogram

	// SearchRequests counts unified search calls. Attributes:
	//   attribute.String("corpus", ...), attribute.String("outcome", ...)
	SearchRequests metric.Int64Counter

	// ResponseCacheHits and ResponseCacheMisses count response cache
	// lookups by corpus.
	ResponseCacheHits   metric.Int64Counter
	ResponseCacheMisses metric.Int64Counter

	// FingerprintComputes counts APPR runs. Attributes:
	//   attribute.String("mode", "single"|"multi")
	FingerprintComputes metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// interactive search latencies.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SearchDuration, err = m.Float64Histogram("taxiv.search.duration",
		metric.WithDescription("End-to-end unified search latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FingerprintDuration, err = m.Float64Histogram("taxiv.fingerprint.duration",
		metric.WithDescription("Latency of on-demand APPR fingerprint computation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchRequests, err = m.Int64Counter("taxiv.search.requests",
		metric.WithDescription("Unified search calls by corpus and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ResponseCacheHits, err = m.Int64Counter("taxiv.search.cache_hits",
		metric.WithDescription("Response cache hits."),
	); err != nil {
		return nil, err
	}
	if met.ResponseCacheMisses, err = m.Int64Counter("taxiv.search.cache_misses",
		metric.WithDescription("Response cache misses."),
	); err != nil {
		return nil, err
	}
	if met.FingerprintComputes, err = m.Int64Counter("taxiv.fingerprint.computes",
		metric.WithDescription("APPR fingerprint computations by mode."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordSearch records one search call. No-op on a nil receiver.
func (m *Metrics) RecordSearch(ctx context.Context, seconds float64, corpusID, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("corpus", corpusID),
		attribute.String("outcome", outcome),
	)
	m.SearchDuration.Record(ctx, seconds, attrs)
	m.SearchRequests.Add(ctx, 1, attrs)
}

// RecordCacheLookup records a response cache hit or miss. No-op on nil.
func (m *Metrics) RecordCacheLookup(ctx context.Context, corpusID string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("corpus", corpusID))
	if hit {
		m.ResponseCacheHits.Add(ctx, 1, attrs)
	} else {
		m.ResponseCacheMisses.Add(ctx, 1, attrs)
	}
}

// RecordFingerprint records one APPR run. No-op on nil.
func (m *Metrics) RecordFingerprint(ctx context.Context, seconds float64, mode string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.FingerprintDuration.Record(ctx, seconds, attrs)
	m.FingerprintComputes.Add(ctx, 1, attrs)
}
