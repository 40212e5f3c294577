// Package netstats wires the filter pipeline's and Aggregate Bag engine's
// statistics to the two sinks SPEC_FULL.md's DOMAIN STACK calls for: a
// Prometheus endpoint for live scraping, and an optional TimescaleDB
// archive for historical queries — both reusing the teacher's own
// Monitoring config fields and pgx client shape.
package netstats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors this module publishes. Built
// once per process and shared by the filter pipeline and bag algebra
// tool alike, since both report through the same registry.
type Metrics struct {
	RecordsRead   prometheus.Counter
	RecordsPassed prometheus.Counter
	RecordsFailed prometheus.Counter
	BytesRead     prometheus.Counter
	PacketsRead   prometheus.Counter

	BagKeys          prometheus.Gauge
	BagFootprintByte prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics registers a fresh set of collectors on a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "silkflow", Subsystem: "filterpipe", Name: "records_read_total",
			Help: "Total flow records read from all input streams.",
		}),
		RecordsPassed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "silkflow", Subsystem: "filterpipe", Name: "records_passed_total",
			Help: "Total flow records that passed the checker chain.",
		}),
		RecordsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "silkflow", Subsystem: "filterpipe", Name: "records_failed_total",
			Help: "Total flow records that failed the checker chain.",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "silkflow", Subsystem: "filterpipe", Name: "bytes_read_total",
			Help: "Total flow bytes read from all input streams.",
		}),
		PacketsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "silkflow", Subsystem: "filterpipe", Name: "packets_read_total",
			Help: "Total packets read from all input streams.",
		}),
		BagKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "silkflow", Subsystem: "aggbag", Name: "keys",
			Help: "Number of distinct keys in the most recently reported bag.",
		}),
		BagFootprintByte: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "silkflow", Subsystem: "aggbag", Name: "footprint_bytes",
			Help: "Estimated in-memory footprint of the most recently reported bag.",
		}),
		registry: reg,
	}
	reg.MustRegister(
		m.RecordsRead, m.RecordsPassed, m.RecordsFailed, m.BytesRead, m.PacketsRead,
		m.BagKeys, m.BagFootprintByte,
	)
	return m
}

// ObservePipelineStats adds one stats snapshot's deltas to the counters.
// Callers pass the delta since the last call, not a running total, since
// these are Prometheus counters.
func (m *Metrics) ObservePipelineStats(read, passed, failed, bytes, packets uint64) {
	m.RecordsRead.Add(float64(read))
	m.RecordsPassed.Add(float64(passed))
	m.RecordsFailed.Add(float64(failed))
	m.BytesRead.Add(float64(bytes))
	m.PacketsRead.Add(float64(packets))
}

// ObserveBagStats sets the bag gauges to the current snapshot values
// (gauges, not counters, since a bag's key count can shrink).
func (m *Metrics) ObserveBagStats(keys int, footprintBytes int64) {
	m.BagKeys.Set(float64(keys))
	m.BagFootprintByte.Set(float64(footprintBytes))
}

// Handler returns the HTTP handler that serves this registry's metrics in
// the Prometheus exposition format, for mounting under the configured
// PrometheusPort.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
