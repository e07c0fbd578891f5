package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromCollector exposes the same counters through Prometheus, for
// deployments that scrape /metrics rather than tail the summary log. The
// latency gauges read the atomic Metrics instance on every collection; the
// counters are incremented by callers alongside the matching Metrics calls.
type PromCollector struct {
	m *Metrics

	requestsTotal   *prometheus.CounterVec
	dbWritesTotal   *prometheus.CounterVec
	eventsProcessed prometheus.Counter
	bytesReceived   prometheus.Counter
	wsReconnects    prometheus.Counter
	latencyAvgUs    prometheus.GaugeFunc
	latencyMinUs    prometheus.GaugeFunc
	latencyMaxUs    prometheus.GaugeFunc
}

// NewPromCollector registers gauges and counters derived from m against the
// default Prometheus registry and returns a handle for recording the
// request-outcome counters (the gauges are read lazily on scrape).
func NewPromCollector(m *Metrics) *PromCollector {
	c := &PromCollector{
		m: m,
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yurei_ingest_requests_total",
			Help: "Total upstream requests, by outcome.",
		}, []string{"outcome"}),
		dbWritesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yurei_ingest_db_writes_total",
			Help: "Total database insert attempts, by outcome.",
		}, []string{"outcome"}),
		eventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yurei_ingest_events_processed_total",
			Help: "Total events successfully parsed and enqueued.",
		}),
		bytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yurei_ingest_bytes_received_total",
			Help: "Total raw response bytes received from upstream.",
		}),
		wsReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yurei_ingest_ws_reconnects_total",
			Help: "Total WebSocket reconnect attempts.",
		}),
	}
	c.latencyAvgUs = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "yurei_ingest_latency_avg_microseconds",
		Help: "Average upstream request latency in microseconds.",
	}, func() float64 { return m.Snapshot().LatencyAvgUs })
	c.latencyMinUs = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "yurei_ingest_latency_min_microseconds",
		Help: "Minimum observed upstream request latency in microseconds.",
	}, func() float64 { return float64(m.Snapshot().LatencyMinUs) })
	c.latencyMaxUs = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "yurei_ingest_latency_max_microseconds",
		Help: "Maximum observed upstream request latency in microseconds.",
	}, func() float64 { return float64(m.Snapshot().LatencyMaxUs) })
	return c
}

// Observe mirrors a RecordRequest call into the Prometheus counters. Callers
// invoke both Metrics.RecordRequest and PromCollector.Observe so the atomic
// counters remain the source of truth and Prometheus is a secondary view.
// A nil *PromCollector is a no-op, so callers that don't wire Prometheus
// (e.g. tests) can pass nil instead of threading a feature flag through.
func (c *PromCollector) Observe(success bool) {
	if c == nil {
		return
	}
	if success {
		c.requestsTotal.WithLabelValues("success").Inc()
	} else {
		c.requestsTotal.WithLabelValues("failed").Inc()
	}
}

// ObserveWrite mirrors one DB writer insert attempt into the Prometheus
// counters. Nil-safe, like Observe.
func (c *PromCollector) ObserveWrite(success bool) {
	if c == nil {
		return
	}
	if success {
		c.dbWritesTotal.WithLabelValues("success").Inc()
	} else {
		c.dbWritesTotal.WithLabelValues("failed").Inc()
	}
}

// SyncCounters adds event/byte/reconnect deltas to the Prometheus
// counters. Because prometheus.Counter only
// grows, this must be called with the delta since the last sync, not the
// running total. Nil-safe, like Observe.
func (c *PromCollector) SyncCounters(eventsDelta, bytesDelta, reconnectsDelta uint64) {
	if c == nil {
		return
	}
	if eventsDelta > 0 {
		c.eventsProcessed.Add(float64(eventsDelta))
	}
	if bytesDelta > 0 {
		c.bytesReceived.Add(float64(bytesDelta))
	}
	if reconnectsDelta > 0 {
		c.wsReconnects.Add(float64(reconnectsDelta))
	}
}
