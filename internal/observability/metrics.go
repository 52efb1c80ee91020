// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the collector.
type Metrics struct {
	// Ingestion metrics
	TokensIngested  prometheus.Counter
	TradesIngested  prometheus.Counter
	LaunchesFlagged prometheus.Counter
	IngestErrors    *prometheus.CounterVec

	// Feed metrics
	GatewayRequests    *prometheus.CounterVec
	GatewayRequestTime *prometheus.HistogramVec
	ReconnectAttempts  prometheus.Counter
	ConnectionState    prometheus.Gauge

	// Broadcast metrics
	Subscribers      prometheus.Gauge
	UpdatesBroadcast prometheus.Counter

	// Persistence metrics
	PersistRuns     *prometheus.CounterVec
	PersistDuration *prometheus.HistogramVec

	// Store metrics
	TokensTracked prometheus.Gauge
	TradesWindow  prometheus.Gauge
}

// NewMetrics registers all metrics on the default registry.
func NewMetrics(namespace string) *Metrics {
	return newMetrics(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers on a caller-supplied registry. Used
// by tests to avoid duplicate registration panics.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	return newMetrics(namespace, reg)
}

func newMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pumpwatch"
	}
	factory := promauto.With(reg)

	return &Metrics{
		TokensIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "tokens_total",
			Help:      "Total number of distinct tokens ingested",
		}),
		TradesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "trades_total",
			Help:      "Total number of trades ingested",
		}),
		LaunchesFlagged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "launches_total",
			Help:      "Total number of tokens flagged as new launches",
		}),
		IngestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Ingestion errors by category",
		}, []string{"category"}),
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "gateway_requests_total",
			Help:      "Gateway requests by outcome",
		}, []string{"outcome"}),
		GatewayRequestTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "gateway_request_seconds",
			Help:      "Gateway request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnection attempts",
		}),
		ConnectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 when the upstream connection is live",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "subscribers",
			Help:      "Current number of dashboard subscribers",
		}),
		UpdatesBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "updates_total",
			Help:      "Total number of delta updates sent",
		}),
		PersistRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "runs_total",
			Help:      "Persist runs by sink and outcome",
		}, []string{"sink", "outcome"}),
		PersistDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "duration_seconds",
			Help:      "Persist run duration by sink",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		TokensTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "tokens",
			Help:      "Tokens currently tracked in memory",
		}),
		TradesWindow: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "trades",
			Help:      "Trades currently held in the bounded window",
		}),
	}
}

// ObservePersist records one sink persist run.
func (m *Metrics) ObservePersist(sink string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.PersistRuns.WithLabelValues(sink, outcome).Inc()
	m.PersistDuration.WithLabelValues(sink).Observe(d.Seconds())
}

// SetConnected flips the connection gauge.
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.ConnectionState.Set(1)
	} else {
		m.ConnectionState.Set(0)
	}
}

// Handler returns the metrics HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
