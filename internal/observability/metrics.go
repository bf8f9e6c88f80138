package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCalls   prometheus.Gauge
	CallEvents    *prometheus.CounterVec
	Actions       *prometheus.CounterVec
	OracleLatency prometheus.Histogram
	ChainDepth    prometheus.Histogram
	MirrorErrors  *prometheus.CounterVec
}

// NewMetrics registers the instrument set on reg. Tests pass a fresh
// registry; main passes the default one.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of live call sessions.",
		}),
		CallEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by type.",
		}, []string{"event"}),
		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions by kind and outcome.",
		}, []string{"action", "outcome"}),
		OracleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_latency_ms",
			Help:      "Oracle round-trip latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}),
		ChainDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_depth",
			Help:      "Oracle round-trips consumed per dispatch pass.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		MirrorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_errors_total",
			Help:      "External calendar mirror failures by operation.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) ObserveOracleLatency(d time.Duration) {
	m.OracleLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
