package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics are the Prometheus collectors of the run service.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	activeRuns  prometheus.Gauge
	rejected    prometheus.Counter
}

// NewMetrics creates the service collectors on a private registry together
// with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fintan",
			Name:      "runs_total",
			Help:      "Pipeline runs by pipeline and status.",
		}, []string{"pipeline", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fintan",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"pipeline"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fintan",
			Name:      "active_runs",
			Help:      "Pipeline runs in progress.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fintan",
			Name:      "runs_rejected_total",
			Help:      "Run requests rejected because the service was at capacity.",
		}),
	}
	m.registry.MustRegister(
		m.runsTotal, m.runDuration, m.activeRuns, m.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) runStarted() { m.activeRuns.Inc() }

func (m *Metrics) runFinished(pipeline, status string, d time.Duration) {
	m.activeRuns.Dec()
	m.runsTotal.WithLabelValues(pipeline, status).Inc()
	m.runDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}

func (m *Metrics) runRejected() { m.rejected.Inc() }
