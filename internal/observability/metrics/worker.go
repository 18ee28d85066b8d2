package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	buildTotal    *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	buildInFlight prometheus.Gauge
	buildRows     *prometheus.GaugeVec
	queueLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt",
			Subsystem: "worker",
			Name:      "catalog_build_total",
			Help:      "Total catalog rebuilds by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "receipt",
			Subsystem: "worker",
			Name:      "catalog_build_duration_seconds",
			Help:      "Catalog rebuild duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	buildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "receipt",
			Subsystem: "worker",
			Name:      "catalog_build_in_flight",
			Help:      "Number of in-flight catalog rebuilds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	buildRows := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "receipt",
			Subsystem: "worker",
			Name:      "catalog_build_rows",
			Help:      "Rows indexed and skipped by the last successful rebuild.",
		},
		[]string{"service", "kind"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "receipt",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between a rebuild request and its processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(buildTotal, buildDuration, buildInFlight, buildRows, queueLag)

	return &WorkerMetrics{
		registry:      registry,
		buildTotal:    buildTotal,
		buildDuration: buildDuration,
		buildInFlight: buildInFlight,
		buildRows:     buildRows,
		queueLag:      queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBuild() {
	m.buildInFlight.Inc()
}

func (m *WorkerMetrics) FinishBuild(service string, duration time.Duration, rows, skipped int, err error) {
	m.buildInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.buildTotal.WithLabelValues(service, status).Inc()
	m.buildDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil {
		m.buildRows.WithLabelValues(service, "indexed").Set(float64(rows))
		m.buildRows.WithLabelValues(service, "skipped").Set(float64(skipped))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
