package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	receiptsTotal   *prometheus.CounterVec
	receiptDuration *prometheus.HistogramVec
	itemsTotal      *prometheus.CounterVec
	matchDistance   *prometheus.HistogramVec
	catalogReloads  *prometheus.CounterVec
	catalogRows     prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "receipt",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "receipt",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests turned away before reaching a handler, by reason.",
		},
		[]string{"service", "reason"},
	)
	receiptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt",
			Subsystem: "pipeline",
			Name:      "receipts_total",
			Help:      "Total receipts processed by outcome.",
		},
		[]string{"service", "endpoint", "status"},
	)
	receiptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "receipt",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Receipt pipeline duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service", "endpoint"},
	)
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt",
			Subsystem: "resolution",
			Name:      "items_total",
			Help:      "Candidate items by resolution outcome.",
		},
		[]string{"service", "outcome"},
	)
	matchDistance := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "receipt",
			Subsystem: "resolution",
			Name:      "match_distance",
			Help:      "Distance from each candidate item to its nearest catalog entry.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 4, 8},
		},
		[]string{"service"},
	)
	catalogReloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt",
			Subsystem: "catalog",
			Name:      "reloads_total",
			Help:      "Catalog artifact loads by status.",
		},
		[]string{"service", "status"},
	)
	catalogRows := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "receipt",
			Subsystem: "catalog",
			Name:      "rows",
			Help:      "Rows in the currently served catalog index.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rejectedTotal,
		receiptsTotal,
		receiptDuration,
		itemsTotal,
		matchDistance,
		catalogReloads,
		catalogRows,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		rejectedTotal:   rejectedTotal,
		receiptsTotal:   receiptsTotal,
		receiptDuration: receiptDuration,
		itemsTotal:      itemsTotal,
		matchDistance:   matchDistance,
		catalogReloads:  catalogReloads,
		catalogRows:     catalogRows,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var knownPaths = map[string]struct{}{
	"/healthz":           {},
	"/metrics":           {},
	"/v1/receipts":       {},
	"/v1/receipts/text":  {},
	"/v1/embeddings":     {},
	"/v1/catalog":        {},
	"/v1/catalog/reload": {},
}

// normalizePath keeps the path label bounded.
func normalizePath(path string) string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return "other"
}

func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	m.rejectedTotal.WithLabelValues(service, reason).Inc()
}

// RecordReceipt counts one pipeline run. status is "ok", "degraded" or "failed".
func (m *HTTPServerMetrics) RecordReceipt(service, endpoint, status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.receiptsTotal.WithLabelValues(service, endpoint, status).Inc()
	m.receiptDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordResolution(service string, resolved, rejected int, distances []float64) {
	if resolved > 0 {
		m.itemsTotal.WithLabelValues(service, "resolved").Add(float64(resolved))
	}
	if rejected > 0 {
		m.itemsTotal.WithLabelValues(service, "rejected").Add(float64(rejected))
	}
	for _, d := range distances {
		m.matchDistance.WithLabelValues(service).Observe(d)
	}
}

// ObserveCatalogReload implements catalog.ReloadObserver.
func (m *HTTPServerMetrics) ObserveCatalogReload(status string, rows int) {
	m.catalogReloads.WithLabelValues(m.service, status).Inc()
	if status == "ok" {
		m.catalogRows.Set(float64(rows))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
