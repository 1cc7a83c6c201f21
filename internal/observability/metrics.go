package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the reporting API and the
// batch workers.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	batchesProcessedTotal   *prometheus.CounterVec
	itemsProcessedTotal     *prometheus.CounterVec
	invoiceDispatchDuration *prometheus.HistogramVec
	workerInflight          *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "invoice_relay",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "invoice_relay",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "invoice_relay",
				Name:      "batches_processed_total",
				Help:      "Total number of batch runs grouped by municipality and result.",
			},
			[]string{"municipality", "result"},
		),
		itemsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "invoice_relay",
				Name:      "items_processed_total",
				Help:      "Total number of batch items grouped by municipality and final status.",
			},
			[]string{"municipality", "status"},
		),
		invoiceDispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "invoice_relay",
				Name:      "batch_run_duration_seconds",
				Help:      "Batch run duration in seconds grouped by municipality.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"municipality"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "invoice_relay",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight batch runs grouped by municipality.",
			},
			[]string{"municipality"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesProcessedTotal,
		m.itemsProcessedTotal,
		m.invoiceDispatchDuration,
		m.workerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchProcessed(municipality string, completed bool) {
	if m == nil {
		return
	}
	result := "completed"
	if !completed {
		result = "failed"
	}
	m.batchesProcessedTotal.WithLabelValues(normalizeMunicipality(municipality), result).Inc()
}

func (m *Metrics) IncItemProcessed(municipality string, status string) {
	if m == nil {
		return
	}
	statusLabel := strings.TrimSpace(strings.ToLower(status))
	if statusLabel == "" {
		statusLabel = "unknown"
	}
	m.itemsProcessedTotal.WithLabelValues(normalizeMunicipality(municipality), statusLabel).Inc()
}

func (m *Metrics) ObserveBatchRunDuration(municipality string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.invoiceDispatchDuration.WithLabelValues(normalizeMunicipality(municipality)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(municipality string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeMunicipality(municipality)).Inc()
}

func (m *Metrics) DecWorkerInFlight(municipality string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeMunicipality(municipality)).Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeMunicipality(municipality string) string {
	normalized := strings.ToLower(strings.TrimSpace(municipality))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
