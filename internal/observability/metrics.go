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

const namespace = "payslip_dispatch"

// Metrics stores Prometheus collectors used by the API and both batch orchestrators.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	batchesStartedTotal      *prometheus.CounterVec
	batchesActive            *prometheus.GaugeVec
	batchDuration            *prometheus.HistogramVec
	batchItemsTotal          *prometheus.CounterVec
	notificationSendDuration *prometheus.HistogramVec
	progressSubscribers      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesStartedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_started_total",
				Help:      "Total number of batches started grouped by kind.",
			},
			[]string{"kind"},
		),
		batchesActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batches_active",
				Help:      "Batches whose background work has not finished yet.",
			},
			[]string{"kind"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Wall time from batch start to completion grouped by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
			},
			[]string{"kind"},
		),
		batchItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_items_total",
				Help:      "Items resolved by batches grouped by kind and terminal status.",
			},
			[]string{"kind", "status"},
		),
		notificationSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_send_duration_seconds",
				Help:      "Webhook delivery duration in seconds including retries, grouped by outcome.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"outcome"},
		),
		progressSubscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "progress_subscribers",
				Help:      "Open progress streams grouped by batch kind.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesStartedTotal,
		m.batchesActive,
		m.batchDuration,
		m.batchItemsTotal,
		m.notificationSendDuration,
		m.progressSubscribers,
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

func (m *Metrics) BatchStarted(kind string) {
	if m == nil {
		return
	}
	label := normalizeLabel(kind)
	m.batchesStartedTotal.WithLabelValues(label).Inc()
	m.batchesActive.WithLabelValues(label).Inc()
}

func (m *Metrics) BatchFinished(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	label := normalizeLabel(kind)
	m.batchesActive.WithLabelValues(label).Dec()
	m.batchDuration.WithLabelValues(label).Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncBatchItem(kind string, status string) {
	if m == nil {
		return
	}
	m.batchItemsTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(status)).Inc()
}

func (m *Metrics) ObserveNotificationSendDuration(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.notificationSendDuration.WithLabelValues(normalizeLabel(outcome)).Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncProgressSubscribers(kind string) {
	if m == nil {
		return
	}
	m.progressSubscribers.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) DecProgressSubscribers(kind string) {
	if m == nil {
		return
	}
	m.progressSubscribers.WithLabelValues(normalizeLabel(kind)).Dec()
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

func nonNegativeSeconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
